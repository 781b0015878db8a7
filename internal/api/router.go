package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careroute/triage-booking/internal/booking"
	"github.com/careroute/triage-booking/internal/schedule"
	"github.com/careroute/triage-booking/internal/triage"
)

type RouterConfig struct {
	Triage          *triage.Service
	Coordinator     *booking.Coordinator
	Registry        schedule.Registry
	PgPool          *pgxpool.Pool
	Redis           *redis.Client
	DefaultLanguage string
	Env             string
	Version         string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/symptom-checks", checkSymptomHandler(cfg.Triage, cfg.Registry, cfg.DefaultLanguage))

		r.Get("/departments", listDepartmentsHandler(cfg.Registry))
		r.Get("/departments/{id}/slots", listSlotsHandler(cfg.Registry))

		r.Post("/appointments", bookAppointmentHandler(cfg.Coordinator, cfg.Registry))
		r.Get("/appointments/stats", appointmentStatsHandler(cfg.Registry))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Registry))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Registry))
	})

	return r
}
