package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/careroute/triage-booking/internal/api"
	"github.com/careroute/triage-booking/internal/booking"
	"github.com/careroute/triage-booking/internal/config"
	"github.com/careroute/triage-booking/internal/db"
	redisclient "github.com/careroute/triage-booking/internal/redis"
	"github.com/careroute/triage-booking/internal/schedule"
	"github.com/careroute/triage-booking/internal/triage"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		ReadTimeout:  cfg.RedisTimeout,
		WriteTimeout: cfg.RedisTimeout,
		PoolSize:     cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	registry := schedule.NewPgRegistry(pgPool)

	// Department ids feed the classifier; departments are bootstrap-time
	// reference data, so loading them once here is enough.
	deptCtx, cancelDept := context.WithTimeout(rootCtx, 5*time.Second)
	departments, err := registry.ListDepartments(deptCtx)
	cancelDept()
	if err != nil {
		log.Fatalf("load departments: %v", err)
	}
	deptIDs := make([]string, 0, len(departments))
	for _, d := range departments {
		deptIDs = append(deptIDs, d.ID)
	}
	log.Printf("loaded %d departments", len(deptIDs))

	var oracle triage.Oracle
	if cfg.OracleBaseURL != "" {
		oracle = triage.NewHTTPOracle(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleTimeout)
		log.Printf("oracle enabled base_url=%s timeout=%s min_confidence=%v",
			cfg.OracleBaseURL, cfg.OracleTimeout, cfg.OracleMinConfidence)
	} else {
		log.Println("no ORACLE_BASE_URL configured, running fallback-only classification")
	}

	degrade := triage.NewRedisDegradeRecorder(rdb)
	normalizer, err := triage.NewNormalizer(cfg.SupportedLanguages, cfg.DefaultLanguage)
	if err != nil {
		log.Fatalf("normalizer config error: %v", err)
	}
	classifier := triage.NewClassifier(
		oracle,
		triage.DefaultLexicon(cfg.DefaultDepartment),
		deptIDs,
		cfg.OracleMinConfidence,
		cfg.OracleTimeout,
		degrade,
	)
	localizer := triage.NewLocalizer(oracle, triage.DefaultGuidancePhrases(), cfg.DefaultLanguage, cfg.OracleTimeout, degrade)
	triageSvc := triage.NewService(normalizer, classifier, localizer)

	idem := redisclient.NewRedisIdempotencyStore(rdb, cfg.ReservationTTL, cfg.IdempotencyTTL)
	coordinator := booking.NewCoordinator(registry, idem, cfg.HoldTTL, cfg.BookingMaxAttempts)

	router := api.NewRouter(api.RouterConfig{
		Triage:          triageSvc,
		Coordinator:     coordinator,
		Registry:        registry,
		PgPool:          pgPool,
		Redis:           rdb,
		DefaultLanguage: cfg.DefaultLanguage,
		Env:             cfg.Env,
		Version:         version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
