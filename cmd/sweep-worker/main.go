package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/careroute/triage-booking/internal/config"
	"github.com/careroute/triage-booking/internal/db"
	"github.com/careroute/triage-booking/internal/schedule"
)

// The sweep worker keeps the slot pool honest: holds abandoned mid-booking
// go back to FREE after their TTL, and free slots whose start time passed
// uncontested are archived.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("sweep-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running sweep worker in env=%s interval=%s hold_ttl=%s", cfg.Env, cfg.WorkerInterval, cfg.HoldTTL)

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

	registry := schedule.NewPgRegistry(pgPool)

	// Run once at startup
	runOnce(rootCtx, registry)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, registry)
		}
	}
}

func runOnce(ctx context.Context, registry schedule.Registry) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	now := time.Now()

	released, err := registry.ReleaseExpiredHolds(runCtx, now)
	if err != nil {
		log.Printf("release expired holds error: %v", err)
		return
	}

	archived, err := registry.ArchivePastSlots(runCtx, now)
	if err != nil {
		log.Printf("archive past slots error: %v", err)
		return
	}

	log.Printf("sweep complete released=%d archived=%d duration=%s", released, archived, time.Since(start))
}
