package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/config"
	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/internal/observability/metrics"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "expiry-worker", "env", cfg.Env)

	if cfg.StoreDriver != config.StorePostgres {
		logger.Error("expiry-worker needs STORE_DRIVER=postgres; the api-server expires holds itself in memory mode")
		os.Exit(1)
	}
	if cfg.PendingHoldTTL <= 0 {
		logger.Warn("PENDING_HOLD_TTL is 0, new holds never expire; sweeping existing ones anyway")
	}

	logger.Info("expiry-worker starting up", "interval", cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	go serveMetrics(rootCtx, reg, logger)

	clinics := clinic.NewPgRepository(pgPool)
	repo := appointment.NewPgRepository(pgPool)
	guard := appointment.NewGuard(repo, clinics, availability.NewResolver(availability.NewPgRepository(pgPool)), appointment.GuardOptions{
		Metrics: m,
		Logger:  logger,
	})
	svc := appointment.NewService(repo, guard, clinics, cfg.PendingHoldTTL, m, logger)

	svc.RunExpiry(rootCtx, cfg.WorkerInterval)
	logger.Info("shutdown signal received, expiry worker stopped")
}

// serveMetrics exposes the worker's counters on HTTP_PORT.
func serveMetrics(ctx context.Context, reg *prometheus.Registry, logger *logging.Logger) {
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server stopped", "error", err)
	}
}
