package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vet-clinic-scheduling/internal/api"
	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/config"
	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/internal/memstore"
	"github.com/hackgods/vet-clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/vet-clinic-scheduling/internal/redis"
	"github.com/hackgods/vet-clinic-scheduling/internal/slots"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

var version = "dev"

type stores struct {
	clinics clinic.Repository
	rules   availability.Repository
	ledger  appointment.Repository
	pool    *pgxpool.Pool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	logger.Info("api-server starting up", "http_port", cfg.HTTPPort, "store", cfg.StoreDriver, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisEnabled {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Error("redis connection error", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		locker = redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
		logger.Info("connected to Redis", "addr", cfg.RedisAddr)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewSchedulingMetrics(reg)

	resolver := availability.NewResolver(st.rules)
	guard := appointment.NewGuard(st.ledger, st.clinics, resolver, appointment.GuardOptions{
		MaxAttempts: cfg.ReserveMaxAttempts,
		BaseDelay:   cfg.ReserveRetryBaseDelay,
		Locker:      locker,
		Metrics:     m,
		Logger:      logger,
	})
	appointments := appointment.NewService(st.ledger, guard, st.clinics, cfg.PendingHoldTTL, m, logger)
	allocator := slots.NewAllocator(st.clinics, resolver, st.ledger, m).WithGranularity(cfg.SlotGranularity)

	handler := api.NewRouter(api.RouterConfig{
		Clinics:      st.clinics,
		Resolver:     resolver,
		Rules:        availability.NewService(st.rules, st.clinics, logger),
		Allocator:    allocator,
		Appointments: appointments,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:       logger,
		PgPool:       st.pool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	// With the memory store no other process can see the holds.
	if cfg.StoreDriver == config.StoreMemory && cfg.PendingHoldTTL > 0 {
		go appointments.RunExpiry(rootCtx, cfg.WorkerInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *logging.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		store := memstore.New()
		store.SeedDemo()
		logger.Warn("using in-memory store with demo data", "clinic_id", memstore.DemoClinicID)
		return stores{
			clinics: store.Clinics(),
			rules:   store.Rules(),
			ledger:  store.Appointments(),
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, fmt.Errorf("postgres connection error: %w", err)
	}
	logger.Info("connected to Postgres")

	return stores{
		clinics: clinic.NewPgRepository(pool),
		rules:   availability.NewPgRepository(pool),
		ledger:  appointment.NewPgRepository(pool),
		pool:    pool,
	}, nil
}
