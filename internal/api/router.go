package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/slots"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

type RouterConfig struct {
	Clinics      clinic.Repository
	Resolver     *availability.Resolver
	Rules        *availability.Service
	Allocator    *slots.Allocator
	Appointments *appointment.Service
	Metrics      http.Handler // nil disables /metrics
	Logger       *logging.Logger
	PgPool       *pgxpool.Pool // nil in memory mode
	Redis        *redis.Client // nil when the Redis pre-lock is off
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1/clinics/{clinicID}", func(r chi.Router) {
		r.Use(ClinicMiddleware(cfg.Clinics))

		r.Get("/calendar", calendarHandler(cfg.Resolver))
		r.Get("/slots", slotsHandler(cfg.Allocator))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Appointments, logger))
			r.Get("/", listAppointmentsHandler(cfg.Appointments))
			r.Post("/check", checkAppointmentHandler(cfg.Appointments, logger))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}/schedule", rescheduleAppointmentHandler(cfg.Appointments, logger))
			r.Post("/{id}/status", transitionAppointmentHandler(cfg.Appointments, logger))
		})

		r.Route("/availability-rules", func(r chi.Router) {
			r.Get("/", listRulesHandler(cfg.Rules))
			r.Post("/", createRuleHandler(cfg.Rules, logger))
			r.Delete("/{ruleID}", deleteRuleHandler(cfg.Rules, logger))
		})
	})

	return r
}
