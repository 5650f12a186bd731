package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/tenancy"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs method, path, status, duration and request ID.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"request_id", GetRequestID(r.Context()),
			}
			if clinicID := chi.URLParam(r, "clinicID"); clinicID != "" {
				attrs = append(attrs, "clinic_id", clinicID)
			}
			logger.Info("http request", attrs...)
		})
	}
}

// ClinicMiddleware resolves {clinicID} into the request context. Every
// scheduling route sits behind it, so handlers never see another tenant.
func ClinicMiddleware(clinics clinic.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "clinicID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicID must be a valid UUID")
				return
			}

			c, err := clinics.GetClinic(r.Context(), id)
			if err != nil {
				if errors.Is(err, clinic.ErrClinicNotFound) {
					writeError(w, http.StatusNotFound, "clinic_not_found", err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(tenancy.WithClinic(r.Context(), c)))
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
