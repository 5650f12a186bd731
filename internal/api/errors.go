package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var conflict *appointment.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "conflict",
			Details:   err.Error(),
			Conflicts: toConflictResponses(conflict.Conflicts),
		})
	case errors.Is(err, appointment.ErrTransient):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "ledger_busy", err.Error())
	case errors.Is(err, appointment.ErrConfiguration):
		writeError(w, http.StatusBadRequest, "invalid_configuration", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, availability.ErrInvalidRule):
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error())
	case errors.Is(err, clinic.ErrStaffNotFound):
		writeError(w, http.StatusBadRequest, "unknown_staff", err.Error())
	case errors.Is(err, appointment.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotMovable):
		writeError(w, http.StatusConflict, "not_movable", err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
