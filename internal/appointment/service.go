package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/observability/metrics"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

const (
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCanceled      = "APPOINTMENT_CANCELED"
	EventAppointmentHoldExpired   = "APPOINTMENT_HOLD_EXPIRED"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrHoldExpired             = errors.New("pending hold has expired")
)

type BookRequest struct {
	ClinicID   uuid.UUID
	ServiceID  uuid.UUID
	StaffID    *uuid.UUID
	ResourceID *uuid.UUID
	PetID      *uuid.UUID
	Start      time.Time
	Status     Status
	Notes      string
	// Hold marks a public booking that lapses unless confirmed in time.
	Hold bool
}

type RescheduleRequest struct {
	Start         time.Time
	StaffID       *uuid.UUID
	ResourceID    *uuid.UUID
	ClearResource bool
}

type Service struct {
	repo    Repository
	guard   *Guard
	clinics clinic.Repository
	holdTTL time.Duration
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(repo Repository, guard *Guard, clinics clinic.Repository, holdTTL time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		guard:   guard,
		clinics: clinics,
		holdTTL: holdTTL,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Book reserves a new appointment for the service's duration.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	svc, err := s.clinics.GetService(ctx, req.ClinicID, req.ServiceID)
	if err != nil {
		return nil, directoryError(err)
	}
	if svc.DurationMinutes <= 0 {
		return nil, configError(fmt.Errorf("service %s has no duration", svc.ID))
	}

	status := req.Status
	if status == "" {
		status = StatusPending
	}

	var expiresAt *time.Time
	if req.Hold && status == StatusPending && s.holdTTL > 0 {
		t := s.now().Add(s.holdTTL).UTC()
		expiresAt = &t
	}

	return s.guard.Reserve(ctx, Draft{
		Proposal: Proposal{
			ClinicID:   req.ClinicID,
			StaffID:    req.StaffID,
			ResourceID: req.ResourceID,
			ServiceID:  svc.ID,
			Start:      req.Start,
			Duration:   svc.Duration(),
		},
		PetID:     req.PetID,
		Status:    status,
		Notes:     req.Notes,
		ExpiresAt: expiresAt,
	})
}

// Check runs the advisory conflict check for a new booking.
func (s *Service) Check(ctx context.Context, req BookRequest) ([]Conflict, error) {
	svc, err := s.clinics.GetService(ctx, req.ClinicID, req.ServiceID)
	if err != nil {
		return nil, directoryError(err)
	}
	return s.guard.Check(ctx, Proposal{
		ClinicID:   req.ClinicID,
		StaffID:    req.StaffID,
		ResourceID: req.ResourceID,
		ServiceID:  svc.ID,
		Start:      req.Start,
		Duration:   svc.Duration(),
	})
}

// CheckMove runs the advisory conflict check for a Reschedule with the same
// arguments.
func (s *Service) CheckMove(ctx context.Context, clinicID, id uuid.UUID, req RescheduleRequest) ([]Conflict, error) {
	return s.guard.CheckMove(ctx, req.moveRequest(clinicID, id))
}

// Reschedule moves an appointment, keeping the current staff and resource
// unless new ones are given.
func (s *Service) Reschedule(ctx context.Context, clinicID, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	return s.guard.Move(ctx, req.moveRequest(clinicID, id))
}

func (r RescheduleRequest) moveRequest(clinicID, id uuid.UUID) MoveRequest {
	return MoveRequest{
		ClinicID:      clinicID,
		AppointmentID: id,
		Start:         r.Start,
		StaffID:       r.StaffID,
		ResourceID:    r.ResourceID,
		ClearResource: r.ClearResource,
	}
}

// Transition moves an appointment through the status machine. Confirming a
// lapsed hold cancels it instead and returns ErrHoldExpired.
func (s *Service) Transition(ctx context.Context, clinicID, id uuid.UUID, next Status) (*Appointment, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, next)
	}

	appt, err := s.repo.GetAppointment(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusPending && next == StatusConfirmed &&
		appt.ExpiresAt != nil && appt.ExpiresAt.Before(s.now()) {
		if _, err := s.expire(ctx, *appt, "confirm_after_expiry"); err != nil {
			s.logger.Warn("failed to cancel lapsed hold", "appointment_id", appt.ID, "error", err)
		}
		return nil, ErrHoldExpired
	}

	if !appt.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, next)
	}

	updated, err := s.repo.UpdateStatus(ctx, clinicID, id, appt.Status, next)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	eventType := EventAppointmentStatusChanged
	if next == StatusCanceled {
		eventType = EventAppointmentCanceled
	}
	s.logEvent(ctx, updated, eventType, map[string]any{
		"from": appt.Status,
		"to":   next,
	})
	s.logger.Info("appointment status changed",
		"clinic_id", clinicID,
		"appointment_id", id,
		"from", appt.Status,
		"to", next,
	)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, clinicID, id, StatusCanceled)
}

// ExpirePendingHolds cancels PENDING appointments whose hold lapsed. It is
// called periodically by the expiry worker and returns how many it canceled.
func (s *Service) ExpirePendingHolds(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		ok, err := s.expire(ctx, appt, "worker")
		if err != nil {
			s.logger.Error("failed to expire appointment", "appointment_id", appt.ID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	s.metrics.ObserveHoldsExpired(expired)
	return expired, nil
}

func (s *Service) expire(ctx context.Context, appt Appointment, reason string) (bool, error) {
	updated, err := s.repo.UpdateStatus(ctx, appt.ClinicID, appt.ID, StatusPending, StatusCanceled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// confirmed or canceled in the meantime
			return false, nil
		}
		return false, err
	}
	s.logEvent(ctx, updated, EventAppointmentHoldExpired, map[string]any{
		"reason":     reason,
		"expires_at": appt.ExpiresAt,
	})
	return true, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, clinicID, id)
}

// ListForDay returns the clinic-local day's appointments, optionally for one
// staff member or resource (a driver's vehicle schedule, for example).
func (s *Service) ListForDay(ctx context.Context, clinicID uuid.UUID, date time.Time, staffID, resourceID *uuid.UUID, includeCanceled bool) ([]Appointment, error) {
	c, err := s.clinics.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListAppointments(ctx, clinicID, ListFilter{
		Window:          c.DayWindow(date),
		StaffID:         staffID,
		ResourceID:      resourceID,
		IncludeCanceled: includeCanceled,
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}
	return appts, nil
}

func newEvent(appt *Appointment, eventType string, payload map[string]any) EventLog {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	id := appt.ID
	return EventLog{
		ClinicID:      appt.ClinicID,
		EventType:     eventType,
		AppointmentID: &id,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *Service) logEvent(ctx context.Context, appt *Appointment, eventType string, payload map[string]any) {
	if err := s.repo.InsertEvent(ctx, newEvent(appt, eventType, payload)); err != nil {
		s.logger.Warn("failed to insert event log",
			"event_type", eventType,
			"appointment_id", appt.ID,
			"error", err,
		)
	}
}
