package appointment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
	"github.com/hackgods/vet-clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/vet-clinic-scheduling/internal/redis"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("github.com/hackgods/vet-clinic-scheduling/internal/appointment")

var (
	ErrConflict      = errors.New("scheduling conflict")
	ErrTransient     = errors.New("ledger busy, retry")
	ErrConfiguration = errors.New("invalid scheduling configuration")
	ErrNotMovable    = errors.New("appointment can no longer be moved")
)

type ConflictReason string

const (
	ReasonStaffBusy           ConflictReason = "staff_busy"
	ReasonResourceBusy        ConflictReason = "resource_busy"
	ReasonOutsideAvailability ConflictReason = "outside_availability"
)

// Conflict names one collision. AppointmentID is uuid.Nil when the colliding
// interval is not an appointment (outside_availability) or is unknown.
type Conflict struct {
	Reason        ConflictReason
	AppointmentID uuid.UUID
	StaffID       *uuid.UUID
	ResourceID    *uuid.UUID
	Interval      interval.Interval
}

type ConflictError struct {
	Requested interval.Interval
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	reasons := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		reasons = append(reasons, string(c.Reason))
	}
	return fmt.Sprintf("scheduling conflict for %s-%s: %s",
		e.Requested.Start.Format(time.RFC3339), e.Requested.End.Format(time.RFC3339), strings.Join(reasons, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func configError(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// Proposal is a placement to test against the ledger. AppointmentID is the
// appointment being moved, or uuid.Nil for a new one.
type Proposal struct {
	ClinicID      uuid.UUID
	AppointmentID uuid.UUID
	StaffID       *uuid.UUID
	ResourceID    *uuid.UUID
	ServiceID     uuid.UUID
	Start         time.Time
	Duration      time.Duration
}

func (p Proposal) Interval() interval.Interval {
	return interval.Of(p.Start, p.Duration)
}

func (p Proposal) Target() Target {
	return Target{StaffID: p.StaffID, ResourceID: p.ResourceID}
}

// Draft is a new appointment to reserve.
type Draft struct {
	Proposal
	PetID     *uuid.UUID
	Status    Status
	Notes     string
	ExpiresAt *time.Time
}

// MoveRequest relocates an existing appointment. Nil StaffID/ResourceID keep
// the current assignment; Clear* detaches it. Zero Duration keeps the
// current length.
type MoveRequest struct {
	ClinicID      uuid.UUID
	AppointmentID uuid.UUID
	Start         time.Time
	StaffID       *uuid.UUID
	ResourceID    *uuid.UUID
	ClearStaff    bool
	ClearResource bool
	Duration      time.Duration
}

func (m MoveRequest) validate() error {
	if m.Duration < 0 || m.Duration%time.Minute != 0 {
		return configError(errors.New("duration must be a positive number of whole minutes"))
	}
	return nil
}

func (m MoveRequest) apply(a Appointment) Appointment {
	moved := a
	moved.Start = m.Start
	if m.Duration > 0 {
		moved.DurationMinutes = int(m.Duration / time.Minute)
	}
	switch {
	case m.ClearStaff:
		moved.StaffID = nil
	case m.StaffID != nil:
		moved.StaffID = m.StaffID
	}
	switch {
	case m.ClearResource:
		moved.ResourceID = nil
	case m.ResourceID != nil:
		moved.ResourceID = m.ResourceID
	}
	return moved
}

// FindConflicts returns every ledger entry that collides with p. The staff
// and resource dimensions are checked independently and p's own appointment
// is ignored.
func FindConflicts(p Proposal, occupied []Occupancy) []Conflict {
	want := p.Interval()
	var out []Conflict
	for _, o := range occupied {
		if p.AppointmentID != uuid.Nil && o.AppointmentID == p.AppointmentID {
			continue
		}
		if !want.Overlaps(o.Interval) {
			continue
		}
		if sameID(p.StaffID, o.StaffID) {
			out = append(out, Conflict{
				Reason:        ReasonStaffBusy,
				AppointmentID: o.AppointmentID,
				StaffID:       o.StaffID,
				ResourceID:    o.ResourceID,
				Interval:      o.Interval,
			})
		}
		if sameID(p.ResourceID, o.ResourceID) {
			out = append(out, Conflict{
				Reason:        ReasonResourceBusy,
				AppointmentID: o.AppointmentID,
				StaffID:       o.StaffID,
				ResourceID:    o.ResourceID,
				Interval:      o.Interval,
			})
		}
	}
	return out
}

// Availability resolves bookable time. Implemented by availability.Resolver.
type Availability interface {
	OpenIntervals(ctx context.Context, c *clinic.Clinic, staffID *uuid.UUID, window interval.Interval) (interval.Set, error)
}

type GuardOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Locker      redisclient.Locker
	Metrics     *metrics.SchedulingMetrics
	Logger      *logging.Logger
}

// Guard is the single authority that admits appointments into the ledger.
type Guard struct {
	ledger       Repository
	clinics      clinic.Repository
	availability Availability
	locker       redisclient.Locker
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
	maxAttempts  int
	baseDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewGuard(ledger Repository, clinics clinic.Repository, availability Availability, opts GuardOptions) *Guard {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 25 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Guard{
		ledger:       ledger,
		clinics:      clinics,
		availability: availability,
		locker:       opts.Locker,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		maxAttempts:  opts.MaxAttempts,
		baseDelay:    opts.BaseDelay,
		sleep:        sleepContext,
	}
}

// Check is the advisory dry run: same validation and overlap test as
// Reserve, against a snapshot, without writing. An empty result means the
// proposal was free at the time of the read.
func (g *Guard) Check(ctx context.Context, p Proposal) ([]Conflict, error) {
	ctx, span := tracer.Start(ctx, "appointment.Guard.Check")
	defer span.End()
	setProposalAttributes(span, p)

	c, err := g.prepare(ctx, p)
	if err != nil {
		g.metrics.ObserveReservation("check", outcome(err))
		return nil, err
	}

	conflicts, err := g.evaluate(ctx, g.ledger, c, p)
	if err != nil {
		g.metrics.ObserveReservation("check", outcome(err))
		return nil, err
	}
	if len(conflicts) > 0 {
		g.metrics.ObserveReservation("check", "conflict")
	} else {
		g.metrics.ObserveReservation("check", "success")
	}
	return conflicts, nil
}

// Reserve admits a new appointment or fails with *ConflictError,
// ErrConfiguration or ErrTransient. The requested time is never shifted.
func (g *Guard) Reserve(ctx context.Context, d Draft) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Guard.Reserve")
	defer span.End()
	setProposalAttributes(span, d.Proposal)

	created, err := g.reserve(ctx, d)
	g.metrics.ObserveReservation("reserve", outcome(err))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return created, nil
}

func (g *Guard) reserve(ctx context.Context, d Draft) (*Appointment, error) {
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Status != StatusPending && d.Status != StatusConfirmed {
		return nil, configError(fmt.Errorf("new appointments start as PENDING or CONFIRMED, got %q", d.Status))
	}
	if d.Duration%time.Minute != 0 {
		return nil, configError(errors.New("duration must be whole minutes"))
	}

	c, err := g.prepare(ctx, d.Proposal)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = g.withRetry(ctx, "reserve", func(ctx context.Context) error {
		return g.atomically(ctx, d.Target().Keys(), func(ctx context.Context, tx LedgerTx) error {
			conflicts, err := g.evaluate(ctx, tx, c, d.Proposal)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &ConflictError{Requested: d.Interval(), Conflicts: conflicts}
			}

			appt, err := tx.Insert(ctx, Appointment{
				ID:              uuid.New(),
				ClinicID:        d.ClinicID,
				StaffID:         d.StaffID,
				ResourceID:      d.ResourceID,
				ServiceID:       d.ServiceID,
				PetID:           d.PetID,
				Start:           d.Start.UTC(),
				DurationMinutes: int(d.Duration / time.Minute),
				Status:          d.Status,
				Notes:           d.Notes,
				ExpiresAt:       d.ExpiresAt,
			})
			if err != nil {
				return err
			}
			if err := tx.InsertEvent(ctx, newEvent(appt, "APPOINTMENT_RESERVED", map[string]any{
				"start":  appt.Start,
				"end":    appt.End(),
				"status": appt.Status,
			})); err != nil {
				return err
			}
			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, g.finalize(err, d.Interval())
	}

	g.logger.Info("appointment reserved",
		"clinic_id", created.ClinicID,
		"appointment_id", created.ID,
		"staff_id", created.StaffID,
		"resource_id", created.ResourceID,
		"start", created.Start,
	)
	return created, nil
}

// Move relocates an existing PENDING or CONFIRMED appointment. On conflict
// the appointment keeps its previous placement.
func (g *Guard) Move(ctx context.Context, m MoveRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Guard.Move")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.id", m.ClinicID.String()),
		attribute.String("appointment.id", m.AppointmentID.String()),
	)

	moved, err := g.move(ctx, m)
	g.metrics.ObserveReservation("move", outcome(err))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return moved, nil
}

// CheckMove is the advisory dry run for Move. The proposal is built from the
// stored appointment exactly as Move builds it, so both report the same
// conflicts for the same request and ledger state.
func (g *Guard) CheckMove(ctx context.Context, m MoveRequest) ([]Conflict, error) {
	ctx, span := tracer.Start(ctx, "appointment.Guard.CheckMove")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.id", m.ClinicID.String()),
		attribute.String("appointment.id", m.AppointmentID.String()),
	)

	conflicts, err := g.checkMove(ctx, m)
	switch {
	case err != nil:
		g.metrics.ObserveReservation("check", outcome(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	case len(conflicts) > 0:
		g.metrics.ObserveReservation("check", "conflict")
	default:
		g.metrics.ObserveReservation("check", "success")
	}
	return conflicts, nil
}

func (g *Guard) checkMove(ctx context.Context, m MoveRequest) ([]Conflict, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	current, err := g.ledger.GetAppointment(ctx, m.ClinicID, m.AppointmentID)
	if err != nil {
		return nil, err
	}
	planned, c, err := g.planMove(ctx, m, *current)
	if err != nil {
		return nil, err
	}
	return g.evaluate(ctx, g.ledger, c, proposalFor(planned))
}

// planMove applies m to current and validates the resulting placement
// against the directory.
func (g *Guard) planMove(ctx context.Context, m MoveRequest, current Appointment) (Appointment, *clinic.Clinic, error) {
	if !current.Status.Movable() {
		return Appointment{}, nil, fmt.Errorf("%w: status %s", ErrNotMovable, current.Status)
	}
	planned := m.apply(current)
	p := proposalFor(planned)
	// the service was validated at booking time
	p.ServiceID = uuid.Nil
	c, err := g.prepare(ctx, p)
	if err != nil {
		return Appointment{}, nil, err
	}
	return planned, c, nil
}

func (g *Guard) move(ctx context.Context, m MoveRequest) (*Appointment, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var moved *Appointment
	var requested interval.Interval
	err := g.withRetry(ctx, "move", func(ctx context.Context) error {
		current, err := g.ledger.GetAppointment(ctx, m.ClinicID, m.AppointmentID)
		if err != nil {
			return err
		}
		requested = proposalFor(m.apply(*current)).Interval()
		planned, c, err := g.planMove(ctx, m, *current)
		if err != nil {
			return err
		}

		return g.atomically(ctx, planned.Target().Keys(), func(ctx context.Context, tx LedgerTx) error {
			locked, err := tx.GetForUpdate(ctx, m.ClinicID, m.AppointmentID)
			if err != nil {
				return err
			}
			if !locked.Status.Movable() {
				return fmt.Errorf("%w: status %s", ErrNotMovable, locked.Status)
			}
			next := m.apply(*locked)
			if !sameTarget(next.Target(), planned.Target()) {
				// moved by someone else since the keys were chosen
				return ErrTransient
			}

			conflicts, err := g.evaluate(ctx, tx, c, proposalFor(next))
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &ConflictError{Requested: next.Interval(), Conflicts: conflicts}
			}

			updated, err := tx.UpdateSchedule(ctx, next)
			if err != nil {
				return err
			}
			if err := tx.InsertEvent(ctx, newEvent(updated, "APPOINTMENT_MOVED", map[string]any{
				"from":  locked.Start,
				"to":    updated.Start,
				"end":   updated.End(),
				"staff": updated.StaffID,
			})); err != nil {
				return err
			}
			moved = updated
			return nil
		})
	})
	if err != nil {
		return nil, g.finalize(err, requested)
	}

	g.logger.Info("appointment moved",
		"clinic_id", moved.ClinicID,
		"appointment_id", moved.ID,
		"staff_id", moved.StaffID,
		"resource_id", moved.ResourceID,
		"start", moved.Start,
	)
	return moved, nil
}

// prepare validates a proposal against the clinic directory and returns the
// clinic.
func (g *Guard) prepare(ctx context.Context, p Proposal) (*clinic.Clinic, error) {
	if p.Duration <= 0 {
		return nil, configError(errors.New("duration must be positive"))
	}
	if p.Start.IsZero() {
		return nil, configError(errors.New("start is required"))
	}

	c, err := g.clinics.GetClinic(ctx, p.ClinicID)
	if err != nil {
		return nil, directoryError(err)
	}
	if err := c.Validate(); err != nil {
		return nil, configError(err)
	}
	if p.ServiceID != uuid.Nil {
		svc, err := g.clinics.GetService(ctx, p.ClinicID, p.ServiceID)
		if err != nil {
			return nil, directoryError(err)
		}
		if !svc.Active {
			return nil, configError(fmt.Errorf("%w: service %s", clinic.ErrInactive, svc.ID))
		}
	}
	if p.StaffID != nil {
		st, err := g.clinics.GetStaff(ctx, p.ClinicID, *p.StaffID)
		if err != nil {
			return nil, directoryError(err)
		}
		if !st.Active {
			return nil, configError(fmt.Errorf("%w: staff %s", clinic.ErrInactive, st.ID))
		}
	}
	if p.ResourceID != nil {
		res, err := g.clinics.GetResource(ctx, p.ClinicID, *p.ResourceID)
		if err != nil {
			return nil, directoryError(err)
		}
		if !res.Active {
			return nil, configError(fmt.Errorf("%w: resource %s", clinic.ErrInactive, res.ID))
		}
	}
	return c, nil
}

// evaluate reports availability gaps and ledger collisions for p.
func (g *Guard) evaluate(ctx context.Context, ledger LedgerReader, c *clinic.Clinic, p Proposal) ([]Conflict, error) {
	want := p.Interval()

	open, err := g.availability.OpenIntervals(ctx, c, p.StaffID, want)
	if err != nil {
		return nil, err
	}
	var conflicts []Conflict
	for _, gap := range interval.Subtract(interval.Normalize(want), open) {
		conflicts = append(conflicts, Conflict{
			Reason:     ReasonOutsideAvailability,
			StaffID:    p.StaffID,
			ResourceID: p.ResourceID,
			Interval:   gap,
		})
	}

	if p.Target().Empty() {
		return conflicts, nil
	}
	occupied, err := ledger.Occupied(ctx, p.ClinicID, p.Target(), want)
	if err != nil {
		return nil, err
	}
	return append(conflicts, FindConflicts(p, occupied)...), nil
}

func (g *Guard) atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx LedgerTx) error) error {
	if g.locker == nil {
		return g.ledger.Atomically(ctx, keys, fn)
	}
	err := g.locker.WithLocks(ctx, keys, func(ctx context.Context) error {
		return g.ledger.Atomically(ctx, keys, fn)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) || errors.Is(err, redisclient.ErrLockUnavailable) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// withRetry re-runs fn while it fails with ErrTransient, backing off
// exponentially with jitter between attempts.
func (g *Guard) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if attempt == g.maxAttempts {
			break
		}
		g.metrics.ObserveRetry(operation)
		g.logger.Debug("ledger contention, retrying", "operation", operation, "attempt", attempt, "error", err)

		delay := g.baseDelay << (attempt - 1)
		delay += rand.N(g.baseDelay)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// finalize fills in the requested interval on backstop conflicts raised by
// the store.
func (g *Guard) finalize(err error, requested interval.Interval) error {
	var ce *ConflictError
	if errors.As(err, &ce) && ce.Requested == (interval.Interval{}) {
		ce.Requested = requested
		for i := range ce.Conflicts {
			if ce.Conflicts[i].Interval == (interval.Interval{}) {
				ce.Conflicts[i].Interval = requested
			}
		}
	}
	return err
}

func directoryError(err error) error {
	switch {
	case errors.Is(err, clinic.ErrClinicNotFound),
		errors.Is(err, clinic.ErrServiceNotFound),
		errors.Is(err, clinic.ErrStaffNotFound),
		errors.Is(err, clinic.ErrResourceNotFound):
		return configError(err)
	default:
		return err
	}
}

func proposalFor(a Appointment) Proposal {
	return Proposal{
		ClinicID:      a.ClinicID,
		AppointmentID: a.ID,
		StaffID:       a.StaffID,
		ResourceID:    a.ResourceID,
		ServiceID:     a.ServiceID,
		Start:         a.Start,
		Duration:      a.Duration(),
	}
}

func sameTarget(a, b Target) bool {
	return equalID(a.StaffID, b.StaffID) && equalID(a.ResourceID, b.ResourceID)
}

func equalID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

func setProposalAttributes(span trace.Span, p Proposal) {
	attrs := []attribute.KeyValue{
		attribute.String("clinic.id", p.ClinicID.String()),
		attribute.String("appointment.start", p.Start.UTC().Format(time.RFC3339)),
		attribute.Int64("appointment.duration_minutes", int64(p.Duration/time.Minute)),
	}
	if p.StaffID != nil {
		attrs = append(attrs, attribute.String("staff.id", p.StaffID.String()))
	}
	if p.ResourceID != nil {
		attrs = append(attrs, attribute.String("resource.id", p.ResourceID.String()))
	}
	span.SetAttributes(attrs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
