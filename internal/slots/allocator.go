// Package slots computes bookable start times for a service on one day.
package slots

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
	"github.com/hackgods/vet-clinic-scheduling/internal/observability/metrics"
)

var tracer = otel.Tracer("github.com/hackgods/vet-clinic-scheduling/internal/slots")

const DefaultGranularity = 15 * time.Minute

type Query struct {
	ClinicID   uuid.UUID
	ServiceID  uuid.UUID
	Date       time.Time // only the calendar date is used, in the clinic's zone
	StaffID    *uuid.UUID
	ResourceID *uuid.UUID
}

type StaffSlots struct {
	Staff clinic.Staff
	Slots []time.Time
}

// Availability resolves bookable time. Implemented by availability.Resolver.
type Availability interface {
	OpenIntervals(ctx context.Context, c *clinic.Clinic, staffID *uuid.UUID, window interval.Interval) (interval.Set, error)
}

type Allocator struct {
	clinics      clinic.Repository
	availability Availability
	ledger       appointment.LedgerReader
	granularity  time.Duration
	metrics      *metrics.SchedulingMetrics
	now          func() time.Time
}

func NewAllocator(clinics clinic.Repository, availability Availability, ledger appointment.LedgerReader, m *metrics.SchedulingMetrics) *Allocator {
	return &Allocator{
		clinics:      clinics,
		availability: availability,
		ledger:       ledger,
		granularity:  DefaultGranularity,
		metrics:      m,
		now:          time.Now,
	}
}

// WithGranularity sets the slot grid step, truncated to whole minutes.
// Steps under a minute are ignored.
func (a *Allocator) WithGranularity(d time.Duration) *Allocator {
	if d >= time.Minute {
		a.granularity = d.Truncate(time.Minute)
	}
	return a
}

// WithClock replaces the clock used to drop past start times.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

func (a *Allocator) Granularity() time.Duration {
	return a.granularity
}

// CandidateSlots returns the start times on q.Date at which the service fits
// entirely inside free time. Free time is the resolved availability minus the
// ledger intervals of the given staff member and resource. The sequence is
// computed from one snapshot taken here, so iterating it again yields the
// same times; a later Reserve may still report a conflict.
func (a *Allocator) CandidateSlots(ctx context.Context, q Query) (iter.Seq[time.Time], error) {
	ctx, span := tracer.Start(ctx, "slots.Allocator.CandidateSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.id", q.ClinicID.String()),
		attribute.String("service.id", q.ServiceID.String()),
		attribute.String("date", q.Date.Format(time.DateOnly)),
	)
	started := time.Now()

	c, svc, err := a.load(ctx, q)
	if err != nil {
		return nil, err
	}

	free, err := a.freeTime(ctx, c, q)
	if err != nil {
		return nil, err
	}

	seq := a.slotsIn(c, free, svc.Duration(), a.now())
	a.metrics.ObserveSlotQuery(scope(q), time.Since(started).Seconds(), count(seq))
	return seq, nil
}

// SlotsByStaff returns one independent slot list per active staff member,
// ordered by name, for a query that names no staff member.
func (a *Allocator) SlotsByStaff(ctx context.Context, q Query) ([]StaffSlots, error) {
	ctx, span := tracer.Start(ctx, "slots.Allocator.SlotsByStaff")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.id", q.ClinicID.String()))
	started := time.Now()

	q.StaffID = nil
	c, svc, err := a.load(ctx, q)
	if err != nil {
		return nil, err
	}
	staff, err := a.clinics.ListStaff(ctx, q.ClinicID, true)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	now := a.now()
	total := 0
	out := make([]StaffSlots, 0, len(staff))
	for _, st := range staff {
		sq := q
		sq.StaffID = &st.ID
		free, err := a.freeTime(ctx, c, sq)
		if err != nil {
			return nil, err
		}
		times := slices.Collect(a.slotsIn(c, free, svc.Duration(), now))
		total += len(times)
		out = append(out, StaffSlots{Staff: st, Slots: times})
	}
	a.metrics.ObserveSlotQuery("by_staff", time.Since(started).Seconds(), total)
	return out, nil
}

func (a *Allocator) load(ctx context.Context, q Query) (*clinic.Clinic, *clinic.Service, error) {
	c, err := a.clinics.GetClinic(ctx, q.ClinicID)
	if err != nil {
		return nil, nil, configError(err)
	}
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", appointment.ErrConfiguration, err)
	}
	svc, err := a.clinics.GetService(ctx, q.ClinicID, q.ServiceID)
	if err != nil {
		return nil, nil, configError(err)
	}
	if svc.DurationMinutes <= 0 {
		return nil, nil, configError(fmt.Errorf("service %s has no duration", svc.ID))
	}
	if q.StaffID != nil {
		st, err := a.clinics.GetStaff(ctx, q.ClinicID, *q.StaffID)
		if err != nil {
			return nil, nil, configError(err)
		}
		if !st.Active {
			return nil, nil, configError(fmt.Errorf("%w: staff %s", clinic.ErrInactive, st.ID))
		}
	}
	if q.ResourceID != nil {
		res, err := a.clinics.GetResource(ctx, q.ClinicID, *q.ResourceID)
		if err != nil {
			return nil, nil, configError(err)
		}
		if !res.Active {
			return nil, nil, configError(fmt.Errorf("%w: resource %s", clinic.ErrInactive, res.ID))
		}
	}
	return c, svc, nil
}

func (a *Allocator) freeTime(ctx context.Context, c *clinic.Clinic, q Query) (interval.Set, error) {
	day := c.DayWindow(q.Date)

	open, err := a.availability.OpenIntervals(ctx, c, q.StaffID, day)
	if err != nil {
		return nil, err
	}
	if open.Empty() {
		return open, nil
	}

	var busy interval.Set
	if q.StaffID != nil {
		staffBusy, err := appointment.OccupiedIntervals(ctx, a.ledger, c.ID, appointment.Target{StaffID: q.StaffID}, day)
		if err != nil {
			return nil, err
		}
		busy = interval.Union(busy, staffBusy)
	}
	if q.ResourceID != nil {
		resourceBusy, err := appointment.OccupiedIntervals(ctx, a.ledger, c.ID, appointment.Target{ResourceID: q.ResourceID}, day)
		if err != nil {
			return nil, err
		}
		busy = interval.Union(busy, resourceBusy)
	}
	return interval.Subtract(open, busy), nil
}

// slotsIn walks each free interval on a wall-clock grid of the granularity
// counted from the clinic-local midnight of the interval's day. Local times
// repeated or skipped by a DST change are emitted at most once, in order.
func (a *Allocator) slotsIn(c *clinic.Clinic, free interval.Set, d time.Duration, now time.Time) iter.Seq[time.Time] {
	step := int(a.granularity / time.Minute)
	loc := c.Location()
	return func(yield func(time.Time) bool) {
		var prev time.Time
		for _, iv := range free {
			day := c.LocalDate(iv.Start)
			for k := firstStep(iv.Start.In(loc), step); ; k++ {
				t := time.Date(day.Year(), day.Month(), day.Day(), 0, k*step, 0, 0, loc)
				if t.Before(iv.Start) || !t.After(prev) {
					continue
				}
				if t.Add(d).After(iv.End) {
					break
				}
				prev = t
				if t.Before(now) {
					continue
				}
				if !yield(t) {
					return
				}
			}
		}
	}
}

// firstStep is the index of the first grid line at or after the wall-clock
// time of lt.
func firstStep(lt time.Time, step int) int {
	minutes := lt.Hour()*60 + lt.Minute()
	if lt.Second() > 0 || lt.Nanosecond() > 0 {
		minutes++
	}
	return (minutes + step - 1) / step
}

func configError(err error) error {
	if errors.Is(err, appointment.ErrConfiguration) {
		return err
	}
	switch {
	case errors.Is(err, clinic.ErrClinicNotFound),
		errors.Is(err, clinic.ErrServiceNotFound),
		errors.Is(err, clinic.ErrStaffNotFound),
		errors.Is(err, clinic.ErrResourceNotFound),
		errors.Is(err, clinic.ErrInactive):
		return fmt.Errorf("%w: %w", appointment.ErrConfiguration, err)
	}
	return err
}

func scope(q Query) string {
	switch {
	case q.StaffID != nil:
		return "staff"
	case q.ResourceID != nil:
		return "resource"
	default:
		return "clinic"
	}
}

func count(seq iter.Seq[time.Time]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
