package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type ledger struct {
	s *Store
}

// Atomically runs fn under the ledger mutex. Writes are staged on the
// transaction and applied only when fn succeeds.
func (l *ledger) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx appointment.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.s.ledgerMu.Lock()
	defer l.s.ledgerMu.Unlock()

	tx := &memTx{s: l.s, staged: make(map[uuid.UUID]appointment.Appointment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, a := range tx.staged {
		l.s.appointments[id] = a
	}
	for _, ev := range tx.events {
		l.s.appendEventLocked(ev)
	}
	return nil
}

func (l *ledger) Occupied(ctx context.Context, clinicID uuid.UUID, target appointment.Target, window interval.Interval) ([]appointment.Occupancy, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return occupied(l.s.appointments, nil, clinicID, target, window), nil
}

func (l *ledger) GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*appointment.Appointment, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	a, ok := l.s.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (l *ledger) ListAppointments(ctx context.Context, clinicID uuid.UUID, filter appointment.ListFilter) ([]appointment.Appointment, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []appointment.Appointment
	for _, a := range l.s.appointments {
		if a.ClinicID != clinicID || !a.Interval().Overlaps(filter.Window) {
			continue
		}
		if filter.StaffID != nil && (a.StaffID == nil || *a.StaffID != *filter.StaffID) {
			continue
		}
		if filter.ResourceID != nil && (a.ResourceID == nil || *a.ResourceID != *filter.ResourceID) {
			continue
		}
		if a.Status == appointment.StatusCanceled && !filter.IncludeCanceled {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

// UpdateStatus takes the ledger mutex so a status change never interleaves
// with a staged move of the same appointment.
func (l *ledger) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	l.s.ledgerMu.Lock()
	defer l.s.ledgerMu.Unlock()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	a, ok := l.s.appointments[id]
	if !ok || a.ClinicID != clinicID || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	if to != appointment.StatusPending {
		a.ExpiresAt = nil
	}
	a.UpdatedAt = l.s.now().UTC()
	l.s.appointments[id] = a
	return &a, nil
}

func (l *ledger) FindExpiredPending(ctx context.Context, now time.Time) ([]appointment.Appointment, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []appointment.Appointment
	for _, a := range l.s.appointments {
		if a.Status == appointment.StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (l *ledger) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.appendEventLocked(ev)
	return nil
}

type memTx struct {
	s      *Store
	staged map[uuid.UUID]appointment.Appointment
	events []appointment.EventLog
}

func (t *memTx) Occupied(ctx context.Context, clinicID uuid.UUID, target appointment.Target, window interval.Interval) ([]appointment.Occupancy, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return occupied(t.s.appointments, t.staged, clinicID, target, window), nil
}

func (t *memTx) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*appointment.Appointment, error) {
	if a, ok := t.staged[id]; ok && a.ClinicID == clinicID {
		return &a, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (t *memTx) Insert(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	now := t.s.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	t.staged[a.ID] = a
	return &a, nil
}

func (t *memTx) UpdateSchedule(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	current, err := t.GetForUpdate(ctx, a.ClinicID, a.ID)
	if err != nil {
		return nil, err
	}
	current.StaffID = a.StaffID
	current.ResourceID = a.ResourceID
	current.Start = a.Start
	current.DurationMinutes = a.DurationMinutes
	current.UpdatedAt = t.s.now().UTC()
	t.staged[current.ID] = *current
	return current, nil
}

func (t *memTx) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	t.events = append(t.events, ev)
	return nil
}

// occupied scans committed appointments with staged ones layered on top.
func occupied(committed, staged map[uuid.UUID]appointment.Appointment, clinicID uuid.UUID, target appointment.Target, window interval.Interval) []appointment.Occupancy {
	if target.Empty() {
		return nil
	}
	var out []appointment.Occupancy
	consider := func(a appointment.Appointment) {
		if a.ClinicID != clinicID || !a.Status.Occupies() {
			return
		}
		iv := a.Interval()
		if !iv.Overlaps(window) {
			return
		}
		staffHit := target.StaffID != nil && a.StaffID != nil && *a.StaffID == *target.StaffID
		resourceHit := target.ResourceID != nil && a.ResourceID != nil && *a.ResourceID == *target.ResourceID
		if !staffHit && !resourceHit {
			return
		}
		out = append(out, appointment.Occupancy{
			AppointmentID: a.ID,
			StaffID:       a.StaffID,
			ResourceID:    a.ResourceID,
			Interval:      iv,
		})
	}
	for id, a := range committed {
		if _, ok := staged[id]; ok {
			continue
		}
		consider(a)
	}
	for _, a := range staged {
		consider(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return out
}
