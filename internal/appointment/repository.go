package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// LedgerReader is the booking ledger's read view.
type LedgerReader interface {
	// Occupied returns non-canceled appointments of the clinic overlapping
	// window whose staff equals target.StaffID or whose resource equals
	// target.ResourceID, ordered by start.
	Occupied(ctx context.Context, clinicID uuid.UUID, target Target, window interval.Interval) ([]Occupancy, error)
}

// LedgerTx is the ledger inside an atomic reservation.
type LedgerTx interface {
	LedgerReader

	GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	Insert(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateSchedule persists start, duration, staff and resource of a.
	UpdateSchedule(ctx context.Context, a Appointment) (*Appointment, error)
	InsertEvent(ctx context.Context, ev EventLog) error
}

type ListFilter struct {
	Window          interval.Interval
	StaffID         *uuid.UUID
	ResourceID      *uuid.UUID
	IncludeCanceled bool
}

// Repository contains all storage interactions needed by the guard and the
// service.
type Repository interface {
	LedgerReader

	// Atomically runs fn with exclusive access to the ledger rows named by
	// keys. Everything fn reads and writes commits together or not at all.
	// Contention surfaces as ErrTransient.
	Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx LedgerTx) error) error

	GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, clinicID uuid.UUID, filter ListFilter) ([]Appointment, error)

	// UpdateStatus moves id from one status to another; it returns
	// ErrAppointmentNotFound when the row is not currently in from.
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to Status) (*Appointment, error)

	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// OccupiedIntervals returns the merged busy time for target inside window.
func OccupiedIntervals(ctx context.Context, ledger LedgerReader, clinicID uuid.UUID, target Target, window interval.Interval) (interval.Set, error) {
	if target.Empty() {
		return interval.Set{}, nil
	}
	entries, err := ledger.Occupied(ctx, clinicID, target, window)
	if err != nil {
		return nil, fmt.Errorf("load occupied intervals: %w", err)
	}
	ivs := make([]interval.Interval, 0, len(entries))
	for _, e := range entries {
		ivs = append(ivs, e.Interval)
	}
	return interval.Normalize(ivs...), nil
}
