package appointment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCanceled},
	StatusConfirmed:  {StatusCheckedIn, StatusCanceled},
	StatusCheckedIn:  {StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusInProgress, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Occupies reports whether an appointment in this status holds its interval
// in the ledger.
func (s Status) Occupies() bool {
	return s.Valid() && s != StatusCanceled
}

// Movable reports whether the appointment may still be rescheduled.
func (s Status) Movable() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	StaffID         *uuid.UUID
	ResourceID      *uuid.UUID
	ServiceID       uuid.UUID
	PetID           *uuid.UUID
	Start           time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a *Appointment) End() time.Time {
	return a.Start.Add(a.Duration())
}

func (a *Appointment) Interval() interval.Interval {
	return interval.Of(a.Start, a.Duration())
}

func (a *Appointment) Target() Target {
	return Target{StaffID: a.StaffID, ResourceID: a.ResourceID}
}

// Target names the ledger dimensions an appointment occupies.
type Target struct {
	StaffID    *uuid.UUID
	ResourceID *uuid.UUID
}

func (t Target) Empty() bool {
	return t.StaffID == nil && t.ResourceID == nil
}

// Keys returns the lock keys for the target in a stable order.
func (t Target) Keys() []string {
	var keys []string
	if t.StaffID != nil {
		keys = append(keys, "staff:"+t.StaffID.String())
	}
	if t.ResourceID != nil {
		keys = append(keys, "resource:"+t.ResourceID.String())
	}
	sort.Strings(keys)
	return keys
}

// Occupancy is one ledger entry: a non-canceled appointment's interval.
type Occupancy struct {
	AppointmentID uuid.UUID
	StaffID       *uuid.UUID
	ResourceID    *uuid.UUID
	Interval      interval.Interval
}

type EventLog struct {
	ID            int64
	ClinicID      uuid.UUID
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}
