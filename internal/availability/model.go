// Package availability stores dated BLOCKED/VACATION/OVERRIDE rules and
// composes them with the business calendar into bookable time.
package availability

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type Kind string

const (
	KindBlocked  Kind = "BLOCKED"
	KindVacation Kind = "VACATION"
	KindOverride Kind = "OVERRIDE"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBlocked, KindVacation, KindOverride:
		return true
	}
	return false
}

// Subtracts reports whether the kind removes time from availability.
func (k Kind) Subtracts() bool {
	return k == KindBlocked || k == KindVacation
}

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusDeleted Status = "DELETED"
)

var (
	ErrRuleNotFound = errors.New("availability rule not found")
	ErrInvalidRule  = errors.New("invalid availability rule")
)

// Rule is written once; afterwards only Status (and DeletedAt) may change,
// from ACTIVE to DELETED.
type Rule struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	StaffID   *uuid.UUID // nil = clinic-wide
	Kind      Kind
	Start     time.Time
	End       time.Time
	Notes     string
	Status    Status
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (r *Rule) Active() bool {
	return r.Status == StatusActive
}

func (r *Rule) Interval() interval.Interval {
	return interval.New(r.Start, r.End)
}

func (r *Rule) ClinicWide() bool {
	return r.StaffID == nil
}

// AppliesTo reports whether the rule affects staffID. Clinic-wide rules apply
// to everyone, including clinic-level queries (staffID nil).
func (r *Rule) AppliesTo(staffID *uuid.UUID) bool {
	if r.StaffID == nil {
		return true
	}
	return staffID != nil && *r.StaffID == *staffID
}
