// Package clinic holds the tenant directory (clinics, services, staff and
// resources) and the business calendar derived from a clinic's hours.
package clinic

import (
	"time"

	"github.com/google/uuid"
)

// DayHours is one opening window in clinic-local wall-clock time.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "17:00"; "24:00" closes at midnight
}

// WeeklyHours maps a weekday to its opening windows. A weekday that is
// missing or has no windows is closed. Split hours use several windows.
type WeeklyHours map[time.Weekday][]DayHours

type Holiday struct {
	ID       uuid.UUID `json:"id"`
	ClinicID uuid.UUID `json:"clinic_id"`
	Name     string    `json:"name"`
	Date     string    `json:"date"` // "2006-01-02", clinic-local
}

type Clinic struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	Timezone  string // e.g. "Asia/Colombo"
	Hours     WeeklyHours
	Holidays  []Holiday
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	Name            string
	DurationMinutes int
	PriceCents      int
	DepositCents    *int
	Active          bool
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type StaffRole string

const (
	RoleVet    StaffRole = "VET"
	RoleNurse  StaffRole = "NURSE"
	RoleDriver StaffRole = "DRIVER"
	RoleAdmin  StaffRole = "ADMIN"
)

type Staff struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
	Name     string
	Role     StaffRole
	Active   bool
}

type ResourceType string

const (
	ResourceRoom      ResourceType = "ROOM"
	ResourceVehicle   ResourceType = "VEHICLE"
	ResourceEquipment ResourceType = "EQUIPMENT"
)

type Resource struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
	Name     string
	Type     ResourceType
	Active   bool
}
