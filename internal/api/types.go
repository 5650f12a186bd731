package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type CreateAppointmentRequest struct {
	ServiceID  string  `json:"service_id"`
	StaffID    *string `json:"staff_id,omitempty"`
	ResourceID *string `json:"resource_id,omitempty"`
	PetID      *string `json:"pet_id,omitempty"`
	Start      string  `json:"start"`
	Status     string  `json:"status,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Hold       bool    `json:"hold,omitempty"`
}

type CheckAppointmentRequest struct {
	CreateAppointmentRequest
	AppointmentID *string `json:"appointment_id,omitempty"`
	ClearResource bool    `json:"clear_resource,omitempty"`
}

type RescheduleRequest struct {
	Start         string  `json:"start"`
	StaffID       *string `json:"staff_id,omitempty"`
	ResourceID    *string `json:"resource_id,omitempty"`
	ClearResource bool    `json:"clear_resource,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CreateRuleRequest struct {
	StaffID *string `json:"staff_id,omitempty"`
	Kind    string  `json:"kind"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	Notes   string  `json:"notes,omitempty"`
}

type IntervalResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty"`
	ResourceID      *uuid.UUID `json:"resource_id,omitempty"`
	PetID           *uuid.UUID `json:"pet_id,omitempty"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type ConflictResponse struct {
	Reason        string     `json:"reason"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	StaffID       *uuid.UUID `json:"staff_id,omitempty"`
	ResourceID    *uuid.UUID `json:"resource_id,omitempty"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
}

type CheckResponse struct {
	OK        bool               `json:"ok"`
	Conflicts []ConflictResponse `json:"conflicts"`
}

type CalendarResponse struct {
	Date      string             `json:"date"`
	Timezone  string             `json:"timezone"`
	Holiday   *string            `json:"holiday"`
	Open      []IntervalResponse `json:"open"`
	Available []IntervalResponse `json:"available"`
	OpenNow   bool               `json:"open_now"`
	NextOpen  *time.Time         `json:"next_open,omitempty"`
}

type StaffSlotsResponse struct {
	StaffID   uuid.UUID   `json:"staff_id"`
	StaffName string      `json:"staff_name"`
	Slots     []time.Time `json:"slots"`
}

type SlotsResponse struct {
	Date               string               `json:"date"`
	ServiceID          uuid.UUID            `json:"service_id"`
	GranularityMinutes int                  `json:"granularity_minutes"`
	Slots              []time.Time          `json:"slots"`
	ByStaff            []StaffSlotsResponse `json:"by_staff,omitempty"`
}

type RuleResponse struct {
	ID        uuid.UUID  `json:"id"`
	ClinicID  uuid.UUID  `json:"clinic_id"`
	StaffID   *uuid.UUID `json:"staff_id,omitempty"`
	Kind      string     `json:"kind"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Notes     string     `json:"notes,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type ErrorResponse struct {
	Error     string             `json:"error"`
	Details   string             `json:"details,omitempty"`
	Conflicts []ConflictResponse `json:"conflicts,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClinicID:        a.ClinicID,
		ServiceID:       a.ServiceID,
		StaffID:         a.StaffID,
		ResourceID:      a.ResourceID,
		PetID:           a.PetID,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		ExpiresAt:       a.ExpiresAt,
	}
}

func toConflictResponses(conflicts []appointment.Conflict) []ConflictResponse {
	out := make([]ConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		resp := ConflictResponse{
			Reason:     string(c.Reason),
			StaffID:    c.StaffID,
			ResourceID: c.ResourceID,
			Start:      c.Interval.Start,
			End:        c.Interval.End,
		}
		if c.AppointmentID != uuid.Nil {
			id := c.AppointmentID
			resp.AppointmentID = &id
		}
		out = append(out, resp)
	}
	return out
}

func toRuleResponse(r *availability.Rule) RuleResponse {
	return RuleResponse{
		ID:        r.ID,
		ClinicID:  r.ClinicID,
		StaffID:   r.StaffID,
		Kind:      string(r.Kind),
		Start:     r.Start,
		End:       r.End,
		Notes:     r.Notes,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		DeletedAt: r.DeletedAt,
	}
}

func toIntervals(set interval.Set, loc *time.Location) []IntervalResponse {
	out := make([]IntervalResponse, 0, len(set))
	for _, iv := range set {
		out = append(out, IntervalResponse{Start: iv.Start.In(loc), End: iv.End.In(loc)})
	}
	return out
}

func localTimes(times []time.Time, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		out = append(out, t.In(loc))
	}
	return out
}
