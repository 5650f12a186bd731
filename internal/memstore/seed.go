package memstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
)

// Demo identifiers are fixed so local clients can hard-code them.
var (
	DemoClinicID  = uuid.MustParse("8f5d2d0e-4d8c-4c43-9a55-0d6a1f3c7b01")
	DemoVetID     = uuid.MustParse("0c8f7a52-1f0b-4d36-8c1e-5b7e0f6e2a11")
	DemoNurseID   = uuid.MustParse("4b2e9d6a-7f31-4a0c-b8d5-2c9a6e1f3b12")
	DemoRoomID    = uuid.MustParse("9a1c4e7b-3d25-4f68-a0b9-6e8d2c5f1a21")
	DemoVanID     = uuid.MustParse("2d7b5f9e-8c14-4a36-b2e0-7f1a9c3d5e22")
	DemoCheckupID = uuid.MustParse("6e3a8c1d-5b97-4f20-9d4e-1a7c8b2f6d31")
	DemoVaccineID = uuid.MustParse("c4f1b7e2-9a63-4d58-8e0b-3f6d2a9c1e32")
)

// SeedDemo loads one clinic with Monday to Friday 09:00-17:00 hours, a
// Saturday morning, two staff members, a room, a van and two services.
func (s *Store) SeedDemo() {
	weekday := []clinic.DayHours{{Open: "09:00", Close: "17:00"}}
	s.AddClinic(clinic.Clinic{
		ID:       DemoClinicID,
		Slug:     "happy-paws",
		Name:     "Happy Paws Veterinary",
		Timezone: "UTC",
		Hours: clinic.WeeklyHours{
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
			time.Saturday:  {{Open: "09:00", Close: "12:00"}},
		},
	})
	s.AddStaff(clinic.Staff{ID: DemoVetID, ClinicID: DemoClinicID, Name: "Dr. Ana Silva", Role: clinic.RoleVet, Active: true})
	s.AddStaff(clinic.Staff{ID: DemoNurseID, ClinicID: DemoClinicID, Name: "Bruno Costa", Role: clinic.RoleNurse, Active: true})
	s.AddResource(clinic.Resource{ID: DemoRoomID, ClinicID: DemoClinicID, Name: "Exam Room 1", Type: clinic.ResourceRoom, Active: true})
	s.AddResource(clinic.Resource{ID: DemoVanID, ClinicID: DemoClinicID, Name: "Mobile Unit", Type: clinic.ResourceVehicle, Active: true})
	s.AddService(clinic.Service{ID: DemoCheckupID, ClinicID: DemoClinicID, Name: "Checkup", DurationMinutes: 30, PriceCents: 5000, Active: true})
	s.AddService(clinic.Service{ID: DemoVaccineID, ClinicID: DemoClinicID, Name: "Vaccination", DurationMinutes: 15, PriceCents: 3500, Active: true})
}
