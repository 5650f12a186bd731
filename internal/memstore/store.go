// Package memstore keeps the directory, availability rules and booking
// ledger in process memory. It backs STORE_DRIVER=memory and the tests.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
)

type Store struct {
	mu sync.RWMutex
	// ledgerMu serializes every ledger write, mirroring the advisory locks
	// of the Postgres ledger with a single global lock.
	ledgerMu sync.Mutex

	clinics      map[uuid.UUID]clinic.Clinic
	services     map[uuid.UUID]clinic.Service
	staff        map[uuid.UUID]clinic.Staff
	resources    map[uuid.UUID]clinic.Resource
	rules        map[uuid.UUID]availability.Rule
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.EventLog
	nextEventID  int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		clinics:      make(map[uuid.UUID]clinic.Clinic),
		services:     make(map[uuid.UUID]clinic.Service),
		staff:        make(map[uuid.UUID]clinic.Staff),
		resources:    make(map[uuid.UUID]clinic.Resource),
		rules:        make(map[uuid.UUID]availability.Rule),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		now:          time.Now,
	}
}

// Clinics, Rules and Appointments expose the store through each package's
// repository interface.
func (s *Store) Clinics() clinic.Repository { return clinicRepo{s} }

func (s *Store) Rules() availability.Repository { return ruleRepo{s} }

func (s *Store) Appointments() appointment.Repository { return &ledger{s} }

func (s *Store) AddClinic(c clinic.Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	s.clinics[c.ID] = c
}

func (s *Store) AddService(svc clinic.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) AddStaff(st clinic.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = st
}

func (s *Store) AddResource(r clinic.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ID] = r
}

// Events returns a copy of the event log, oldest first.
func (s *Store) Events() []appointment.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.EventLog(nil), s.events...)
}

func (s *Store) appendEventLocked(ev appointment.EventLog) {
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	s.events = append(s.events, ev)
}

func sortAppointments(appts []appointment.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Start.Equal(appts[j].Start) {
			return appts[i].Start.Before(appts[j].Start)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}
