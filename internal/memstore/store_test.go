package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

var monday = time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)

func newAppointment(staffID uuid.UUID, h int) appointment.Appointment {
	return appointment.Appointment{
		ID:              uuid.New(),
		ClinicID:        DemoClinicID,
		StaffID:         &staffID,
		ServiceID:       DemoCheckupID,
		Start:           monday.Add(time.Duration(h) * time.Hour),
		DurationMinutes: 30,
		Status:          appointment.StatusConfirmed,
	}
}

func TestAtomicallyCommitsOnSuccess(t *testing.T) {
	s := New()
	s.SeedDemo()
	ledger := s.Appointments()
	ctx := context.Background()

	a := newAppointment(DemoVetID, 9)
	err := ledger.Atomically(ctx, []string{"staff:" + DemoVetID.String()}, func(ctx context.Context, tx appointment.LedgerTx) error {
		if _, err := tx.Insert(ctx, a); err != nil {
			return err
		}
		occ, err := tx.Occupied(ctx, DemoClinicID, a.Target(), a.Interval())
		require.NoError(t, err)
		assert.Len(t, occ, 1, "staged insert is visible inside the transaction")
		return tx.InsertEvent(ctx, appointment.EventLog{ClinicID: DemoClinicID, EventType: "APPOINTMENT_RESERVED", AppointmentID: &a.ID})
	})
	require.NoError(t, err)

	got, err := ledger.GetAppointment(ctx, DemoClinicID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Start, got.Start)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, int64(1), s.Events()[0].ID)
}

func TestAtomicallyDiscardsOnError(t *testing.T) {
	s := New()
	s.SeedDemo()
	ledger := s.Appointments()
	ctx := context.Background()
	boom := errors.New("boom")

	a := newAppointment(DemoVetID, 9)
	err := ledger.Atomically(ctx, nil, func(ctx context.Context, tx appointment.LedgerTx) error {
		_, _ = tx.Insert(ctx, a)
		_ = tx.InsertEvent(ctx, appointment.EventLog{ClinicID: DemoClinicID, EventType: "x"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = ledger.GetAppointment(ctx, DemoClinicID, a.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
	assert.Empty(t, s.Events())
}

func TestOccupiedMatchesEitherDimensionAndSkipsCanceled(t *testing.T) {
	s := New()
	s.SeedDemo()
	ledger := s.Appointments()
	ctx := context.Background()

	vet := newAppointment(DemoVetID, 9)
	nurseInRoom := newAppointment(DemoNurseID, 10)
	room := DemoRoomID
	nurseInRoom.ResourceID = &room
	canceled := newAppointment(DemoVetID, 11)
	canceled.Status = appointment.StatusCanceled

	require.NoError(t, ledger.Atomically(ctx, nil, func(ctx context.Context, tx appointment.LedgerTx) error {
		for _, a := range []appointment.Appointment{vet, nurseInRoom, canceled} {
			if _, err := tx.Insert(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	vetID := DemoVetID
	day := interval.New(monday, monday.Add(24*time.Hour))
	occ, err := ledger.Occupied(ctx, DemoClinicID, appointment.Target{StaffID: &vetID, ResourceID: &room}, day)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.Equal(t, vet.ID, occ[0].AppointmentID)
	assert.Equal(t, nurseInRoom.ID, occ[1].AppointmentID)

	occ, err = ledger.Occupied(ctx, DemoClinicID, appointment.Target{}, day)
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestUpdateStatusIsConditional(t *testing.T) {
	s := New()
	s.SeedDemo()
	ledger := s.Appointments()
	ctx := context.Background()

	a := newAppointment(DemoVetID, 9)
	a.Status = appointment.StatusPending
	exp := monday
	a.ExpiresAt = &exp
	require.NoError(t, ledger.Atomically(ctx, nil, func(ctx context.Context, tx appointment.LedgerTx) error {
		_, err := tx.Insert(ctx, a)
		return err
	}))

	updated, err := ledger.UpdateStatus(ctx, DemoClinicID, a.ID, appointment.StatusPending, appointment.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, updated.Status)
	assert.Nil(t, updated.ExpiresAt)

	_, err = ledger.UpdateStatus(ctx, DemoClinicID, a.ID, appointment.StatusPending, appointment.StatusCanceled)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestDirectoryIsTenantScoped(t *testing.T) {
	s := New()
	s.SeedDemo()
	other := uuid.New()
	s.AddClinic(clinic.Clinic{ID: other, Name: "Other", Timezone: "UTC"})
	repo := s.Clinics()
	ctx := context.Background()

	_, err := repo.GetStaff(ctx, other, DemoVetID)
	assert.ErrorIs(t, err, clinic.ErrStaffNotFound)
	_, err = repo.GetService(ctx, other, DemoCheckupID)
	assert.ErrorIs(t, err, clinic.ErrServiceNotFound)

	staff, err := repo.ListStaff(ctx, DemoClinicID, true)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "Bruno Costa", staff[0].Name)
}

func TestRuleSoftDelete(t *testing.T) {
	s := New()
	s.SeedDemo()
	rules := s.Rules()
	ctx := context.Background()

	rule, err := rules.Create(ctx, availability.Rule{
		ClinicID: DemoClinicID,
		Kind:     availability.KindBlocked,
		Start:    monday.Add(12 * time.Hour),
		End:      monday.Add(13 * time.Hour),
	})
	require.NoError(t, err)

	day := interval.New(monday, monday.Add(24*time.Hour))
	active, err := rules.ListActive(ctx, DemoClinicID, nil, day)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = rules.SoftDelete(ctx, DemoClinicID, rule.ID, monday)
	require.NoError(t, err)
	_, err = rules.SoftDelete(ctx, DemoClinicID, rule.ID, monday)
	assert.ErrorIs(t, err, availability.ErrRuleNotFound)

	active, err = rules.ListActive(ctx, DemoClinicID, nil, day)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := rules.List(ctx, DemoClinicID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, availability.StatusDeleted, all[0].Status)
}
