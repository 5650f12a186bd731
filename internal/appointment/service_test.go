package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vet-clinic-scheduling/internal/appointment"
	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/memstore"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

func book(staff *uuid.UUID, start time.Time) appointment.BookRequest {
	return appointment.BookRequest{
		ClinicID:  memstore.DemoClinicID,
		ServiceID: memstore.DemoCheckupID,
		StaffID:   staff,
		Start:     start,
	}
}

func TestBookUsesServiceDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)
	assert.Equal(t, 30, a.DurationMinutes)
	assert.Equal(t, at(9, 30), a.End())
	assert.Equal(t, appointment.StatusPending, a.Status)
	assert.Nil(t, a.ExpiresAt, "staff bookings are not holds")

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "APPOINTMENT_RESERVED", events[0].EventType)
}

func TestBookUnknownServiceIsConfiguration(t *testing.T) {
	f := newFixture(t)
	req := book(ptr(memstore.DemoVetID), at(9, 0))
	req.ServiceID = uuid.New()

	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, appointment.ErrConfiguration)
}

func TestTransitionFollowsStatusMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, memstore.DemoClinicID, a.ID, appointment.StatusCompleted)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)

	for _, next := range []appointment.Status{
		appointment.StatusConfirmed,
		appointment.StatusCheckedIn,
		appointment.StatusInProgress,
		appointment.StatusCompleted,
	} {
		updated, err := f.svc.Transition(ctx, memstore.DemoClinicID, a.ID, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, updated.Status)
	}

	_, err = f.svc.Cancel(ctx, memstore.DemoClinicID, a.ID)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestCancelReleasesTheInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vet := ptr(memstore.DemoVetID)

	a, err := f.svc.Book(ctx, book(vet, at(9, 0)))
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, book(vet, at(9, 0)))
	require.ErrorIs(t, err, appointment.ErrConflict)

	_, err = f.svc.Cancel(ctx, memstore.DemoClinicID, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, book(vet, at(9, 0)))
	assert.NoError(t, err)
}

func TestCrossTenantAppointmentReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestPendingHoldsExpire(t *testing.T) {
	store := memstore.New()
	store.SeedDemo()
	ledger := store.Appointments()
	guard := appointment.NewGuard(ledger, store.Clinics(), availability.NewResolver(store.Rules()), appointment.GuardOptions{Logger: logging.Discard()})
	svc := appointment.NewService(ledger, guard, store.Clinics(), time.Millisecond, nil, logging.Discard())
	ctx := context.Background()

	req := book(ptr(memstore.DemoVetID), at(9, 0))
	req.Hold = true
	held, err := svc.Book(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, held.ExpiresAt)

	req.Start = at(10, 0)
	confirmed, err := svc.Book(ctx, req)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.Transition(ctx, memstore.DemoClinicID, confirmed.ID, appointment.StatusConfirmed)
	assert.ErrorIs(t, err, appointment.ErrHoldExpired)

	n, err := svc.ExpirePendingHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the lapsed confirm already canceled the second hold")

	got, err := svc.Get(ctx, memstore.DemoClinicID, held.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCanceled, got.Status)

	n, err = svc.ExpirePendingHolds(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListForDayFiltersByResource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := book(ptr(memstore.DemoNurseID), at(9, 0))
	req.ResourceID = ptr(memstore.DemoVanID)
	van, err := f.svc.Book(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)

	all, err := f.svc.ListForDay(ctx, memstore.DemoClinicID, monday, nil, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	driver, err := f.svc.ListForDay(ctx, memstore.DemoClinicID, monday, nil, ptr(memstore.DemoVanID), false)
	require.NoError(t, err)
	require.Len(t, driver, 1)
	assert.Equal(t, van.ID, driver[0].ID)
}

func TestRescheduleKeepsStaffByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, memstore.DemoClinicID, a.ID, appointment.RescheduleRequest{Start: at(15, 0)})
	require.NoError(t, err)
	assert.Equal(t, at(15, 0), moved.Start)
	assert.Equal(t, memstore.DemoVetID, *moved.StaffID)
	assert.Equal(t, 30, moved.DurationMinutes)
}

func TestRunExpirySweepsUntilCanceled(t *testing.T) {
	store := memstore.New()
	store.SeedDemo()
	ledger := store.Appointments()
	guard := appointment.NewGuard(ledger, store.Clinics(), availability.NewResolver(store.Rules()), appointment.GuardOptions{Logger: logging.Discard()})
	svc := appointment.NewService(ledger, guard, store.Clinics(), time.Millisecond, nil, logging.Discard())

	req := book(ptr(memstore.DemoVetID), at(9, 0))
	req.Hold = true
	held, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunExpiry(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		a, err := svc.Get(context.Background(), memstore.DemoClinicID, held.ID)
		return err == nil && a.Status == appointment.StatusCanceled
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunExpiry did not return after cancel")
	}
}

func TestCheckMoveAgreesWithReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vet := ptr(memstore.DemoVetID)

	a, err := f.svc.Book(ctx, book(vet, at(9, 0)))
	require.NoError(t, err)
	b, err := f.svc.Book(ctx, book(vet, at(10, 0)))
	require.NoError(t, err)

	// no staff given: the move keeps the vet, so B is in the way
	drag := appointment.RescheduleRequest{Start: at(10, 0)}
	conflicts, err := f.svc.CheckMove(ctx, memstore.DemoClinicID, a.ID, drag)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, appointment.ReasonStaffBusy, conflicts[0].Reason)
	assert.Equal(t, b.ID, conflicts[0].AppointmentID)

	_, err = f.svc.Reschedule(ctx, memstore.DemoClinicID, a.ID, drag)
	assert.ErrorIs(t, err, appointment.ErrConflict)

	// a longer service does not stretch an existing appointment
	svc, err := f.store.Clinics().GetService(ctx, memstore.DemoClinicID, memstore.DemoCheckupID)
	require.NoError(t, err)
	svc.DurationMinutes = 60
	f.store.AddService(*svc)

	drag = appointment.RescheduleRequest{Start: at(9, 30)}
	conflicts, err = f.svc.CheckMove(ctx, memstore.DemoClinicID, a.ID, drag)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	moved, err := f.svc.Reschedule(ctx, memstore.DemoClinicID, a.ID, drag)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), moved.End())
}

func TestCheckMoveRejectsFinishedAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Book(ctx, book(ptr(memstore.DemoVetID), at(9, 0)))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, memstore.DemoClinicID, a.ID)
	require.NoError(t, err)

	_, err = f.svc.CheckMove(ctx, memstore.DemoClinicID, a.ID, appointment.RescheduleRequest{Start: at(11, 0)})
	assert.ErrorIs(t, err, appointment.ErrNotMovable)
}
