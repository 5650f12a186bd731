package appointment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

var appointmentRowColumns = []string{
	"id", "clinic_id", "staff_id", "resource_id", "service_id", "pet_id",
	"start_at", "duration_minutes", "status", "notes", "expires_at", "created_at", "updated_at",
}

func appointmentRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		a.ID, a.ClinicID, a.StaffID, a.ResourceID, a.ServiceID, a.PetID,
		a.Start, a.DurationMinutes, a.Status, a.Notes, a.ExpiresAt, a.CreatedAt, a.UpdatedAt,
	)
}

func sampleAppointment() Appointment {
	staff := uuid.New()
	now := time.Now().UTC()
	return Appointment{
		ID:              uuid.New(),
		ClinicID:        uuid.New(),
		StaffID:         &staff,
		ResourceID:      (*uuid.UUID)(nil),
		ServiceID:       uuid.New(),
		PetID:           (*uuid.UUID)(nil),
		Start:           time.Date(2025, 12, 8, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Status:          StatusConfirmed,
		ExpiresAt:       (*time.Time)(nil),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPgAtomicallyLocksKeysInOrderAndCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	repo := NewPgRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WithArgs("resource:r").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WithArgs("staff:s").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("INSERT INTO appointments").WillReturnRows(appointmentRow(a))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var created *Appointment
	err = repo.Atomically(context.Background(), []string{"staff:s", "resource:r"}, func(ctx context.Context, tx LedgerTx) error {
		var err error
		created, err = tx.Insert(ctx, a)
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, newEvent(created, "APPOINTMENT_RESERVED", nil))
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAtomicallyMapsExclusionViolationToConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectQuery("INSERT INTO appointments").WillReturnError(&pgconn.PgError{
		Code:           "23P01",
		ConstraintName: "appointments_no_staff_overlap",
	})
	mock.ExpectRollback()

	err = NewPgRepository(mock).Atomically(context.Background(), nil, func(ctx context.Context, tx LedgerTx) error {
		_, err := tx.Insert(ctx, sampleAppointment())
		return err
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ReasonStaffBusy, ce.Conflicts[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAtomicallyMapsLockTimeoutToTransient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WithArgs("staff:s").
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err = NewPgRepository(mock).Atomically(context.Background(), []string{"staff:s"}, func(ctx context.Context, tx LedgerTx) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgOccupiedScansIntervals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	staff := uuid.New()
	window := interval.New(time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC))
	start := time.Date(2025, 12, 8, 9, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery("FROM appointments").
		WithArgs(clinicID, window.Start, window.End, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "staff_id", "resource_id", "start_at", "end_at"}).
			AddRow(id, &staff, (*uuid.UUID)(nil), start, start.Add(30*time.Minute)))

	occ, err := NewPgRepository(mock).Occupied(context.Background(), clinicID, Target{StaffID: &staff}, window)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, id, occ[0].AppointmentID)
	assert.Equal(t, interval.New(start, start.Add(30*time.Minute)), occ[0].Interval)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgOccupiedSkipsQueryForEmptyTarget(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	occ, err := NewPgRepository(mock).Occupied(context.Background(), uuid.New(), Target{}, interval.Interval{})
	require.NoError(t, err)
	assert.Empty(t, occ)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusNotInExpectedState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, id := uuid.New(), uuid.New()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, clinicID, StatusConfirmed, StatusPending).
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns))

	_, err = NewPgRepository(mock).UpdateStatus(context.Background(), clinicID, id, StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetAppointmentIsClinicScoped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	mock.ExpectQuery("FROM appointments").WithArgs(a.ID, a.ClinicID).WillReturnRows(appointmentRow(a))

	got, err := NewPgRepository(mock).GetAppointment(context.Background(), a.ClinicID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Start, got.Start)
	assert.Equal(t, *a.StaffID, *got.StaffID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
