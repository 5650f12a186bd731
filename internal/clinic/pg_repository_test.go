package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepositoryGetClinicLoadsCalendar(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM clinics").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"id", "slug", "name", "timezone", "created_at", "updated_at"}).
			AddRow(id, "paws", "Paws & Claws", "UTC", now, now),
	)
	mock.ExpectQuery("FROM clinic_hours").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"weekday", "open_time", "close_time"}).
			AddRow(int16(1), "09:00", "12:00").
			AddRow(int16(1), "13:00", "17:00").
			AddRow(int16(2), "09:00", "17:00"),
	)
	mock.ExpectQuery("FROM clinic_holidays").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"id", "clinic_id", "name", "holiday_on"}).
			AddRow(uuid.New(), id, "Vesak", "2025-05-12"),
	)

	c, err := repo.GetClinic(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "Paws & Claws", c.Name)
	assert.Len(t, c.Hours[time.Monday], 2)
	assert.Len(t, c.Hours[time.Tuesday], 1)
	require.Len(t, c.Holidays, 1)
	assert.Equal(t, "2025-05-12", c.Holidays[0].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetClinicNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM clinics").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"id", "slug", "name", "timezone", "created_at", "updated_at"}),
	)

	_, err = NewPgRepository(mock).GetClinic(context.Background(), id)
	assert.ErrorIs(t, err, ErrClinicNotFound)
}

func TestPgRepositoryStaffIsScopedToClinic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	staffID := uuid.New()

	mock.ExpectQuery("FROM staff").WithArgs(staffID, clinicID).WillReturnRows(
		pgxmock.NewRows([]string{"id", "clinic_id", "name", "role", "active"}),
	)

	_, err = NewPgRepository(mock).GetStaff(context.Background(), clinicID, staffID)
	assert.ErrorIs(t, err, ErrStaffNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	mock.ExpectQuery("FROM staff").WithArgs(clinicID, true).WillReturnRows(
		pgxmock.NewRows([]string{"id", "clinic_id", "name", "role", "active"}).
			AddRow(uuid.New(), clinicID, "Dr. Amara", RoleVet, true).
			AddRow(uuid.New(), clinicID, "Dr. Bandara", RoleVet, true),
	)

	staff, err := NewPgRepository(mock).ListStaff(context.Background(), clinicID, true)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, RoleVet, staff[0].Role)
}
