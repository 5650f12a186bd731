package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

var ruleRowColumns = []string{"id", "clinic_id", "staff_id", "kind", "starts_at", "ends_at", "notes", "status", "created_at", "deleted_at"}

func TestPgListActiveScopesToClinicAndStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, vet := uuid.New(), uuid.New()
	window := interval.New(monday, monday.AddDate(0, 0, 1))
	now := time.Now().UTC()

	mock.ExpectQuery("FROM availability_rules").
		WithArgs(clinicID, window.Start, window.End, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(ruleRowColumns).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), KindBlocked, at(12, 0), at(13, 0), "lunch", StatusActive, now, (*time.Time)(nil)).
			AddRow(uuid.New(), clinicID, &vet, KindVacation, at(9, 0), at(11, 0), "", StatusActive, now, (*time.Time)(nil)))

	rules, err := NewPgRepository(mock).ListActive(context.Background(), clinicID, &vet, window)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.True(t, rules[0].ClinicWide())
	assert.Equal(t, vet, *rules[1].StaffID)
	assert.Equal(t, KindVacation, rules[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSoftDeleteOnlyActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, id := uuid.New(), uuid.New()
	mock.ExpectQuery("UPDATE availability_rules").
		WithArgs(id, clinicID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(ruleRowColumns))

	_, err = NewPgRepository(mock).SoftDelete(context.Background(), clinicID, id, time.Now())
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateReturnsStoredRule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO availability_rules").
		WithArgs(id, clinicID, pgxmock.AnyArg(), KindOverride, at(18, 0), at(20, 0), "late clinic").
		WillReturnRows(pgxmock.NewRows(ruleRowColumns).
			AddRow(id, clinicID, (*uuid.UUID)(nil), KindOverride, at(18, 0), at(20, 0), "late clinic", StatusActive, now, (*time.Time)(nil)))

	r, err := NewPgRepository(mock).Create(context.Background(), Rule{
		ID: id, ClinicID: clinicID, Kind: KindOverride, Start: at(18, 0), End: at(20, 0), Notes: "late clinic",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, r.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
