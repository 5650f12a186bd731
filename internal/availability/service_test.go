package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

type mapRules struct {
	rules map[uuid.UUID]Rule
}

func newMapRules() *mapRules {
	return &mapRules{rules: make(map[uuid.UUID]Rule)}
}

func (m *mapRules) Create(ctx context.Context, r Rule) (*Rule, error) {
	m.rules[r.ID] = r
	return &r, nil
}

func (m *mapRules) Get(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error) {
	r, ok := m.rules[id]
	if !ok || r.ClinicID != clinicID {
		return nil, ErrRuleNotFound
	}
	return &r, nil
}

func (m *mapRules) SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) (*Rule, error) {
	r, ok := m.rules[id]
	if !ok || r.ClinicID != clinicID || r.Status != StatusActive {
		return nil, ErrRuleNotFound
	}
	r.Status = StatusDeleted
	r.DeletedAt = &at
	m.rules[id] = r
	return &r, nil
}

func (m *mapRules) ListActive(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]Rule, error) {
	return nil, nil
}

func (m *mapRules) List(ctx context.Context, clinicID uuid.UUID, includeDeleted bool) ([]Rule, error) {
	var out []Rule
	for _, r := range m.rules {
		if r.ClinicID == clinicID && (includeDeleted || r.Active()) {
			out = append(out, r)
		}
	}
	return out, nil
}

type staffDirectory struct {
	clinic.Repository
	staff map[uuid.UUID]uuid.UUID // staff id -> clinic id
}

func (d staffDirectory) GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Staff, error) {
	if d.staff[id] != clinicID {
		return nil, clinic.ErrStaffNotFound
	}
	return &clinic.Staff{ID: id, ClinicID: clinicID, Active: true}, nil
}

func TestCreateRuleValidates(t *testing.T) {
	clinicID, otherClinic := uuid.New(), uuid.New()
	vet, foreignVet := uuid.New(), uuid.New()
	svc := NewService(newMapRules(), staffDirectory{staff: map[uuid.UUID]uuid.UUID{vet: clinicID, foreignVet: otherClinic}}, logging.Discard())
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, clinicID, CreateRuleInput{Kind: "HOLIDAY", Start: at(9, 0), End: at(10, 0)})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(ctx, clinicID, CreateRuleInput{Kind: KindBlocked, Start: at(10, 0), End: at(10, 0)})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(ctx, clinicID, CreateRuleInput{StaffID: &foreignVet, Kind: KindVacation, Start: at(9, 0), End: at(10, 0)})
	assert.ErrorIs(t, err, clinic.ErrStaffNotFound)

	r, err := svc.CreateRule(ctx, clinicID, CreateRuleInput{StaffID: &vet, Kind: KindVacation, Start: at(9, 0), End: at(10, 0), Notes: "dentist"})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, "dentist", r.Notes)
	assert.False(t, r.ClinicWide())
}

func TestDeleteRuleIsIdempotent(t *testing.T) {
	clinicID := uuid.New()
	repo := newMapRules()
	svc := NewService(repo, staffDirectory{}, logging.Discard())
	ctx := context.Background()

	r, err := svc.CreateRule(ctx, clinicID, CreateRuleInput{Kind: KindBlocked, Start: at(12, 0), End: at(13, 0)})
	require.NoError(t, err)

	deleted, err := svc.DeleteRule(ctx, clinicID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, deleted.Status)
	require.NotNil(t, deleted.DeletedAt)

	again, err := svc.DeleteRule(ctx, clinicID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, again.Status)

	_, err = svc.DeleteRule(ctx, uuid.New(), r.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	active, err := svc.ListRules(ctx, clinicID, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.ListRules(ctx, clinicID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
