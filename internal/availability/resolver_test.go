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
)

var monday = time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func rule(staff *uuid.UUID, kind Kind, start, end time.Time) Rule {
	return Rule{ID: uuid.New(), StaffID: staff, Kind: kind, Start: start, End: end, Status: StatusActive}
}

func TestComposeSubtractsThenRestores(t *testing.T) {
	vet := uuid.New()
	open := interval.Normalize(interval.New(at(9, 0), at(17, 0)))

	rules := []Rule{
		rule(nil, KindBlocked, at(12, 0), at(13, 0)),
		rule(&vet, KindVacation, at(9, 0), at(11, 0)),
		rule(&vet, KindOverride, at(17, 0), at(18, 0)),
	}

	got := Compose(open, rules, &vet)
	assert.Equal(t, interval.Set{
		interval.New(at(11, 0), at(12, 0)),
		interval.New(at(13, 0), at(18, 0)),
	}, got)

	reversed := []Rule{rules[2], rules[1], rules[0]}
	assert.Equal(t, got, Compose(open, reversed, &vet), "rule order does not matter")
}

func TestComposeClinicLevelIgnoresStaffRules(t *testing.T) {
	vet := uuid.New()
	open := interval.Normalize(interval.New(at(9, 0), at(17, 0)))
	rules := []Rule{
		rule(&vet, KindVacation, at(9, 0), at(17, 0)),
		rule(nil, KindBlocked, at(12, 0), at(13, 0)),
	}

	got := Compose(open, rules, nil)
	assert.Equal(t, interval.Set{
		interval.New(at(9, 0), at(12, 0)),
		interval.New(at(13, 0), at(17, 0)),
	}, got)

	other := uuid.New()
	assert.Equal(t, got, Compose(open, rules, &other))
}

func TestComposeSkipsDeletedRules(t *testing.T) {
	open := interval.Normalize(interval.New(at(9, 0), at(17, 0)))
	deleted := rule(nil, KindBlocked, at(9, 0), at(17, 0))
	deleted.Status = StatusDeleted

	assert.Equal(t, open, Compose(open, []Rule{deleted}, nil))
}

func TestOverrideWinsOverVacation(t *testing.T) {
	vet := uuid.New()
	open := interval.Normalize(interval.New(at(9, 0), at(17, 0)))
	rules := []Rule{
		rule(&vet, KindVacation, at(0, 0), at(24, 0)),
		rule(nil, KindOverride, at(10, 0), at(11, 0)),
	}
	assert.Equal(t, interval.Set{interval.New(at(10, 0), at(11, 0))}, Compose(open, rules, &vet))
}

type stubRules struct {
	Repository
	rules []Rule
	gotID *uuid.UUID
}

func (s *stubRules) ListActive(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]Rule, error) {
	s.gotID = staffID
	return s.rules, nil
}

func TestResolverClipsToWindowAndUsesCalendar(t *testing.T) {
	c := &clinic.Clinic{
		ID:       uuid.New(),
		Timezone: "UTC",
		Hours: clinic.WeeklyHours{
			time.Monday: {{Open: "09:00", Close: "17:00"}},
		},
	}
	vet := uuid.New()
	repo := &stubRules{rules: []Rule{rule(nil, KindOverride, at(18, 0), at(20, 0))}}
	r := NewResolver(repo)

	got, err := r.OpenIntervals(context.Background(), c, &vet, interval.New(at(16, 0), at(19, 0)))
	require.NoError(t, err)
	assert.Equal(t, interval.Set{
		interval.New(at(16, 0), at(17, 0)),
		interval.New(at(18, 0), at(19, 0)),
	}, got)
	assert.Equal(t, &vet, repo.gotID)

	got, err = r.OpenIntervals(context.Background(), c, nil, interval.Interval{})
	require.NoError(t, err)
	assert.True(t, got.Empty())
}
