package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/availability"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type ruleRepo struct {
	s *Store
}

func (r ruleRepo) Create(ctx context.Context, rule availability.Rule) (*availability.Rule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.Status == "" {
		rule.Status = availability.StatusActive
	}
	rule.CreatedAt = r.s.now().UTC()
	r.s.rules[rule.ID] = rule
	return &rule, nil
}

func (r ruleRepo) Get(ctx context.Context, clinicID, id uuid.UUID) (*availability.Rule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.ClinicID != clinicID {
		return nil, availability.ErrRuleNotFound
	}
	return &rule, nil
}

func (r ruleRepo) SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) (*availability.Rule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.ClinicID != clinicID || rule.Status != availability.StatusActive {
		return nil, availability.ErrRuleNotFound
	}
	rule.Status = availability.StatusDeleted
	rule.DeletedAt = &at
	r.s.rules[id] = rule
	return &rule, nil
}

func (r ruleRepo) ListActive(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]availability.Rule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []availability.Rule
	for _, rule := range r.s.rules {
		if rule.ClinicID != clinicID || !rule.Active() || !rule.AppliesTo(staffID) {
			continue
		}
		if !rule.Interval().Overlaps(window) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r ruleRepo) List(ctx context.Context, clinicID uuid.UUID, includeDeleted bool) ([]availability.Rule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []availability.Rule
	for _, rule := range r.s.rules {
		if rule.ClinicID != clinicID || (!includeDeleted && !rule.Active()) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}
