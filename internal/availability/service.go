package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

type CreateRuleInput struct {
	StaffID *uuid.UUID
	Kind    Kind
	Start   time.Time
	End     time.Time
	Notes   string
}

type Service struct {
	repo    Repository
	clinics clinic.Repository
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(repo Repository, clinics clinic.Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		clinics: clinics,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateRule validates and stores a new ACTIVE rule. A staff rule must name
// a staff member of the same clinic.
func (s *Service) CreateRule(ctx context.Context, clinicID uuid.UUID, in CreateRuleInput) (*Rule, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, in.Kind)
	}
	if !in.Start.Before(in.End) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidRule)
	}
	if in.StaffID != nil {
		if _, err := s.clinics.GetStaff(ctx, clinicID, *in.StaffID); err != nil {
			if errors.Is(err, clinic.ErrStaffNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load staff: %w", err)
		}
	}

	rule, err := s.repo.Create(ctx, Rule{
		ID:       uuid.New(),
		ClinicID: clinicID,
		StaffID:  in.StaffID,
		Kind:     in.Kind,
		Start:    in.Start,
		End:      in.End,
		Notes:    in.Notes,
		Status:   StatusActive,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("availability rule created",
		"clinic_id", clinicID,
		"rule_id", rule.ID,
		"kind", rule.Kind,
		"clinic_wide", rule.ClinicWide(),
	)
	return rule, nil
}

// DeleteRule soft-deletes a rule. Deleting an already deleted rule returns it
// unchanged.
func (s *Service) DeleteRule(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error) {
	rule, err := s.repo.SoftDelete(ctx, clinicID, id, s.now().UTC())
	if err == nil {
		s.logger.Info("availability rule deleted", "clinic_id", clinicID, "rule_id", id)
		return rule, nil
	}
	if !errors.Is(err, ErrRuleNotFound) {
		return nil, fmt.Errorf("delete rule: %w", err)
	}

	existing, getErr := s.repo.Get(ctx, clinicID, id)
	if getErr != nil {
		return nil, getErr
	}
	return existing, nil
}

func (s *Service) ListRules(ctx context.Context, clinicID uuid.UUID, includeDeleted bool) ([]Rule, error) {
	rules, err := s.repo.List(ctx, clinicID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *Service) ActiveRules(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]Rule, error) {
	return s.repo.ListActive(ctx, clinicID, staffID, window)
}
