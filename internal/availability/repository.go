package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

type Repository interface {
	Create(ctx context.Context, rule Rule) (*Rule, error)
	Get(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error)

	// SoftDelete flips an ACTIVE rule to DELETED. It returns ErrRuleNotFound
	// when no ACTIVE rule with that id exists in the clinic.
	SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) (*Rule, error)

	// ListActive returns ACTIVE rules overlapping window that apply to staffID
	// (clinic-wide rules always; staff rules only for that staff member).
	ListActive(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]Rule, error)

	// List returns rules newest start first.
	List(ctx context.Context, clinicID uuid.UUID, includeDeleted bool) ([]Rule, error)
}
