package tenancy

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
)

type ctxKey string

const clinicKey ctxKey = "vetsched.clinic"

// WithClinic stores the resolved clinic in context.
func WithClinic(ctx context.Context, c *clinic.Clinic) context.Context {
	return context.WithValue(ctx, clinicKey, c)
}

// ClinicFromContext extracts the clinic if present.
func ClinicFromContext(ctx context.Context) (*clinic.Clinic, bool) {
	c, ok := ctx.Value(clinicKey).(*clinic.Clinic)
	return c, ok && c != nil
}

// ClinicIDFromContext returns the id of the clinic in context.
func ClinicIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ClinicFromContext(ctx)
	if !ok || c.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return c.ID, true
}
