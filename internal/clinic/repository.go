package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound   = errors.New("clinic not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrStaffNotFound    = errors.New("staff member not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrInactive         = errors.New("inactive")
)

// Repository reads the tenant directory. Every lookup below a clinic is
// scoped by clinicID so an identifier from another tenant reads as not found.
type Repository interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetService(ctx context.Context, clinicID, id uuid.UUID) (*Service, error)
	GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error)
	GetResource(ctx context.Context, clinicID, id uuid.UUID) (*Resource, error)
	ListStaff(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]Staff, error)
}
