package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
)

type clinicRepo struct {
	s *Store
}

func (r clinicRepo) GetClinic(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clinics[id]
	if !ok {
		return nil, clinic.ErrClinicNotFound
	}
	return &c, nil
}

func (r clinicRepo) GetService(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	svc, ok := r.s.services[id]
	if !ok || svc.ClinicID != clinicID {
		return nil, clinic.ErrServiceNotFound
	}
	return &svc, nil
}

func (r clinicRepo) GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.staff[id]
	if !ok || st.ClinicID != clinicID {
		return nil, clinic.ErrStaffNotFound
	}
	return &st, nil
}

func (r clinicRepo) GetResource(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Resource, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.resources[id]
	if !ok || res.ClinicID != clinicID {
		return nil, clinic.ErrResourceNotFound
	}
	return &res, nil
}

func (r clinicRepo) ListStaff(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]clinic.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []clinic.Staff
	for _, st := range r.s.staff {
		if st.ClinicID != clinicID || (activeOnly && !st.Active) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
