package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vet-clinic-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.ClinicID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.DepositCents, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.ClinicID, &s.Name, &s.Role, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource
	err := row.Scan(&r.ID, &r.ClinicID, &r.Name, &r.Type, &r.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (r *PgRepository) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	var c Clinic
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, name, timezone, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Slug, &c.Name, &c.Timezone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	hours, err := r.loadHours(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Hours = hours

	holidays, err := r.loadHolidays(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Holidays = holidays

	return &c, nil
}

func (r *PgRepository) loadHours(ctx context.Context, clinicID uuid.UUID) (WeeklyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_time, close_time
		FROM clinic_hours
		WHERE clinic_id = $1
		ORDER BY weekday, open_time
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic hours: %w", err)
	}
	defer rows.Close()

	hours := WeeklyHours{}
	for rows.Next() {
		var weekday int16
		var h DayHours
		if err := rows.Scan(&weekday, &h.Open, &h.Close); err != nil {
			return nil, fmt.Errorf("scan clinic hours: %w", err)
		}
		day := time.Weekday(weekday)
		hours[day] = append(hours[day], h)
	}
	return hours, rows.Err()
}

func (r *PgRepository) loadHolidays(ctx context.Context, clinicID uuid.UUID) ([]Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, to_char(holiday_on, 'YYYY-MM-DD')
		FROM clinic_holidays
		WHERE clinic_id = $1
		ORDER BY holiday_on
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic holidays: %w", err)
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.ClinicID, &h.Name, &h.Date); err != nil {
			return nil, fmt.Errorf("scan clinic holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (r *PgRepository) GetService(ctx context.Context, clinicID, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, duration_minutes, price_cents, deposit_cents, active
		FROM services
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanService(row)
}

func (r *PgRepository) GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, role, active
		FROM staff
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanStaff(row)
}

func (r *PgRepository) GetResource(ctx context.Context, clinicID, id uuid.UUID) (*Resource, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, type, active
		FROM resources
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanResource(row)
}

func (r *PgRepository) ListStaff(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, role, active
		FROM staff
		WHERE clinic_id = $1
		  AND (active OR NOT $2)
		ORDER BY name
	`, clinicID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}
