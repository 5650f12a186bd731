package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

const ruleColumns = `id, clinic_id, staff_id, kind, starts_at, ends_at, notes, status, created_at, deleted_at`

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	err := row.Scan(
		&r.ID,
		&r.ClinicID,
		&r.StaffID,
		&r.Kind,
		&r.Start,
		&r.End,
		&r.Notes,
		&r.Status,
		&r.CreatedAt,
		&r.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PgRepository) Create(ctx context.Context, rule Rule) (*Rule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO availability_rules (id, clinic_id, staff_id, kind, starts_at, ends_at, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', now())
		RETURNING `+ruleColumns,
		rule.ID, rule.ClinicID, rule.StaffID, rule.Kind, rule.Start, rule.End, rule.Notes)
	r, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("insert availability rule: %w", err)
	}
	return r, nil
}

func (p *PgRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanRule(row)
}

func (p *PgRepository) SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) (*Rule, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE availability_rules
		SET status = 'DELETED',
		    deleted_at = $3
		WHERE id = $1
		  AND clinic_id = $2
		  AND status = 'ACTIVE'
		RETURNING `+ruleColumns,
		id, clinicID, at)
	return scanRule(row)
}

func (p *PgRepository) ListActive(ctx context.Context, clinicID uuid.UUID, staffID *uuid.UUID, window interval.Interval) ([]Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE clinic_id = $1
		  AND status = 'ACTIVE'
		  AND starts_at < $3
		  AND ends_at > $2
		  AND (staff_id IS NULL OR staff_id = $4)
		ORDER BY starts_at
	`, clinicID, window.Start, window.End, staffID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return collectRules(rows)
}

func (p *PgRepository) List(ctx context.Context, clinicID uuid.UUID, includeDeleted bool) ([]Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE clinic_id = $1
		  AND (status = 'ACTIVE' OR $2)
		ORDER BY starts_at DESC
	`, clinicID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}
