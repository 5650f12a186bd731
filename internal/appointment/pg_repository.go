package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

const appointmentColumns = `id, clinic_id, staff_id, resource_id, service_id, pet_id, start_at, duration_minutes, status, notes, expires_at, created_at, updated_at`

// Postgres error codes the ledger reacts to.
const (
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

type PgRepository struct {
	pool        db.Pool
	lockTimeout time.Duration
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool, lockTimeout: 2 * time.Second}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.StaffID,
		&a.ResourceID,
		&a.ServiceID,
		&a.PetID,
		&a.Start,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.ExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func occupied(ctx context.Context, q db.Querier, clinicID uuid.UUID, target Target, window interval.Interval) ([]Occupancy, error) {
	if target.Empty() {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		SELECT id, staff_id, resource_id, start_at, end_at
		FROM appointments
		WHERE clinic_id = $1
		  AND status <> 'CANCELED'
		  AND start_at < $3
		  AND end_at > $2
		  AND (staff_id = $4 OR resource_id = $5)
		ORDER BY start_at
	`, clinicID, window.Start, window.End, target.StaffID, target.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("query occupied: %w", err)
	}
	defer rows.Close()

	var result []Occupancy
	for rows.Next() {
		var o Occupancy
		if err := rows.Scan(&o.AppointmentID, &o.StaffID, &o.ResourceID, &o.Interval.Start, &o.Interval.End); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func insertEvent(ctx context.Context, q db.Querier, ev EventLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (clinic_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.ClinicID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// classify maps Postgres failures inside a reservation onto ledger errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		reason := ReasonStaffBusy
		if pgErr.ConstraintName == "appointments_no_resource_overlap" {
			reason = ReasonResourceBusy
		}
		return &ConflictError{Conflicts: []Conflict{{Reason: reason}}}
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return fmt.Errorf("%w: %s", ErrTransient, pgErr.Message)
	}
	return err
}

// Interface methods

// Atomically opens a transaction, takes a transaction-scoped advisory lock
// per key in sorted order and runs fn. The exclusion constraints on
// appointments still reject any overlap that slips past the locks.
func (r *PgRepository) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx LedgerTx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin ledger tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return classify(fmt.Errorf("set lock timeout: %w", err))
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return classify(fmt.Errorf("advisory lock %s: %w", key, err))
		}
	}

	if err = fn(ctx, &pgLedgerTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit ledger tx: %w", err))
	}
	return nil
}

func (r *PgRepository) Occupied(ctx context.Context, clinicID uuid.UUID, target Target, window interval.Interval) ([]Occupancy, error) {
	return occupied(ctx, r.pool, clinicID, target, window)
}

func (r *PgRepository) GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, clinicID uuid.UUID, filter ListFilter) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND start_at < $3
		  AND end_at > $2
		  AND ($4::uuid IS NULL OR staff_id = $4)
		  AND ($5::uuid IS NULL OR resource_id = $5)
		  AND (status <> 'CANCELED' OR $6)
		ORDER BY start_at, id
	`, clinicID, filter.Window.Start, filter.Window.End, filter.StaffID, filter.ResourceID, filter.IncludeCanceled)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    expires_at = CASE WHEN $3 = 'PENDING' THEN expires_at ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		  AND clinic_id = $2
		  AND status = $4
		RETURNING `+appointmentColumns+`
	`, id, clinicID, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'PENDING'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, r.pool, ev)
}

type pgLedgerTx struct {
	tx pgx.Tx
}

func (t *pgLedgerTx) Occupied(ctx context.Context, clinicID uuid.UUID, target Target, window interval.Interval) ([]Occupancy, error) {
	return occupied(ctx, t.tx, clinicID, target, window)
}

func (t *pgLedgerTx) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
		FOR UPDATE
	`, id, clinicID)
	return scanAppointment(row)
}

func (t *pgLedgerTx) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, clinic_id, staff_id, resource_id, service_id, pet_id,
		                          start_at, duration_minutes, end_at, status, notes, expires_at,
		                          created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.ClinicID, a.StaffID, a.ResourceID, a.ServiceID, a.PetID,
		a.Start, a.DurationMinutes, a.End(), a.Status, a.Notes, a.ExpiresAt)
	return scanAppointment(row)
}

func (t *pgLedgerTx) UpdateSchedule(ctx context.Context, a Appointment) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET staff_id = $3,
		    resource_id = $4,
		    start_at = $5,
		    duration_minutes = $6,
		    end_at = $7,
		    updated_at = now()
		WHERE id = $1 AND clinic_id = $2
		RETURNING `+appointmentColumns+`
	`, a.ID, a.ClinicID, a.StaffID, a.ResourceID, a.Start, a.DurationMinutes, a.End())
	return scanAppointment(row)
}

func (t *pgLedgerTx) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, t.tx, ev)
}
