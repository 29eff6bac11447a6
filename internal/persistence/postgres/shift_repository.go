// Package postgres provides pgx-backed persistence for shifts, perimeters,
// and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/timeclock/internal/domain"
	"example.com/timeclock/internal/events"
	"example.com/timeclock/internal/observability"
)

const uniqueViolation = "23505"

const shiftColumns = `shift_id, organization_id, worker_id, status,
        clock_in_at, clock_in_lat, clock_in_lon, clock_in_note,
        clock_out_at, clock_out_lat, clock_out_lon, clock_out_note,
        duration_minutes, sync_state, created_at, updated_at`

// ShiftRepository persists shift lifecycles and records outbox events in the
// same transaction as the state change.
type ShiftRepository struct {
	pool *pgxpool.Pool
}

// NewShiftRepository constructs a ShiftRepository.
func NewShiftRepository(pool *pgxpool.Pool) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

// FindActive returns the worker's ACTIVE shift, or nil when off shift.
func (r *ShiftRepository) FindActive(ctx context.Context, organizationID, workerID string) (*domain.Shift, error) {
	query := `SELECT ` + shiftColumns + `
        FROM shifts WHERE organization_id=$1 AND worker_id=$2 AND status='ACTIVE'`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", organizationID); err != nil {
		return nil, err
	}

	shift, err := scanShift(tx.QueryRow(ctx, query, organizationID, workerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return shift, nil
}

// CreateActive inserts a new ACTIVE shift and its outbox events atomically.
// The shifts_one_active_per_worker index rejects a second ACTIVE row for the
// worker; that conflict surfaces as domain.ErrActiveShiftExists so the
// engine can report AlreadyClockedIn without a partial write.
func (r *ShiftRepository) CreateActive(ctx context.Context, shift domain.Shift) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", shift.OrganizationID); err != nil {
		return err
	}

	const insertShift = `INSERT INTO shifts (shift_id, organization_id, worker_id, status,
            clock_in_at, clock_in_lat, clock_in_lon, clock_in_note, sync_state, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err = tx.Exec(ctx, insertShift,
		shift.ID,
		shift.OrganizationID,
		shift.WorkerID,
		shift.Status,
		shift.ClockIn.Time,
		shift.ClockIn.Location.Lat,
		shift.ClockIn.Location.Lon,
		nullIfEmpty(shift.ClockIn.Note),
		shift.SyncState,
		shift.CreatedAt,
		shift.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = fmt.Errorf("%w: %v", domain.ErrActiveShiftExists, pgErr.ConstraintName)
		}
		return err
	}

	if err = insertOutbox(ctx, tx, shift, "shift.clocked_in", events.ShiftClockedIn{
		ShiftID:        shift.ID,
		OrganizationID: shift.OrganizationID,
		WorkerID:       shift.WorkerID,
		ClockInAt:      shift.ClockIn.Time,
		Latitude:       shift.ClockIn.Location.Lat,
		Longitude:      shift.ClockIn.Location.Lon,
		Note:           shift.ClockIn.Note,
	}); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, shift, "shift.state_changed", events.ShiftStateChanged{
		ShiftID:        shift.ID,
		OrganizationID: shift.OrganizationID,
		WorkerID:       shift.WorkerID,
		State:          string(shift.SyncState),
		OccurredAt:     shift.UpdatedAt,
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordShiftPersisted(shift.UpdatedAt)
	return nil
}

// Complete closes the shift if and only if it is still ACTIVE. The
// conditional update keeps concurrent clock-outs safe: the loser sees zero
// rows and gets domain.ErrShiftNotActive.
func (r *ShiftRepository) Complete(ctx context.Context, organizationID, shiftID string, clockOut domain.ClockStamp, durationMinutes int) (*domain.Shift, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", organizationID); err != nil {
		return nil, err
	}

	query := `UPDATE shifts
        SET status='COMPLETED',
            clock_out_at=$1, clock_out_lat=$2, clock_out_lon=$3, clock_out_note=$4,
            duration_minutes=$5, sync_state='pending', updated_at=$1
        WHERE organization_id=$6 AND shift_id=$7 AND status='ACTIVE'
        RETURNING ` + shiftColumns

	shift, err := scanShift(tx.QueryRow(ctx, query,
		clockOut.Time,
		clockOut.Location.Lat,
		clockOut.Location.Lon,
		nullIfEmpty(clockOut.Note),
		durationMinutes,
		organizationID,
		shiftID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrShiftNotActive
		}
		return nil, err
	}

	if err = insertOutbox(ctx, tx, *shift, "shift.clocked_out", events.ShiftClockedOut{
		ShiftID:         shift.ID,
		OrganizationID:  shift.OrganizationID,
		WorkerID:        shift.WorkerID,
		ClockOutAt:      clockOut.Time,
		Latitude:        clockOut.Location.Lat,
		Longitude:       clockOut.Location.Lon,
		DurationMinutes: durationMinutes,
		Note:            clockOut.Note,
	}); err != nil {
		return nil, err
	}

	if err = insertOutbox(ctx, tx, *shift, "shift.state_changed", events.ShiftStateChanged{
		ShiftID:        shift.ID,
		OrganizationID: shift.OrganizationID,
		WorkerID:       shift.WorkerID,
		State:          string(shift.SyncState),
		OccurredAt:     clockOut.Time,
	}); err != nil {
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, err
	}
	observability.RecordShiftPersisted(clockOut.Time)
	return shift, nil
}

// ListByWorker returns shifts for a worker ordered by clock-in time, newest first.
func (r *ShiftRepository) ListByWorker(ctx context.Context, organizationID, workerID string, cursor *domain.Cursor, limit int) ([]domain.Shift, *domain.Cursor, error) {
	args := []interface{}{organizationID, workerID, limit}
	query := `SELECT ` + shiftColumns + `
        FROM shifts WHERE organization_id=$1 AND worker_id=$2`

	if cursor != nil {
		query += ` AND (clock_in_at, shift_id) < ($4, $5)`
		args = append(args, cursor.ClockInAt, cursor.ID)
	}

	query += ` ORDER BY clock_in_at DESC, shift_id DESC LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", organizationID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results, err := collectShifts(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{ClockInAt: last.ClockIn.Time, ID: last.ID}
	}

	return results, nextCursor, nil
}

// ActiveByOrganization returns every ACTIVE shift in the organization,
// most recent clock-in first.
func (r *ShiftRepository) ActiveByOrganization(ctx context.Context, organizationID string) ([]domain.Shift, error) {
	query := `SELECT ` + shiftColumns + `
        FROM shifts WHERE organization_id=$1 AND status='ACTIVE'
        ORDER BY clock_in_at DESC, shift_id DESC`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", organizationID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := collectShifts(rows, 16)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, shift domain.Shift, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(shift)
	dedupeKey := fmt.Sprintf("%s:%s:%s", shift.ID, eventType, shift.UpdatedAt.UTC().Format("20060102T150405.000000000"))

	const stmt = `INSERT INTO outbox (organization_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		shift.OrganizationID,
		"shift",
		shift.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShift(row rowScanner) (*domain.Shift, error) {
	var shift domain.Shift
	var clockInNote *string
	var clockOutAt *time.Time
	var clockOutLat, clockOutLon *float64
	var clockOutNote *string

	if err := row.Scan(
		&shift.ID,
		&shift.OrganizationID,
		&shift.WorkerID,
		&shift.Status,
		&shift.ClockIn.Time,
		&shift.ClockIn.Location.Lat,
		&shift.ClockIn.Location.Lon,
		&clockInNote,
		&clockOutAt,
		&clockOutLat,
		&clockOutLon,
		&clockOutNote,
		&shift.DurationMinutes,
		&shift.SyncState,
		&shift.CreatedAt,
		&shift.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if clockInNote != nil {
		shift.ClockIn.Note = *clockInNote
	}
	if clockOutAt != nil && clockOutLat != nil && clockOutLon != nil {
		stamp := domain.ClockStamp{Time: *clockOutAt}
		stamp.Location.Lat = *clockOutLat
		stamp.Location.Lon = *clockOutLon
		if clockOutNote != nil {
			stamp.Note = *clockOutNote
		}
		shift.ClockOut = &stamp
	}
	return &shift, nil
}

func collectShifts(rows pgx.Rows, sizeHint int) ([]domain.Shift, error) {
	results := make([]domain.Shift, 0, sizeHint)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Shift) string
}

var eventCatalog = map[string]EventMetadata{
	"shift.clocked_in": {
		Topic:         "shift_events",
		SchemaSubject: "shift_events-value",
		PartitionKeyFn: func(s domain.Shift) string {
			return fmt.Sprintf("%s:%s", s.OrganizationID, s.WorkerID)
		},
	},
	"shift.clocked_out": {
		Topic:         "shift_events",
		SchemaSubject: "shift_events-value",
		PartitionKeyFn: func(s domain.Shift) string {
			return fmt.Sprintf("%s:%s", s.OrganizationID, s.WorkerID)
		},
	},
	"shift.state_changed": {
		Topic:         "shift_state_changed",
		SchemaSubject: "shift_state_changed-value",
		PartitionKeyFn: func(s domain.Shift) string {
			return s.ID
		},
	},
}
