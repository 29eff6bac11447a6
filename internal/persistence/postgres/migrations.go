package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the DDL for the service, applied in order. The unique partial
// index shifts_one_active_per_worker is what enforces "at most one ACTIVE
// shift per worker" at the storage layer; CreateActive relies on it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS shifts (
        shift_id        UUID PRIMARY KEY,
        organization_id TEXT NOT NULL,
        worker_id       TEXT NOT NULL,
        status          TEXT NOT NULL,
        clock_in_at     TIMESTAMPTZ NOT NULL,
        clock_in_lat    DOUBLE PRECISION NOT NULL,
        clock_in_lon    DOUBLE PRECISION NOT NULL,
        clock_in_note   TEXT,
        clock_out_at    TIMESTAMPTZ,
        clock_out_lat   DOUBLE PRECISION,
        clock_out_lon   DOUBLE PRECISION,
        clock_out_note  TEXT,
        duration_minutes INT,
        sync_state      TEXT NOT NULL DEFAULT 'pending',
        created_at      TIMESTAMPTZ NOT NULL,
        updated_at      TIMESTAMPTZ NOT NULL
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS shifts_one_active_per_worker
        ON shifts (worker_id) WHERE status = 'ACTIVE'`,
	`CREATE INDEX IF NOT EXISTS shifts_worker_history
        ON shifts (organization_id, worker_id, clock_in_at DESC, shift_id DESC)`,
	`CREATE TABLE IF NOT EXISTS perimeters (
        organization_id TEXT PRIMARY KEY,
        display_name    TEXT NOT NULL,
        latitude        DOUBLE PRECISION NOT NULL,
        longitude       DOUBLE PRECISION NOT NULL,
        radius_meters   DOUBLE PRECISION NOT NULL,
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS outbox (
        event_id        BIGSERIAL PRIMARY KEY,
        organization_id TEXT NOT NULL,
        aggregate_type  TEXT NOT NULL,
        aggregate_id    TEXT NOT NULL,
        event_type      TEXT NOT NULL,
        topic           TEXT NOT NULL,
        schema_subject  TEXT NOT NULL,
        partition_key   TEXT NOT NULL,
        payload         JSONB NOT NULL,
        dedupe_key      TEXT UNIQUE,
        claimed_at      TIMESTAMPTZ,
        published_at    TIMESTAMPTZ,
        created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
        dlq_id            BIGSERIAL PRIMARY KEY,
        organization_id   TEXT NOT NULL,
        event_id          BIGINT NOT NULL,
        event_type        TEXT NOT NULL,
        topic             TEXT NOT NULL,
        payload           JSONB NOT NULL,
        reason            TEXT NOT NULL,
        aggregate_type    TEXT NOT NULL,
        aggregate_id      TEXT NOT NULL,
        schema_subject    TEXT NOT NULL,
        partition_key     TEXT NOT NULL,
        retry_count       INT NOT NULL DEFAULT 0,
        last_attempt_at   TIMESTAMPTZ,
        next_retry_at     TIMESTAMPTZ,
        quarantined_at    TIMESTAMPTZ,
        quarantine_reason TEXT,
        created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS shift_event_log (
        log_id          BIGSERIAL PRIMARY KEY,
        event_type      TEXT NOT NULL,
        organization_id TEXT NOT NULL,
        schema_id       INT NOT NULL,
        schema_subject  TEXT NOT NULL,
        topic           TEXT NOT NULL,
        partition       INT NOT NULL,
        record_offset   BIGINT NOT NULL,
        payload         JSONB NOT NULL,
        received_at     TIMESTAMPTZ NOT NULL
    )`,
}

// ApplyMigrations runs the schema statements against the pool.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
