package storage

import (
	"context"
	"fmt"
)

// Schema owned by this service. Assets are written by the asset CRUD
// (out of scope here) but the table must exist for reseeding joins.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS shifts (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name       TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ,
		notes      TEXT,
		status     TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts (status)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		asset_id       UUID NOT NULL,
		asset_name     TEXT NOT NULL DEFAULT '',
		shift_id       UUID REFERENCES shifts(id),
		event_type     TEXT NOT NULL,
		previous_state TEXT NOT NULL DEFAULT '',
		new_state      TEXT NOT NULL DEFAULT '',
		timestamp      TIMESTAMPTZ NOT NULL,
		stop_reason    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_shift ON events (shift_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS archives (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title         TEXT NOT NULL,
		archive_type  TEXT NOT NULL,
		archived_data JSONB NOT NULL,
		data_checksum TEXT NOT NULL,
		data_size     BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema. Statements are idempotent.
func (p *PostgresClient) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
