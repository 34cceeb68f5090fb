package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ListEventsByShift returns all events claimed by a shift in
// chronological order. Ascending order is required for deterministic
// archives and reports.
func (p *PostgresClient) ListEventsByShift(ctx context.Context, shiftID uuid.UUID) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, asset_id, asset_name, shift_id, event_type,
		       previous_state, new_state, timestamp, COALESCE(stop_reason, '')
		FROM events
		WHERE shift_id = $1
		ORDER BY timestamp ASC
	`, shiftID)

	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var e Event
		err := rows.Scan(&e.ID, &e.AssetID, &e.AssetName, &e.ShiftID, &e.EventType,
			&e.PreviousState, &e.NewState, &e.Timestamp, &e.StopReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// ListLiveEvents returns the unclaimed events of the running shift.
func (p *PostgresClient) ListLiveEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, asset_id, asset_name, shift_id, event_type,
		       previous_state, new_state, timestamp, COALESCE(stop_reason, '')
		FROM events
		WHERE shift_id IS NULL
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query live events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var e Event
		err := rows.Scan(&e.ID, &e.AssetID, &e.AssetName, &e.ShiftID, &e.EventType,
			&e.PreviousState, &e.NewState, &e.Timestamp, &e.StopReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// CountEventsByShift returns the stored event count for a shift,
// used by the archiver to cross-check snapshot completeness.
func (p *PostgresClient) CountEventsByShift(ctx context.Context, shiftID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM events WHERE shift_id = $1
	`, shiftID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// AssignOpenEvents claims all unassigned events inside the shift's
// time bounds for that shift.
func (p *PostgresClient) AssignOpenEvents(ctx context.Context, shiftID uuid.UUID, start, end time.Time) (int, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE events
		SET shift_id = $1
		WHERE shift_id IS NULL
		  AND timestamp >= $2
		  AND timestamp < $3
	`, shiftID, start, end)

	if err != nil {
		return 0, fmt.Errorf("failed to assign events: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ResetLiveEvents clears the live event view up to the shift boundary
// and seeds one SHIFT_START marker per asset, all in one transaction so
// dashboards never observe a half-reset table. Unassigned events at or
// after the boundary were ingested for the next shift already and are
// kept. Markers stay unassigned until the next shift close claims them.
func (p *PostgresClient) ResetLiveEvents(ctx context.Context, assets []Asset, at time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM events WHERE shift_id IS NULL AND timestamp < $1`, at)
	if err != nil {
		return fmt.Errorf("failed to clear live events: %w", err)
	}

	for _, asset := range assets {
		_, err = tx.Exec(ctx, `
			INSERT INTO events (asset_id, asset_name, event_type, previous_state, new_state, timestamp)
			VALUES ($1, $2, $3, '', 'RUNNING', $4)
		`, asset.ID, asset.Name, EventTypeShiftStart, at)

		if err != nil {
			return fmt.Errorf("failed to seed shift start marker: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteEventsBefore removes claimed events older than the retention
// cutoff. Unclaimed events belong to the running shift and are kept.
func (p *PostgresClient) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := p.pool.Exec(ctx, `
		DELETE FROM events
		WHERE shift_id IS NOT NULL AND timestamp < $1
	`, cutoff)

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ListAssets returns all known assets.
func (p *PostgresClient) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name FROM assets ORDER BY name
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]Asset, 0)

	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}
