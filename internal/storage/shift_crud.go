package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrShiftNotFound = errors.New("shift not found")

// CreateShift inserts a new active shift record.
func (p *PostgresClient) CreateShift(ctx context.Context, name string, start time.Time) (*Shift, error) {
	shift := &Shift{
		Name:      name,
		StartTime: start,
		Status:    ShiftActive,
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO shifts (name, start_time, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, name, start, ShiftActive).Scan(&shift.ID, &shift.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to insert shift: %w", err)
	}

	return shift, nil
}

// GetActiveShift returns the current active shift, or ErrShiftNotFound.
func (p *PostgresClient) GetActiveShift(ctx context.Context) (*Shift, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, start_time, end_time, COALESCE(notes, ''), status, created_at
		FROM shifts
		WHERE status = 'active'
		ORDER BY start_time DESC
		LIMIT 1
	`)

	return scanShift(row)
}

// GetShift loads a shift by id.
func (p *PostgresClient) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, start_time, end_time, COALESCE(notes, ''), status, created_at
		FROM shifts
		WHERE id = $1
	`, id)

	return scanShift(row)
}

// GetLastCompletedShift returns the most recently ended shift.
func (p *PostgresClient) GetLastCompletedShift(ctx context.Context) (*Shift, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, start_time, end_time, COALESCE(notes, ''), status, created_at
		FROM shifts
		WHERE status = 'completed'
		ORDER BY end_time DESC
		LIMIT 1
	`)

	return scanShift(row)
}

// CompleteShift marks a shift completed with the given end time. The
// WHERE clause on status makes this the durable transition gate: it
// reports false when another actor already completed the shift.
func (p *PostgresClient) CompleteShift(ctx context.Context, id uuid.UUID, end time.Time, notes string) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE shifts
		SET status = 'completed', end_time = $2, notes = $3
		WHERE id = $1 AND status = 'active'
	`, id, end, notes)

	if err != nil {
		return false, fmt.Errorf("failed to complete shift: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.Notes, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("failed to scan shift: %w", err)
	}
	return &s, nil
}
