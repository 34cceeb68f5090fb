package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrArchiveNotFound = errors.New("archive not found")

// CreateArchive persists an immutable snapshot row. There is no update
// counterpart on purpose; administrative corrections go through SQL.
func (p *PostgresClient) CreateArchive(ctx context.Context, archive *Archive) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO archives (title, archive_type, archived_data, data_checksum, data_size, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, archive.Title, archive.ArchiveType, archive.ArchivedData,
		archive.DataChecksum, archive.DataSize, archive.CreatedBy,
	).Scan(&archive.ID, &archive.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert archive: %w", err)
	}

	return nil
}

// GetArchive loads one archive including its snapshot payload.
func (p *PostgresClient) GetArchive(ctx context.Context, id uuid.UUID) (*Archive, error) {
	var a Archive
	err := p.pool.QueryRow(ctx, `
		SELECT id, title, archive_type, archived_data, data_checksum, data_size, created_at, created_by
		FROM archives
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Title, &a.ArchiveType, &a.ArchivedData,
		&a.DataChecksum, &a.DataSize, &a.CreatedAt, &a.CreatedBy)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArchiveNotFound
		}
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}

	return &a, nil
}

// ListArchives returns archive metadata (without payloads), newest first.
func (p *PostgresClient) ListArchives(ctx context.Context, archiveType ArchiveType, limit int) ([]Archive, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, archive_type, data_checksum, data_size, created_at, created_by
		FROM archives
		WHERE ($1 = '' OR archive_type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(archiveType), limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	defer rows.Close()

	archives := make([]Archive, 0)

	for rows.Next() {
		var a Archive
		err := rows.Scan(&a.ID, &a.Title, &a.ArchiveType,
			&a.DataChecksum, &a.DataSize, &a.CreatedAt, &a.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive: %w", err)
		}
		archives = append(archives, a)
	}

	return archives, rows.Err()
}
