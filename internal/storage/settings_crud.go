package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const notificationSettingsKey = "notification_settings"

// GetNotificationSettings loads the settings document. A missing row
// yields the defaults instead of an error.
func (p *PostgresClient) GetNotificationSettings(ctx context.Context) (NotificationSettings, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `
		SELECT value FROM settings WHERE key = $1
	`, notificationSettingsKey).Scan(&data)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultNotificationSettings(), nil
		}
		return NotificationSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings NotificationSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return NotificationSettings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return settings, nil
}

// UpdateNotificationSettings upserts the settings document.
func (p *PostgresClient) UpdateNotificationSettings(ctx context.Context, settings NotificationSettings) error {
	settings.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, notificationSettingsKey, data)

	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	return nil
}
