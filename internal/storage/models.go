package storage

import (
	"time"

	"github.com/google/uuid"
)

type ShiftStatus string

const (
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed"
)

// Shift is one operator shift. At most one row has status=active.
type Shift struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time"`
	Notes     string      `json:"notes,omitempty"`
	Status    ShiftStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Synthetic event type written by the live-state reset
const EventTypeShiftStart = "SHIFT_START"

// Event is one device state change. ShiftID stays NULL until the event
// is claimed by a shift close.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	AssetID       uuid.UUID  `json:"asset_id"`
	AssetName     string     `json:"asset_name"`
	ShiftID       *uuid.UUID `json:"shift_id"`
	EventType     string     `json:"event_type"`
	PreviousState string     `json:"previous_state"`
	NewState      string     `json:"new_state"`
	Timestamp     time.Time  `json:"timestamp"`
	StopReason    string     `json:"stop_reason,omitempty"`
}

type ArchiveType string

const (
	ArchiveTypeEvents      ArchiveType = "EVENTS"
	ArchiveTypeShiftReport ArchiveType = "SHIFT_REPORT"
	ArchiveTypeShiftData   ArchiveType = "SHIFT_DATA"
)

// Archive is an immutable snapshot row. ArchivedData is JSONB and must
// hash to DataChecksum at read time.
type Archive struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	ArchiveType  ArchiveType `json:"archive_type"`
	ArchivedData []byte      `json:"archived_data"`
	DataChecksum string      `json:"data_checksum"`
	DataSize     int64       `json:"data_size"`
	CreatedAt    time.Time   `json:"created_at"`
	CreatedBy    string      `json:"created_by"`
}

// Asset is a monitored piece of equipment, owned by the (out of scope)
// asset CRUD; read here for shift-start reseeding and summaries.
type Asset struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ShiftSettings drives the scheduler's trigger set.
type ShiftSettings struct {
	Enabled       bool     `json:"enabled"`
	AutoSend      bool     `json:"autoSend"`
	ShiftTimes    []string `json:"shiftTimes"`
	EmailFormat   string   `json:"emailFormat"`
	RetentionDays int      `json:"retentionDays"`
}

// NotificationSettings is the single JSONB settings document.
type NotificationSettings struct {
	ShiftSettings ShiftSettings `json:"shiftSettings"`
	Recipients    []string      `json:"recipients"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// DefaultNotificationSettings returns the settings used until an
// administrator saves their own.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		ShiftSettings: ShiftSettings{
			Enabled:       true,
			AutoSend:      false,
			ShiftTimes:    []string{"06:00", "14:00", "22:00"},
			EmailFormat:   "html",
			RetentionDays: 90,
		},
		Recipients: []string{},
	}
}
