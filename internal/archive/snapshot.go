package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "embed"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

//go:embed schema/events-snapshot-v1.json
var eventsSnapshotSchemaJSON string

// SnapshotSchemaVersion is bumped whenever the snapshot layout changes,
// so stored checksums stay comparable within one version.
const SnapshotSchemaVersion = 1

type ShiftInfo struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

type EventRecord struct {
	ID            uuid.UUID `json:"id"`
	AssetID       uuid.UUID `json:"asset_id"`
	AssetName     string    `json:"asset_name"`
	EventType     string    `json:"event_type"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Timestamp     time.Time `json:"timestamp"`
	StopReason    string    `json:"stop_reason"`
}

type AssetSummary struct {
	AssetID    uuid.UUID `json:"asset_id"`
	AssetName  string    `json:"asset_name"`
	EventCount int       `json:"event_count"`
}

// EventsSnapshot is the typed, versioned payload stored in an EVENTS
// archive. Struct marshalling gives a stable field order, which keeps
// the checksum deterministic.
type EventsSnapshot struct {
	SchemaVersion int            `json:"schema_version"`
	ShiftInfo     ShiftInfo      `json:"shift_info"`
	EventCount    int            `json:"event_count"`
	Events        []EventRecord  `json:"events"`
	AssetsSummary []AssetSummary `json:"assets_summary"`
}

func buildSnapshot(shift *storage.Shift, events []storage.Event) EventsSnapshot {
	records := make([]EventRecord, 0, len(events))
	summaryIndex := make(map[uuid.UUID]int)
	summaries := make([]AssetSummary, 0)

	for _, e := range events {
		records = append(records, EventRecord{
			ID:            e.ID,
			AssetID:       e.AssetID,
			AssetName:     e.AssetName,
			EventType:     e.EventType,
			PreviousState: e.PreviousState,
			NewState:      e.NewState,
			Timestamp:     e.Timestamp,
			StopReason:    e.StopReason,
		})

		if idx, ok := summaryIndex[e.AssetID]; ok {
			summaries[idx].EventCount++
		} else {
			summaryIndex[e.AssetID] = len(summaries)
			summaries = append(summaries, AssetSummary{
				AssetID:    e.AssetID,
				AssetName:  e.AssetName,
				EventCount: 1,
			})
		}
	}

	end := time.Now()
	if shift.EndTime != nil {
		end = *shift.EndTime
	}

	return EventsSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		ShiftInfo: ShiftInfo{
			ID:              shift.ID,
			Name:            shift.Name,
			StartTime:       shift.StartTime,
			EndTime:         shift.EndTime,
			DurationMinutes: int(end.Sub(shift.StartTime).Minutes()),
		},
		EventCount:    len(records),
		Events:        records,
		AssetsSummary: summaries,
	}
}

// Checksum returns the hex SHA-256 over a serialized snapshot.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("events-snapshot-v1.json",
		strings.NewReader(eventsSnapshotSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("events-snapshot-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateSnapshot checks serialized snapshot bytes against the
// versioned schema before they are persisted.
func (v *Validator) ValidateSnapshot(data []byte) error {
	var snapshot interface{}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(snapshot); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
