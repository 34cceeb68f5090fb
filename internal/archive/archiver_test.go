package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

type fakeArchiveStore struct {
	shifts   map[uuid.UUID]*storage.Shift
	events   map[uuid.UUID][]storage.Event
	archives map[uuid.UUID]*storage.Archive

	// Simulates a count drifting away from the read rows
	countOverride *int
}

func newFakeArchiveStore() *fakeArchiveStore {
	return &fakeArchiveStore{
		shifts:   make(map[uuid.UUID]*storage.Shift),
		events:   make(map[uuid.UUID][]storage.Event),
		archives: make(map[uuid.UUID]*storage.Archive),
	}
}

func (f *fakeArchiveStore) GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error) {
	s, ok := f.shifts[id]
	if !ok {
		return nil, storage.ErrShiftNotFound
	}
	return s, nil
}

func (f *fakeArchiveStore) ListEventsByShift(ctx context.Context, shiftID uuid.UUID) ([]storage.Event, error) {
	return f.events[shiftID], nil
}

func (f *fakeArchiveStore) CountEventsByShift(ctx context.Context, shiftID uuid.UUID) (int, error) {
	if f.countOverride != nil {
		return *f.countOverride, nil
	}
	return len(f.events[shiftID]), nil
}

func (f *fakeArchiveStore) CreateArchive(ctx context.Context, archive *storage.Archive) error {
	if archive.ID == uuid.Nil {
		archive.ID = uuid.New()
	}
	archive.CreatedAt = time.Now().UTC()
	cp := *archive
	f.archives[archive.ID] = &cp
	return nil
}

func (f *fakeArchiveStore) GetArchive(ctx context.Context, id uuid.UUID) (*storage.Archive, error) {
	a, ok := f.archives[id]
	if !ok {
		return nil, storage.ErrArchiveNotFound
	}
	return a, nil
}

func completedShift(start time.Time) *storage.Shift {
	end := start.Add(8 * time.Hour)
	return &storage.Shift{
		ID:        uuid.New(),
		Name:      "Shift " + start.Format("2006-01-02 15:04"),
		StartTime: start,
		EndTime:   &end,
		Status:    storage.ShiftCompleted,
	}
}

func shiftEvent(shiftID, assetID uuid.UUID, at time.Time, stopReason string) storage.Event {
	return storage.Event{
		ID:            uuid.New(),
		AssetID:       assetID,
		AssetName:     "Press 01",
		ShiftID:       &shiftID,
		EventType:     "STATE_CHANGE",
		PreviousState: "RUNNING",
		NewState:      "STOPPED",
		Timestamp:     at,
		StopReason:    stopReason,
	}
}

func TestArchiveShiftEvents(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	shift := completedShift(start)
	store.shifts[shift.ID] = shift

	asset := uuid.New()
	store.events[shift.ID] = []storage.Event{
		shiftEvent(shift.ID, asset, start.Add(time.Hour), ""),
		shiftEvent(shift.ID, asset, start.Add(2*time.Hour), "material jam"),
		shiftEvent(shift.ID, uuid.New(), start.Add(3*time.Hour), ""),
	}

	archive, err := archiver.ArchiveShiftEvents(context.Background(), shift.ID)
	require.NoError(t, err)

	assert.Equal(t, storage.ArchiveTypeEvents, archive.ArchiveType)
	assert.Equal(t, "shift-scheduler", archive.CreatedBy)
	assert.Contains(t, archive.Title, shift.Name)
	assert.Equal(t, int64(len(archive.ArchivedData)), archive.DataSize)
	assert.Equal(t, Checksum(archive.ArchivedData), archive.DataChecksum)

	var snapshot EventsSnapshot
	require.NoError(t, json.Unmarshal(archive.ArchivedData, &snapshot))

	assert.Equal(t, SnapshotSchemaVersion, snapshot.SchemaVersion)
	assert.Equal(t, shift.ID, snapshot.ShiftInfo.ID)
	assert.Equal(t, 480, snapshot.ShiftInfo.DurationMinutes)
	assert.Equal(t, 3, snapshot.EventCount)
	require.Len(t, snapshot.Events, 3)

	// Events keep their chronological order
	for i := 1; i < len(snapshot.Events); i++ {
		assert.False(t, snapshot.Events[i].Timestamp.Before(snapshot.Events[i-1].Timestamp))
	}

	// Per-asset rollup
	require.Len(t, snapshot.AssetsSummary, 2)
	assert.Equal(t, asset, snapshot.AssetsSummary[0].AssetID)
	assert.Equal(t, 2, snapshot.AssetsSummary[0].EventCount)
}

func TestArchiveShiftEvents_EmptyShift(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	shift := completedShift(time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC))
	store.shifts[shift.ID] = shift

	archive, err := archiver.ArchiveShiftEvents(context.Background(), shift.ID)
	require.NoError(t, err)

	var snapshot EventsSnapshot
	require.NoError(t, json.Unmarshal(archive.ArchivedData, &snapshot))
	assert.Equal(t, 0, snapshot.EventCount)
	assert.Empty(t, snapshot.Events)
	assert.Empty(t, snapshot.AssetsSummary)
}

func TestArchiveShiftEvents_MissingShift(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	_, err = archiver.ArchiveShiftEvents(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrShiftNotFound)
	assert.Empty(t, store.archives, "nothing persisted on failure")
}

func TestArchiveShiftEvents_CountMismatch(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	shift := completedShift(time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC))
	store.shifts[shift.ID] = shift
	store.events[shift.ID] = []storage.Event{
		shiftEvent(shift.ID, uuid.New(), shift.StartTime.Add(time.Hour), ""),
	}
	wrong := 5
	store.countOverride = &wrong

	_, err = archiver.ArchiveShiftEvents(context.Background(), shift.ID)
	assert.ErrorIs(t, err, ErrEventCountMismatch)
	assert.Empty(t, store.archives, "nothing persisted on integrity failure")
}

func TestVerifyArchiveIntegrity(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	shift := completedShift(time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC))
	store.shifts[shift.ID] = shift
	store.events[shift.ID] = []storage.Event{
		shiftEvent(shift.ID, uuid.New(), shift.StartTime.Add(time.Hour), "sensor fault"),
	}

	archive, err := archiver.ArchiveShiftEvents(context.Background(), shift.ID)
	require.NoError(t, err)

	result, err := archiver.VerifyArchiveIntegrity(context.Background(), archive.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, result.OriginalChecksum, result.CurrentChecksum)

	// Tamper with the stored payload
	store.archives[archive.ID].ArchivedData = append(store.archives[archive.ID].ArchivedData, ' ')

	result, err = archiver.VerifyArchiveIntegrity(context.Background(), archive.ID)
	require.NoError(t, err, "a mismatch is surfaced, not an error")
	assert.False(t, result.Valid)
	assert.NotEqual(t, result.OriginalChecksum, result.CurrentChecksum)

	// Payload is untouched by verification
	assert.Equal(t, result.OriginalChecksum, store.archives[archive.ID].DataChecksum)
}

func TestVerifyArchiveIntegrity_UnknownArchive(t *testing.T) {
	store := newFakeArchiveStore()
	archiver, err := NewArchiver(store, zap.NewNop())
	require.NoError(t, err)

	_, err = archiver.VerifyArchiveIntegrity(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrArchiveNotFound)
}

func TestChecksumDeterministic(t *testing.T) {
	data := []byte(`{"schema_version":1}`)
	assert.Equal(t, Checksum(data), Checksum(data))
	assert.NotEqual(t, Checksum(data), Checksum([]byte(`{"schema_version":2}`)))
	assert.Len(t, Checksum(data), 64)
}

func TestValidatorRejectsMalformedSnapshot(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	// Missing required fields
	err = validator.ValidateSnapshot([]byte(`{"schema_version":1}`))
	assert.Error(t, err)

	// Wrong version
	err = validator.ValidateSnapshot([]byte(`{
		"schema_version": 2,
		"shift_info": {"id":"00000000-0000-0000-0000-000000000001","name":"s","start_time":"2024-03-01T06:00:00Z","end_time":null,"duration_minutes":0},
		"event_count": 0,
		"events": [],
		"assets_summary": []
	}`))
	assert.Error(t, err)

	// Not JSON at all
	err = validator.ValidateSnapshot([]byte(`not json`))
	assert.Error(t, err)
}
