package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/archive"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

type fakeReportStore struct {
	shift    *storage.Shift
	events   []storage.Event
	archives []*storage.Archive
}

func (f *fakeReportStore) GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error) {
	if f.shift == nil || f.shift.ID != id {
		return nil, storage.ErrShiftNotFound
	}
	return f.shift, nil
}

func (f *fakeReportStore) ListEventsByShift(ctx context.Context, shiftID uuid.UUID) ([]storage.Event, error) {
	return f.events, nil
}

func (f *fakeReportStore) CreateArchive(ctx context.Context, a *storage.Archive) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.archives = append(f.archives, a)
	return nil
}

type fakeNotifier struct {
	calls    int
	failures int // fail the first N calls
	lastOpts DeliveryOptions
}

func (f *fakeNotifier) SendShiftReportNotifications(ctx context.Context, reportArchive *storage.Archive, report ShiftReport, opts DeliveryOptions) error {
	f.calls++
	f.lastOpts = opts
	if f.calls <= f.failures {
		return errors.New("smtp timeout")
	}
	return nil
}

func reportTestShift() *storage.Shift {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	return &storage.Shift{
		ID:        uuid.New(),
		Name:      "Shift 2024-03-01 06:00",
		StartTime: start,
		EndTime:   &end,
		Status:    storage.ShiftCompleted,
	}
}

func stopEvent(shiftID, assetID uuid.UUID, name, reason string) storage.Event {
	return storage.Event{
		ID:         uuid.New(),
		AssetID:    assetID,
		AssetName:  name,
		ShiftID:    &shiftID,
		EventType:  "STATE_CHANGE",
		NewState:   "STOPPED",
		Timestamp:  time.Now().UTC(),
		StopReason: reason,
	}
}

func TestGenerateAndArchiveShiftReport(t *testing.T) {
	shift := reportTestShift()
	press := uuid.New()
	saw := uuid.New()
	store := &fakeReportStore{
		shift: shift,
		events: []storage.Event{
			stopEvent(shift.ID, press, "Press 01", "material jam"),
			stopEvent(shift.ID, press, "Press 01", "material jam"),
			stopEvent(shift.ID, press, "Press 01", ""),
			stopEvent(shift.ID, saw, "Saw 02", "blade change"),
		},
	}
	generator := NewGenerator(store, nil, zap.NewNop())

	result, err := generator.GenerateAndArchiveShiftReport(context.Background(), shift.ID, Options{Notes: "handover notes"})
	require.NoError(t, err)

	require.NotNil(t, result.ReportArchive)
	assert.Equal(t, storage.ArchiveTypeShiftReport, result.ReportArchive.ArchiveType)
	assert.Equal(t, "report-generator", result.ReportArchive.CreatedBy)
	assert.Equal(t, archive.Checksum(result.ReportArchive.ArchivedData), result.ReportArchive.DataChecksum)
	assert.False(t, result.Notified)

	assert.Equal(t, 4, result.Report.TotalEvents)
	assert.Equal(t, 3, result.Report.StopEvents)
	assert.Equal(t, "handover notes", result.Report.Notes)

	require.NotEmpty(t, result.Report.TopStopReasons)
	assert.Equal(t, "material jam", result.Report.TopStopReasons[0].Reason)
	assert.Equal(t, 2, result.Report.TopStopReasons[0].Count)

	require.Len(t, result.Report.AssetReports, 2)
	assert.Equal(t, 3, result.Report.AssetReports[0].EventCount)
	assert.Equal(t, 2, result.Report.AssetReports[0].StopCount)

	// Archived payload round-trips to the same report shape
	var stored ShiftReport
	require.NoError(t, json.Unmarshal(result.ReportArchive.ArchivedData, &stored))
	assert.Equal(t, result.Report.ShiftID, stored.ShiftID)
	assert.Equal(t, result.Report.TotalEvents, stored.TotalEvents)
}

func TestGenerateAndArchiveShiftReport_AutoSend(t *testing.T) {
	shift := reportTestShift()
	store := &fakeReportStore{shift: shift}
	notifier := &fakeNotifier{}
	generator := NewGenerator(store, notifier, zap.NewNop())

	result, err := generator.GenerateAndArchiveShiftReport(context.Background(), shift.ID, Options{
		AutoSend:    true,
		EmailFormat: "html",
		Recipients:  []string{"lead@example.com"},
	})
	require.NoError(t, err)

	assert.True(t, result.Notified)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, []string{"lead@example.com"}, notifier.lastOpts.Recipients)
	assert.Equal(t, "html", notifier.lastOpts.Format)
}

func TestGenerateAndArchiveShiftReport_DeliveryRetries(t *testing.T) {
	shift := reportTestShift()
	store := &fakeReportStore{shift: shift}
	notifier := &fakeNotifier{failures: 1}
	generator := NewGenerator(store, notifier, zap.NewNop())

	result, err := generator.GenerateAndArchiveShiftReport(context.Background(), shift.ID, Options{
		AutoSend:   true,
		Recipients: []string{"lead@example.com"},
	})
	require.NoError(t, err)

	assert.True(t, result.Notified, "delivery succeeds on retry")
	assert.Equal(t, 2, notifier.calls)
}

func TestGenerateAndArchiveShiftReport_NoRecipients(t *testing.T) {
	shift := reportTestShift()
	store := &fakeReportStore{shift: shift}
	notifier := &fakeNotifier{}
	generator := NewGenerator(store, notifier, zap.NewNop())

	result, err := generator.GenerateAndArchiveShiftReport(context.Background(), shift.ID, Options{
		AutoSend: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Notified)
	assert.Equal(t, 0, notifier.calls)
	require.Len(t, store.archives, 1, "report is archived even without delivery")
}

func TestGenerateAndArchiveShiftReport_UnknownShift(t *testing.T) {
	generator := NewGenerator(&fakeReportStore{}, nil, zap.NewNop())

	_, err := generator.GenerateAndArchiveShiftReport(context.Background(), uuid.New(), Options{})
	assert.ErrorIs(t, err, storage.ErrShiftNotFound)
}

func TestBuildReport_TopStopReasonsCapped(t *testing.T) {
	shift := reportTestShift()
	asset := uuid.New()

	var events []storage.Event
	reasons := []string{"jam", "jam", "jam", "blade", "blade", "sensor", "power", "operator", "cleaning", "other"}
	for _, reason := range reasons {
		events = append(events, stopEvent(shift.ID, asset, "Press 01", reason))
	}

	report := buildReport(shift, events, "")

	require.Len(t, report.TopStopReasons, 5)
	assert.Equal(t, "jam", report.TopStopReasons[0].Reason)
	assert.Equal(t, 3, report.TopStopReasons[0].Count)
	assert.Equal(t, "blade", report.TopStopReasons[1].Reason)
}
