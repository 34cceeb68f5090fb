package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivepkg "github.com/MarcoGruber/ShiftCore/internal/archive"
	"github.com/MarcoGruber/ShiftCore/internal/report"
	"github.com/MarcoGruber/ShiftCore/internal/shift"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

type fakeAPIScheduler struct {
	endSummary     shift.TransitionSummary
	endErr         error
	startShift     *storage.Shift
	startErr       error
	reportResult   *report.Result
	reportErr      error
	scheduleCalls  int
	registryStatus shift.RegistryStatus
}

func (f *fakeAPIScheduler) EndShift(ctx context.Context, shiftID uuid.UUID, opts shift.EndShiftOptions) (shift.TransitionSummary, error) {
	return f.endSummary, f.endErr
}

func (f *fakeAPIScheduler) StartShift(ctx context.Context, name string) (*storage.Shift, error) {
	return f.startShift, f.startErr
}

func (f *fakeAPIScheduler) TriggerReport(ctx context.Context, shiftTime string) (*report.Result, error) {
	return f.reportResult, f.reportErr
}

func (f *fakeAPIScheduler) UpdateSchedule(ctx context.Context, settings storage.NotificationSettings) {
	f.scheduleCalls++
}

func (f *fakeAPIScheduler) Status() shift.RegistryStatus {
	return f.registryStatus
}

type fakeAPIStore struct {
	activeShift *storage.Shift
	shifts      map[uuid.UUID]*storage.Shift
	events      []storage.Event
	archives    map[uuid.UUID]*storage.Archive
	settings    storage.NotificationSettings
	savedAs     *storage.NotificationSettings
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{
		shifts:   make(map[uuid.UUID]*storage.Shift),
		archives: make(map[uuid.UUID]*storage.Archive),
		settings: storage.DefaultNotificationSettings(),
	}
}

func (f *fakeAPIStore) GetActiveShift(ctx context.Context) (*storage.Shift, error) {
	if f.activeShift == nil {
		return nil, storage.ErrShiftNotFound
	}
	return f.activeShift, nil
}

func (f *fakeAPIStore) GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error) {
	s, ok := f.shifts[id]
	if !ok {
		return nil, storage.ErrShiftNotFound
	}
	return s, nil
}

func (f *fakeAPIStore) ListLiveEvents(ctx context.Context, limit int) ([]storage.Event, error) {
	return f.events, nil
}

func (f *fakeAPIStore) ListArchives(ctx context.Context, archiveType storage.ArchiveType, limit int) ([]storage.Archive, error) {
	var out []storage.Archive
	for _, a := range f.archives {
		if archiveType != "" && a.ArchiveType != archiveType {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAPIStore) GetArchive(ctx context.Context, id uuid.UUID) (*storage.Archive, error) {
	a, ok := f.archives[id]
	if !ok {
		return nil, storage.ErrArchiveNotFound
	}
	return a, nil
}

func (f *fakeAPIStore) GetNotificationSettings(ctx context.Context) (storage.NotificationSettings, error) {
	return f.settings, nil
}

func (f *fakeAPIStore) UpdateNotificationSettings(ctx context.Context, settings storage.NotificationSettings) error {
	f.savedAs = &settings
	return nil
}

type fakeVerifier struct {
	result archivepkg.VerificationResult
	err    error
}

func (f *fakeVerifier) VerifyArchiveIntegrity(ctx context.Context, archiveID uuid.UUID) (archivepkg.VerificationResult, error) {
	return f.result, f.err
}

func newTestServer(scheduler Scheduler, store Store, verifier Verifier) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		router:    gin.New(),
		scheduler: scheduler,
		store:     store,
		verifier:  verifier,
		logger:    zap.NewNop(),
	}
	s.setupRoutes()
	return s
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestEndShiftEndpoint(t *testing.T) {
	activeID := uuid.New()
	newID := uuid.New()
	archiveID := uuid.New()

	scheduler := &fakeAPIScheduler{
		endSummary: shift.TransitionSummary{
			ShiftEnded:     true,
			ArchiveCreated: true,
			EndedAt:        time.Now().UTC(),
			ArchiveID:      &archiveID,
			NewShiftID:     &newID,
		},
	}
	store := newFakeAPIStore()
	store.activeShift = &storage.Shift{ID: activeID, Status: storage.ShiftActive}

	s := newTestServer(scheduler, store, &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/shifts/end", map[string]string{"notes": "done"})
	require.Equal(t, http.StatusOK, w.Code)

	var summary shift.TransitionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.True(t, summary.ShiftEnded)
	require.NotNil(t, summary.NewShiftID)
	assert.Equal(t, newID, *summary.NewShiftID)
}

func TestEndShiftEndpoint_NoActiveShift(t *testing.T) {
	s := newTestServer(&fakeAPIScheduler{}, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/shifts/end", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SHIFT_409")
}

func TestEndShiftEndpoint_AlreadyEnding(t *testing.T) {
	// Scheduler reports a no-op transition: someone else won the race
	scheduler := &fakeAPIScheduler{endSummary: shift.TransitionSummary{}}
	store := newFakeAPIStore()
	store.activeShift = &storage.Shift{ID: uuid.New(), Status: storage.ShiftActive}

	s := newTestServer(scheduler, store, &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/shifts/end", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartShiftEndpoint(t *testing.T) {
	created := &storage.Shift{ID: uuid.New(), Name: "Night Shift", Status: storage.ShiftActive}
	scheduler := &fakeAPIScheduler{startShift: created}

	s := newTestServer(scheduler, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/shifts/start", map[string]string{"name": "Night Shift"})
	require.Equal(t, http.StatusCreated, w.Code)

	var got storage.Shift
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestStartShiftEndpoint_AlreadyActive(t *testing.T) {
	scheduler := &fakeAPIScheduler{startErr: shift.ErrShiftAlreadyActive}

	s := newTestServer(scheduler, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/shifts/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetCurrentShiftEndpoint(t *testing.T) {
	store := newFakeAPIStore()
	s := newTestServer(&fakeAPIScheduler{}, store, &fakeVerifier{})

	w := doRequest(s, http.MethodGet, "/api/v1/shifts/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.activeShift = &storage.Shift{ID: uuid.New(), Name: "Shift A", Status: storage.ShiftActive}
	w = doRequest(s, http.MethodGet, "/api/v1/shifts/current", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Shift A")
}

func TestGetShiftEndpoint_InvalidID(t *testing.T) {
	s := newTestServer(&fakeAPIScheduler{}, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodGet, "/api/v1/shifts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SHIFT_400")
}

func TestListArchivesEndpoint(t *testing.T) {
	store := newFakeAPIStore()
	id := uuid.New()
	store.archives[id] = &storage.Archive{ID: id, ArchiveType: storage.ArchiveTypeEvents, Title: "Shift Events"}

	s := newTestServer(&fakeAPIScheduler{}, store, &fakeVerifier{})

	w := doRequest(s, http.MethodGet, "/api/v1/archives?type=EVENTS", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doRequest(s, http.MethodGet, "/api/v1/archives?type=SHIFT_REPORT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = doRequest(s, http.MethodGet, "/api/v1/archives?limit=9999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyArchiveEndpoint(t *testing.T) {
	verifier := &fakeVerifier{
		result: archivepkg.VerificationResult{
			Valid:            true,
			OriginalChecksum: "abc",
			CurrentChecksum:  "abc",
		},
	}

	s := newTestServer(&fakeAPIScheduler{}, newFakeAPIStore(), verifier)

	w := doRequest(s, http.MethodPost, fmt.Sprintf("/api/v1/archives/%s/verify", uuid.New()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestVerifyArchiveEndpoint_NotFound(t *testing.T) {
	verifier := &fakeVerifier{err: fmt.Errorf("load: %w", storage.ErrArchiveNotFound)}

	s := newTestServer(&fakeAPIScheduler{}, newFakeAPIStore(), verifier)

	w := doRequest(s, http.MethodPost, fmt.Sprintf("/api/v1/archives/%s/verify", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ARCHIVE_404")
}

func TestUpdateNotificationSettingsEndpoint(t *testing.T) {
	scheduler := &fakeAPIScheduler{}
	store := newFakeAPIStore()
	s := newTestServer(scheduler, store, &fakeVerifier{})

	settings := storage.DefaultNotificationSettings()
	settings.ShiftSettings.ShiftTimes = []string{"05:45", "1345", "21:45"}

	w := doRequest(s, http.MethodPut, "/api/v1/notifications/settings", settings)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.savedAs)
	assert.Equal(t, 1, scheduler.scheduleCalls, "saving settings rebuilds the schedule")
}

func TestUpdateNotificationSettingsEndpoint_AllTimesInvalid(t *testing.T) {
	scheduler := &fakeAPIScheduler{}
	store := newFakeAPIStore()
	s := newTestServer(scheduler, store, &fakeVerifier{})

	settings := storage.DefaultNotificationSettings()
	settings.ShiftSettings.ShiftTimes = []string{"6 in the morning", "25:99"}

	w := doRequest(s, http.MethodPut, "/api/v1/notifications/settings", settings)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SETTINGS_400")
	assert.Nil(t, store.savedAs, "invalid settings are not persisted")
	assert.Equal(t, 0, scheduler.scheduleCalls)
}

func TestTriggerShiftReportEndpoint(t *testing.T) {
	scheduler := &fakeAPIScheduler{
		reportResult: &report.Result{Notified: true},
	}
	s := newTestServer(scheduler, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodPost, "/api/v1/notifications/trigger-shift-report", map[string]string{"shiftTime": "14:00"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notified":true`)

	// Missing shiftTime fails binding
	w = doRequest(s, http.MethodPost, "/api/v1/notifications/trigger-shift-report", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulerStatusEndpoint(t *testing.T) {
	scheduler := &fakeAPIScheduler{
		registryStatus: shift.RegistryStatus{
			IsInitialized: true,
			TotalJobs:     2,
			Jobs: []shift.JobStatus{
				{Key: "06:00", Running: true},
				{Key: "14:00", Running: true},
			},
		},
	}
	s := newTestServer(scheduler, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodGet, "/api/v1/notifications/scheduler-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalJobs":2`)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeAPIScheduler{}, newFakeAPIStore(), &fakeVerifier{})

	w := doRequest(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
