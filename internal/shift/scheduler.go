package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/config"
	"github.com/MarcoGruber/ShiftCore/internal/report"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

var (
	ErrShiftAlreadyActive = errors.New("a shift is already active")
	ErrNoActiveShift      = errors.New("no active shift")
)

// Store is the storage surface the scheduler needs.
type Store interface {
	GetActiveShift(ctx context.Context) (*storage.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error)
	GetLastCompletedShift(ctx context.Context) (*storage.Shift, error)
	CreateShift(ctx context.Context, name string, start time.Time) (*storage.Shift, error)
	CompleteShift(ctx context.Context, id uuid.UUID, end time.Time, notes string) (bool, error)
	AssignOpenEvents(ctx context.Context, shiftID uuid.UUID, start, end time.Time) (int, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
	GetNotificationSettings(ctx context.Context) (storage.NotificationSettings, error)
}

// Archiver snapshots a shift's events into an immutable archive.
type Archiver interface {
	ArchiveShiftEvents(ctx context.Context, shiftID uuid.UUID) (*storage.Archive, error)
}

// ReportGenerator is the external report collaborator.
type ReportGenerator interface {
	GenerateAndArchiveShiftReport(ctx context.Context, shiftID uuid.UUID, opts report.Options) (*report.Result, error)
}

// Resetter clears live state for the next shift.
type Resetter interface {
	ResetEventsTable(ctx context.Context) error
	TriggerDashboardReset(newShift *storage.Shift)
}

type EndShiftOptions struct {
	Manual bool
	Notes  string
}

// TransitionSummary reports what an EndShift call actually did. A
// conflicting trigger gets a zero summary and no error.
type TransitionSummary struct {
	ShiftEnded      bool       `json:"shiftEnded"`
	ArchiveCreated  bool       `json:"archiveCreated"`
	ReportGenerated bool       `json:"reportGenerated"`
	EndedAt         time.Time  `json:"endedAt,omitempty"`
	ArchiveID       *uuid.UUID `json:"archiveId,omitempty"`
	NewShiftID      *uuid.UUID `json:"newShiftId,omitempty"`
}

// Scheduler owns shift-status transitions. All triggers (wall-clock,
// duration timeout, manual call) funnel into EndShift, which runs at
// most once per shift.
type Scheduler struct {
	store    Store
	archiver Archiver
	reports  ReportGenerator
	resetter Resetter
	registry *TriggerRegistry
	guards   *transitionGuards
	cfg      config.ShiftConfig
	logger   *zap.Logger
}

func NewScheduler(
	store Store,
	archiver Archiver,
	reports ReportGenerator,
	resetter Resetter,
	cfg config.ShiftConfig,
	logger *zap.Logger,
) *Scheduler {
	s := &Scheduler{
		store:    store,
		archiver: archiver,
		reports:  reports,
		resetter: resetter,
		guards:   newTransitionGuards(),
		cfg:      cfg,
		logger:   logger,
	}

	s.registry = NewTriggerRegistry(cfg.Location(), s.handleTrigger, logger)

	return s
}

// UpdateSchedule recomputes the wall-clock triggers from settings. The
// previous trigger set is fully cancelled before the new one installs.
func (s *Scheduler) UpdateSchedule(ctx context.Context, settings storage.NotificationSettings) {
	if !settings.ShiftSettings.Enabled {
		s.registry.CancelAll()
		s.logger.Info("Shift automation disabled, all triggers cancelled")
		return
	}

	installed := s.registry.Install(settings.ShiftSettings.ShiftTimes)

	s.logger.Info("Shift schedule updated",
		zap.Int("configured", len(settings.ShiftSettings.ShiftTimes)),
		zap.Int("installed", installed))
}

// EndShift is the single transition entry point. Steps run strictly in
// order: durable status flip, archive, report (best-effort), live-state
// reset (best-effort), next shift (best-effort). A concurrent trigger
// observing the transition already under way is a logged no-op.
func (s *Scheduler) EndShift(ctx context.Context, shiftID uuid.UUID, opts EndShiftOptions) (TransitionSummary, error) {
	var summary TransitionSummary

	if !s.guards.Begin(ctx, shiftID) {
		s.logger.Info("Shift transition already in progress, trigger ignored",
			zap.String("shift_id", shiftID.String()),
			zap.Bool("manual", opts.Manual))
		return summary, nil
	}

	now := time.Now().UTC()

	won, err := s.store.CompleteShift(ctx, shiftID, now, opts.Notes)
	if err != nil {
		s.guards.Abort(ctx, shiftID)
		return summary, fmt.Errorf("failed to mark shift completed: %w", err)
	}
	if !won {
		// Another actor (or process) already completed this shift
		s.guards.Complete(ctx, shiftID)
		s.logger.Info("Shift already completed, trigger ignored",
			zap.String("shift_id", shiftID.String()))
		return summary, nil
	}

	summary.ShiftEnded = true
	summary.EndedAt = now

	// The shift is durably completed now; the remaining steps must not
	// die with the caller (e.g. an HTTP client disconnecting), or events
	// stay unarchived and no follow-up shift ever starts.
	ctx = context.WithoutCancel(ctx)

	s.logger.Info("Shift marked completed",
		zap.String("shift_id", shiftID.String()),
		zap.Bool("manual", opts.Manual),
		zap.Time("end_time", now))

	ended, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		s.guards.Complete(ctx, shiftID)
		return summary, fmt.Errorf("failed to reload ended shift: %w", err)
	}

	if _, err := s.store.AssignOpenEvents(ctx, shiftID, ended.StartTime, now); err != nil {
		s.guards.Complete(ctx, shiftID)
		return summary, fmt.Errorf("failed to assign events to shift: %w", err)
	}

	archiveRec, err := s.archiver.ArchiveShiftEvents(ctx, shiftID)
	if err != nil {
		s.guards.Complete(ctx, shiftID)
		return summary, fmt.Errorf("failed to archive shift events: %w", err)
	}

	summary.ArchiveCreated = true
	summary.ArchiveID = &archiveRec.ID

	// From here on failures must not keep the next shift from starting
	settings, err := s.store.GetNotificationSettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load settings, using defaults for reporting", zap.Error(err))
		settings = storage.DefaultNotificationSettings()
	}

	if settings.ShiftSettings.Enabled && s.reports != nil {
		_, err := s.reports.GenerateAndArchiveShiftReport(ctx, shiftID, report.Options{
			AutoSend:    settings.ShiftSettings.AutoSend,
			EmailFormat: settings.ShiftSettings.EmailFormat,
			Recipients:  settings.Recipients,
			Notes:       opts.Notes,
		})
		if err != nil {
			s.logger.Error("Report generation failed, shift transition continues",
				zap.String("shift_id", shiftID.String()),
				zap.Error(err))
		} else {
			summary.ReportGenerated = true
		}
	}

	if err := s.resetter.ResetEventsTable(ctx); err != nil {
		s.logger.Error("Live-state reset failed, shift transition continues",
			zap.Error(err))
	}

	newShift, err := s.store.CreateShift(ctx, s.shiftName(now), now)
	if err != nil {
		s.logger.Error("Failed to create next shift, manual start required",
			zap.Error(err))
	} else {
		summary.NewShiftID = &newShift.ID
		s.logger.Info("New shift started",
			zap.String("shift_id", newShift.ID.String()),
			zap.String("name", newShift.Name))
	}

	s.resetter.TriggerDashboardReset(newShift)

	s.guards.Complete(ctx, shiftID)

	return summary, nil
}

// StartShift explicitly starts a shift when none is active (bootstrap).
func (s *Scheduler) StartShift(ctx context.Context, name string) (*storage.Shift, error) {
	if _, err := s.store.GetActiveShift(ctx); err == nil {
		return nil, ErrShiftAlreadyActive
	} else if !errors.Is(err, storage.ErrShiftNotFound) {
		return nil, fmt.Errorf("failed to check active shift: %w", err)
	}

	now := time.Now().UTC()
	if name == "" {
		name = s.shiftName(now)
	}

	shift, err := s.store.CreateShift(ctx, name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}

	s.logger.Info("Shift started",
		zap.String("shift_id", shift.ID.String()),
		zap.String("name", shift.Name))

	return shift, nil
}

// CheckDurationTimeout ends the active shift when it exceeded the
// configured maximum duration. Safety net only: when a wall-clock
// trigger already closed the shift this is a no-op.
func (s *Scheduler) CheckDurationTimeout(ctx context.Context) error {
	shift, err := s.store.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrShiftNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load active shift: %w", err)
	}

	elapsed := time.Since(shift.StartTime)
	if elapsed <= s.cfg.MaxDuration {
		return nil
	}

	s.logger.Warn("Shift exceeded maximum duration, forcing end",
		zap.String("shift_id", shift.ID.String()),
		zap.Duration("elapsed", elapsed),
		zap.Duration("max_duration", s.cfg.MaxDuration))

	_, err = s.EndShift(ctx, shift.ID, EndShiftOptions{
		Manual: false,
		Notes:  fmt.Sprintf("automatic end after %s timeout", s.cfg.MaxDuration),
	})
	return err
}

// TriggerReport re-runs report generation for the most recently
// completed shift. Shift state is untouched, so the call is idempotent
// with respect to the lifecycle.
func (s *Scheduler) TriggerReport(ctx context.Context, shiftTime string) (*report.Result, error) {
	if s.reports == nil {
		return nil, errors.New("no report generator configured")
	}

	if _, _, err := ParseShiftTime(shiftTime); err != nil {
		return nil, err
	}

	last, err := s.store.GetLastCompletedShift(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find completed shift: %w", err)
	}

	settings, err := s.store.GetNotificationSettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load settings, using defaults for report re-run", zap.Error(err))
		settings = storage.DefaultNotificationSettings()
	}

	s.logger.Info("Administrative report re-run",
		zap.String("shift_time", shiftTime),
		zap.String("shift_id", last.ID.String()))

	return s.reports.GenerateAndArchiveShiftReport(ctx, last.ID, report.Options{
		AutoSend:    settings.ShiftSettings.AutoSend,
		EmailFormat: settings.ShiftSettings.EmailFormat,
		Recipients:  settings.Recipients,
		Notes:       fmt.Sprintf("re-run for trigger %s", shiftTime),
	})
}

// PerformDataRetentionCleanup deletes claimed events older than the
// cutoff. Archives keep the historical copies. Runs decoupled from the
// transition gate.
func (s *Scheduler) PerformDataRetentionCleanup(ctx context.Context) error {
	settings, err := s.store.GetNotificationSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	days := settings.ShiftSettings.RetentionDays
	if days <= 0 {
		s.logger.Info("Retention cleanup disabled")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	deleted, err := s.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention cleanup failed: %w", err)
	}

	s.logger.Info("Retention cleanup finished",
		zap.Int("deleted_events", deleted),
		zap.Time("cutoff", cutoff))

	return nil
}

// Status reports the trigger registry for the scheduler-status endpoint.
func (s *Scheduler) Status() RegistryStatus {
	return s.registry.Status()
}

// Shutdown cancels all wall-clock triggers. An EndShift already past
// the gate keeps running to completion.
func (s *Scheduler) Shutdown() {
	s.registry.CancelAll()
}

func (s *Scheduler) handleTrigger(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	shift, err := s.store.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrShiftNotFound) {
			s.logger.Info("Shift trigger fired with no active shift", zap.String("trigger", key))
		} else {
			s.logger.Error("Failed to load active shift for trigger",
				zap.String("trigger", key), zap.Error(err))
		}
		return
	}

	if _, err := s.EndShift(ctx, shift.ID, EndShiftOptions{
		Manual: false,
		Notes:  fmt.Sprintf("scheduled shift end %s", key),
	}); err != nil {
		s.logger.Error("Scheduled shift end failed",
			zap.String("trigger", key),
			zap.String("shift_id", shift.ID.String()),
			zap.Error(err))
	}
}

func (s *Scheduler) shiftName(start time.Time) string {
	return fmt.Sprintf("Shift %s", start.In(s.cfg.Location()).Format("2006-01-02 15:04"))
}
