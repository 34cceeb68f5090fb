package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/api/rest"
	"github.com/MarcoGruber/ShiftCore/internal/api/websocket"
	"github.com/MarcoGruber/ShiftCore/internal/archive"
	"github.com/MarcoGruber/ShiftCore/internal/config"
	"github.com/MarcoGruber/ShiftCore/internal/interfaces"
	"github.com/MarcoGruber/ShiftCore/internal/notify"
	"github.com/MarcoGruber/ShiftCore/internal/report"
	"github.com/MarcoGruber/ShiftCore/internal/reset"
	"github.com/MarcoGruber/ShiftCore/internal/shift"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

type LifecycleManager struct {
	config    *config.Config
	storage   *storage.PostgresClient
	wsHub     *websocket.Hub
	archiver  *archive.Archiver
	resetter  *reset.Resetter
	generator *report.Generator
	scheduler *shift.Scheduler
	monitor   *shift.Monitor
	logger    *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(
	db *storage.PostgresClient,
	cfg *config.Config,
	logger *zap.Logger,
) (*LifecycleManager, error) {
	wsHub := websocket.NewHub(logger)

	archiver, err := archive.NewArchiver(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create archiver: %w", err)
	}

	resetter := reset.NewResetter(db, wsHub, logger)

	var notifier report.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewEmailNotifier(cfg.SMTP, logger)
	}
	generator := report.NewGenerator(db, notifier, logger)

	scheduler := shift.NewScheduler(db, archiver, generator, resetter, cfg.Shift, logger)

	monitor := shift.NewMonitor(scheduler,
		cfg.Shift.TimeoutPollInterval,
		cfg.Shift.RetentionPollInterval,
		logger)

	return &LifecycleManager{
		config:       cfg,
		storage:      db,
		wsHub:        wsHub,
		archiver:     archiver,
		resetter:     resetter,
		generator:    generator,
		scheduler:    scheduler,
		monitor:      monitor,
		logger:       logger,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Scheduler returns the shift scheduler
func (lm *LifecycleManager) Scheduler() *shift.Scheduler {
	return lm.scheduler
}

// Storage returns the storage client
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting ShiftCore")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := lm.storage.Migrate(ctx); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	go lm.wsHub.Run()

	// Bootstrap: ohne aktive Schicht startet sofort eine neue
	if err := lm.bootstrapShift(ctx); err != nil {
		lm.setState(StateError)
		return err
	}

	// Schedule aus den gespeicherten Settings aufbauen
	settings, err := lm.storage.GetNotificationSettings(ctx)
	if err != nil {
		lm.logger.Warn("Failed to load settings, using defaults", zap.Error(err))
		settings = storage.DefaultNotificationSettings()
	}
	lm.scheduler.UpdateSchedule(ctx, settings)

	lm.monitor.Start()

	if err := lm.startRESTServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("scheduler_jobs", lm.scheduler.Status().TotalJobs))

	return nil
}

func (lm *LifecycleManager) bootstrapShift(ctx context.Context) error {
	_, err := lm.storage.GetActiveShift(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrShiftNotFound) {
		return fmt.Errorf("failed to check active shift: %w", err)
	}

	created, err := lm.scheduler.StartShift(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to bootstrap shift: %w", err)
	}

	lm.logger.Info("Bootstrap shift created",
		zap.String("shift_id", created.ID.String()),
		zap.String("name", created.Name))

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(
		lm.config,
		lm,
		lm.scheduler,
		lm.storage,
		lm.archiver,
		lm.wsHub,
		lm.logger,
	)
	return lm.restServer.Start()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)

		close(lm.shutdownChan)
	})

	return shutdownErr
}

// Done is closed once shutdown finished.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	// 1. Stop background monitors and wall-clock triggers. An EndShift
	// already past the gate runs to completion before Stop returns.
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.monitor.Stop()
		lm.scheduler.Shutdown()
	}()

	// 2. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// Wait for all shutdowns
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
		return nil
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	lm.stateMu.RUnlock()

	status := interfaces.SystemStatus{
		State:            state.String(),
		SchedulerJobs:    lm.scheduler.Status().TotalJobs,
		ConnectedClients: lm.wsHub.GetClientCount(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if active, err := lm.storage.GetActiveShift(ctx); err == nil {
		status.ActiveShiftID = active.ID.String()
		status.ActiveShiftName = active.Name
	}

	return status
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unexpected state transition", zap.Error(err))
	}

	lm.currentState = state
}
