package shift

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor runs the two background safety loops: the duration-timeout
// check and the daily retention cleanup. Both are independent of the
// wall-clock triggers.
type Monitor struct {
	scheduler         *Scheduler
	timeoutInterval   time.Duration
	retentionInterval time.Duration
	logger            *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewMonitor(scheduler *Scheduler, timeoutInterval, retentionInterval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		scheduler:         scheduler,
		timeoutInterval:   timeoutInterval,
		retentionInterval: retentionInterval,
		logger:            logger,
		stopChan:          make(chan struct{}),
	}
}

// Start startet die Hintergrund-Loops
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.stopChan = make(chan struct{})
	m.wg.Add(2)

	go m.timeoutLoop()
	go m.retentionLoop()

	m.logger.Info("Shift monitor started",
		zap.Duration("timeout_interval", m.timeoutInterval),
		zap.Duration("retention_interval", m.retentionInterval))
}

// Stop stoppt beide Loops
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	// running wird noch unter dem Lock zurückgesetzt, damit ein
	// paralleler Stop den Channel nicht doppelt schließt
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()

	m.logger.Info("Shift monitor stopped")
}

func (m *Monitor) timeoutLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.timeoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.timeoutInterval)
			if err := m.scheduler.CheckDurationTimeout(ctx); err != nil {
				// Next poll retries, the scheduler process must not die
				m.logger.Error("Duration timeout check failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (m *Monitor) retentionLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if err := m.scheduler.PerformDataRetentionCleanup(ctx); err != nil {
				m.logger.Error("Retention cleanup failed", zap.Error(err))
			}
			cancel()
		}
	}
}
