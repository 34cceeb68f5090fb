package shift

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TriggerFunc is invoked when a wall-clock shift trigger fires.
// key is the normalized HH:MM trigger time.
type TriggerFunc func(key string)

// JobStatus describes one installed trigger.
type JobStatus struct {
	Key      string    `json:"key"`
	Running  bool      `json:"running"`
	NextDate time.Time `json:"nextDate"`
}

// RegistryStatus is the scheduler-status payload.
type RegistryStatus struct {
	IsInitialized bool        `json:"isInitialized"`
	TotalJobs     int         `json:"totalJobs"`
	Jobs          []JobStatus `json:"jobs"`
}

// TriggerRegistry owns the wall-clock shift triggers. Install replaces
// the whole set atomically; stale timers from a previous schedule can
// never fire.
type TriggerRegistry struct {
	mu        sync.Mutex
	jobs      map[string]*triggerJob
	loc       *time.Location
	fire      TriggerFunc
	now       func() time.Time
	logger    *zap.Logger
	installed bool
}

type triggerJob struct {
	key    string
	hour   int
	minute int

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	nextDate time.Time
	running  bool
}

func NewTriggerRegistry(loc *time.Location, fire TriggerFunc, logger *zap.Logger) *TriggerRegistry {
	return &TriggerRegistry{
		jobs:   make(map[string]*triggerJob),
		loc:    loc,
		fire:   fire,
		now:    time.Now,
		logger: logger,
	}
}

// ParseShiftTime accepts "HH:MM" or "HHMM" and returns hour and minute.
func ParseShiftTime(s string) (int, int, error) {
	s = strings.TrimSpace(s)

	var layout string
	switch {
	case len(s) == 5 && strings.Contains(s, ":"):
		layout = "15:04"
	case len(s) == 4 && !strings.Contains(s, ":"):
		layout = "1504"
	default:
		return 0, 0, fmt.Errorf("invalid shift time %q: expected HH:MM or HHMM", s)
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shift time %q: %w", s, err)
	}

	return t.Hour(), t.Minute(), nil
}

// Install replaces all triggers with the given time entries. Invalid
// entries are logged and skipped, the rest still installs. Returns the
// number of installed jobs.
func (r *TriggerRegistry) Install(times []string) int {
	r.CancelAll()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range times {
		hour, minute, err := ParseShiftTime(entry)
		if err != nil {
			r.logger.Warn("Skipping invalid shift time entry",
				zap.String("entry", entry),
				zap.Error(err))
			continue
		}

		key := fmt.Sprintf("%02d:%02d", hour, minute)
		if _, exists := r.jobs[key]; exists {
			r.logger.Warn("Skipping duplicate shift time entry",
				zap.String("entry", entry))
			continue
		}

		job := &triggerJob{
			key:      key,
			hour:     hour,
			minute:   minute,
			stopChan: make(chan struct{}),
			nextDate: nextOccurrence(r.now(), hour, minute, r.loc),
			running:  true,
		}
		r.jobs[key] = job

		job.wg.Add(1)
		go r.runJob(job)

		r.logger.Info("Shift trigger installed", zap.String("trigger", key))
	}

	r.installed = true
	return len(r.jobs)
}

// CancelAll stops every trigger and waits for its goroutine to exit.
func (r *TriggerRegistry) CancelAll() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = make(map[string]*triggerJob)
	r.mu.Unlock()

	for _, job := range jobs {
		close(job.stopChan)
		job.wg.Wait()
	}

	if len(jobs) > 0 {
		r.logger.Info("Shift triggers cancelled", zap.Int("count", len(jobs)))
	}
}

// Status returns a snapshot of the installed triggers.
func (r *TriggerRegistry) Status() RegistryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RegistryStatus{
		IsInitialized: r.installed,
		TotalJobs:     len(r.jobs),
		Jobs:          make([]JobStatus, 0, len(r.jobs)),
	}

	for _, job := range r.jobs {
		job.mu.Lock()
		status.Jobs = append(status.Jobs, JobStatus{
			Key:      job.key,
			Running:  job.running,
			NextDate: job.nextDate,
		})
		job.mu.Unlock()
	}

	return status
}

func (r *TriggerRegistry) runJob(job *triggerJob) {
	defer job.wg.Done()

	defer func() {
		job.mu.Lock()
		job.running = false
		job.mu.Unlock()
	}()

	for {
		now := r.now()
		next := nextOccurrence(now, job.hour, job.minute, r.loc)

		job.mu.Lock()
		job.nextDate = next
		job.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-job.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			r.logger.Info("Shift trigger fired", zap.String("trigger", job.key))
			r.fire(job.key)
		}
	}
}

// nextOccurrence returns the next wall-clock occurrence of hour:minute
// in loc, strictly after now.
func nextOccurrence(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
