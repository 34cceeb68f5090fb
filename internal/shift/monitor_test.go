package shift

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMonitorEndsOverdueShift(t *testing.T) {
	store := newFakeStore()
	archiver := &fakeArchiver{}
	scheduler := newTestScheduler(store, archiver, &fakeReports{}, &fakeResetter{})
	defer scheduler.Shutdown()

	// Shift long past the 8h limit
	store.addActiveShift(time.Now().UTC().Add(-10 * time.Hour))

	monitor := NewMonitor(scheduler, 20*time.Millisecond, time.Hour, zap.NewNop())
	monitor.Start()
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return archiver.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "monitor force-ends the overdue shift")

	// The replacement shift stays untouched
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, archiver.callCount())
}

func TestMonitorStartStop(t *testing.T) {
	scheduler := newTestScheduler(newFakeStore(), &fakeArchiver{}, &fakeReports{}, &fakeResetter{})
	defer scheduler.Shutdown()

	monitor := NewMonitor(scheduler, 10*time.Millisecond, 10*time.Millisecond, zap.NewNop())
	monitor.Start()
	monitor.Start() // double start is a no-op
	monitor.Stop()

	assert.NotPanics(t, monitor.Stop, "double stop is a no-op")

	// Restartable after a full stop
	monitor.Start()
	monitor.Stop()
}

func TestMonitorConcurrentStop(t *testing.T) {
	scheduler := newTestScheduler(newFakeStore(), &fakeArchiver{}, &fakeReports{}, &fakeResetter{})
	defer scheduler.Shutdown()

	monitor := NewMonitor(scheduler, 10*time.Millisecond, 10*time.Millisecond, zap.NewNop())
	monitor.Start()

	// Racing Stop calls must not double-close the stop channel
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Stop()
		}()
	}
	wg.Wait()
}
