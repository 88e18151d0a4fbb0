package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerDisposeReleasesEverythingOnce(t *testing.T) {
	tracker := NewTracker()

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		tracker.Track(func() { count.Add(1) })
	}
	require.Equal(t, 5, tracker.Len())

	tracker.Dispose()
	assert.Equal(t, int32(5), count.Load())
	assert.Equal(t, 0, tracker.Len())

	// Second dispose is a no-op
	tracker.Dispose()
	assert.Equal(t, int32(5), count.Load())
}

func TestTrackerUntrackSkipsRelease(t *testing.T) {
	tracker := NewTracker()

	var released atomic.Bool
	untrack := tracker.Track(func() { released.Store(true) })
	untrack()
	untrack() // idempotent

	tracker.Dispose()
	assert.False(t, released.Load())
}

func TestTrackerAfterFuncFires(t *testing.T) {
	tracker := NewTracker()

	fired := make(chan struct{})
	tracker.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// The timer untracked itself before running
	assert.Eventually(t, func() bool { return tracker.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestTrackerAfterFuncZeroDuration(t *testing.T) {
	tracker := NewTracker()

	// A zero duration fires on the timer goroutine essentially
	// immediately, racing the arm itself. Every callback must still run
	// and untrack itself cleanly.
	var count atomic.Int32
	for i := 0; i < 100; i++ {
		tracker.AfterFunc(0, func() { count.Add(1) })
	}

	assert.Eventually(t, func() bool { return count.Load() == 100 },
		time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return tracker.Len() == 0 },
		time.Second, time.Millisecond)
}

func TestTrackerAfterFuncCancel(t *testing.T) {
	tracker := NewTracker()

	var fired atomic.Bool
	cancel := tracker.AfterFunc(10*time.Millisecond, func() { fired.Store(true) })
	cancel()
	cancel() // idempotent

	time.Sleep(30 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 0, tracker.Len())
}

func TestTrackerDisposeStopsPendingTimers(t *testing.T) {
	tracker := NewTracker()

	var fired atomic.Bool
	tracker.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	tracker.Dispose()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestTrackerReusableAfterDispose(t *testing.T) {
	tracker := NewTracker()
	tracker.Track(func() {})
	tracker.Dispose()

	var released atomic.Bool
	tracker.Track(func() { released.Store(true) })
	tracker.Dispose()
	assert.True(t, released.Load())
}

func TestTrackerConcurrentTrackAndDispose(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			untrack := tracker.Track(func() {})
			untrack()
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Dispose()
		}()
	}
	wg.Wait()

	tracker.Dispose()
	assert.Equal(t, 0, tracker.Len())
}
