package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker is a scoped registry of cleanup actions: deadline timers, backoff
// timers, and the connection itself. Dispose releases everything exactly
// once regardless of how the session exits, which keeps ad-hoc timer
// registration out of the handler code.
type Tracker struct {
	mu       sync.Mutex
	releases map[string]func()
}

// NewTracker creates an empty resource tracker.
func NewTracker() *Tracker {
	return &Tracker{
		releases: make(map[string]func()),
	}
}

// Track registers a release action and returns a function that removes it
// without invoking it. Untrack is idempotent.
func (t *Tracker) Track(release func()) (untrack func()) {
	id := uuid.NewString()

	t.mu.Lock()
	t.releases[id] = release
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.releases, id)
		t.mu.Unlock()
	}
}

// AfterFunc arms a tracked timer. When the timer fires it untracks itself
// before running fn, so a later Dispose cannot double-release it. The
// returned cancel stops the timer and untracks it; cancel is idempotent.
//
// The release action is registered before the timer is armed: a zero or
// tiny duration may fire on the timer goroutine immediately, and everything
// that callback touches must already be in place.
func (t *Tracker) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	var (
		mu       sync.Mutex
		timer    *time.Timer
		released bool
	)
	untrack := t.Track(func() {
		mu.Lock()
		defer mu.Unlock()
		released = true
		if timer != nil {
			timer.Stop()
		}
	})

	mu.Lock()
	if !released {
		timer = time.AfterFunc(d, func() {
			untrack()
			fn()
		})
	}
	mu.Unlock()

	return func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		untrack()
	}
}

// Len returns the number of tracked resources.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.releases)
}

// Dispose invokes every release action exactly once and clears the
// collection, leaving the tracker reusable. Safe to call repeatedly and
// safe to call from within a release action: the collection is detached
// under the lock before any action runs, so a reentrant Dispose sees an
// empty tracker and returns.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	releases := t.releases
	t.releases = make(map[string]func())
	t.mu.Unlock()

	for _, release := range releases {
		release()
	}
}
