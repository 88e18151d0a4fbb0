package session

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

func TestPendingResolveSettlesOnce(t *testing.T) {
	table := newPendingTable(NewTracker())

	var got any
	var failures int
	err := table.register("req-1",
		func(v any) { got = v },
		func(error) { failures++ },
		time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, table.size())

	assert.True(t, table.resolve("req-1", "value"))
	assert.Equal(t, "value", got)
	assert.Equal(t, 0, table.size())

	// Late duplicate reply is a no-op
	assert.False(t, table.resolve("req-1", "other"))
	assert.False(t, table.reject("req-1", errors.ErrRequestRejected))
	assert.Equal(t, "value", got)
	assert.Zero(t, failures)
}

func TestPendingRejectSettlesOnce(t *testing.T) {
	table := newPendingTable(NewTracker())

	var got error
	require.NoError(t, table.register("req-1",
		func(any) { t.Fatal("fulfil must not fire") },
		func(err error) { got = err },
		time.Minute))

	assert.True(t, table.reject("req-1", errors.ErrRequestRejected))
	assert.ErrorIs(t, got, errors.ErrRequestRejected)
	assert.False(t, table.resolve("req-1", "late"))
}

func TestPendingDuplicateIDRefused(t *testing.T) {
	table := newPendingTable(NewTracker())

	require.NoError(t, table.register("req-1", func(any) {}, func(error) {}, time.Minute))
	err := table.register("req-1", func(any) {}, func(error) {}, time.Minute)
	assert.ErrorIs(t, err, errors.ErrDuplicateID)
	assert.Equal(t, 1, table.size())
}

func TestPendingDeadlineRejects(t *testing.T) {
	table := newPendingTable(NewTracker())

	failed := make(chan error, 1)
	require.NoError(t, table.register("req-1",
		func(any) { t.Error("fulfil must not fire") },
		func(err error) { failed <- err },
		5*time.Millisecond))

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, errors.ErrRequestTimeout)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
	assert.Equal(t, 0, table.size())
}

func TestPendingResolveCancelsDeadline(t *testing.T) {
	tracker := NewTracker()
	table := newPendingTable(tracker)

	var failures int
	require.NoError(t, table.register("req-1",
		func(any) {},
		func(error) { failures++ },
		10*time.Millisecond))
	require.True(t, table.resolve("req-1", "value"))

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, failures)
	assert.Equal(t, 0, tracker.Len(), "deadline timer must be untracked")
}

func TestPendingDropAbandonsSilently(t *testing.T) {
	table := newPendingTable(NewTracker())

	require.NoError(t, table.register("req-1",
		func(any) { t.Error("fulfil must not fire") },
		func(error) { t.Error("reject must not fire") },
		5*time.Millisecond))
	table.drop("req-1")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, table.size())
}

func TestPendingConcurrentRegisterAndResolve(t *testing.T) {
	tracker := NewTracker()
	table := newPendingTable(tracker)

	// Replies race registration: the resolver spins until the entry is
	// visible. Every settled entry must leave its deadline timer stopped
	// and untracked.
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("req-%d", i)
		require.NoError(t, table.register(id,
			func(any) {},
			func(error) { t.Error("deadline must not fire") },
			time.Minute))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !table.resolve(id, "value") {
				runtime.Gosched()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, table.size())
	assert.Equal(t, 0, tracker.Len(), "all deadline timers must be untracked")
}

func TestPendingRejectAll(t *testing.T) {
	table := newPendingTable(NewTracker())

	errs := make([]error, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, table.register(id,
			func(any) {},
			func(err error) { errs = append(errs, err) },
			time.Minute))
	}

	table.rejectAll(errors.ErrSessionClosed)
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, errors.ErrSessionClosed)
	}
	assert.Equal(t, 0, table.size())
}

func TestNewCorrelationIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := newCorrelationID(now)
		_, dup := seen[id]
		require.False(t, dup, "duplicate correlation id %s", id)
		seen[id] = struct{}{}
	}
}
