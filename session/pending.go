package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

// pendingRequest pairs the outcome callbacks of one in-flight correlated
// request with its deadline timer.
type pendingRequest struct {
	fulfil      func(value any)
	reject      func(err error)
	cancelTimer func()
}

// pendingTable maps correlation ids to in-flight requests. Every
// request/response operation multiplexed over the single connection (photo
// capture, location poll, direct message, user discovery) registers here.
// Exactly one of fulfil/reject fires per entry; a late or duplicate settle
// is a no-op because the entry is removed on first settle.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
	tracker *Tracker
}

func newPendingTable(tracker *Tracker) *pendingTable {
	return &pendingTable{
		entries: make(map[string]*pendingRequest),
		tracker: tracker,
	}
}

// newCorrelationID generates an id unique among concurrently outstanding
// requests: millisecond timestamp plus a random suffix.
func newCorrelationID(now time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%d-%d", now.UnixMilli(), now.UnixNano()%100000)
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(suffix))
}

// register stores the callbacks and arms a tracked deadline timer that
// rejects the entry with ErrRequestTimeout when it fires first. The timer
// cancel is assigned in the same critical section that publishes the entry,
// so a reply racing in on the read pump always finds it set. The timer
// callback runs on its own goroutine, never inside AfterFunc, so arming
// under the lock cannot deadlock against its own reject.
func (p *pendingTable) register(id string, fulfil func(any), reject func(error), timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateID, "pendingTable", "register", "correlation id "+id)
	}

	entry := &pendingRequest{fulfil: fulfil, reject: reject}
	entry.cancelTimer = p.tracker.AfterFunc(timeout, func() {
		p.reject(id, errors.WrapTransient(errors.ErrRequestTimeout, "pendingTable", "deadline", "request "+id))
	})
	p.entries[id] = entry
	return nil
}

// resolve settles an entry successfully. Returns false when no live entry
// matches, which makes duplicate replies harmless.
func (p *pendingTable) resolve(id string, value any) bool {
	entry := p.take(id)
	if entry == nil {
		return false
	}
	entry.fulfil(value)
	return true
}

// reject settles an entry with an error.
func (p *pendingTable) reject(id string, err error) bool {
	entry := p.take(id)
	if entry == nil {
		return false
	}
	entry.reject(err)
	return true
}

// drop removes an entry without settling it, for callers that abandoned
// the wait themselves (context cancellation).
func (p *pendingTable) drop(id string) {
	p.take(id)
}

// take removes and returns an entry, cancelling its deadline timer.
// Callbacks run outside the table lock.
func (p *pendingTable) take(id string) *pendingRequest {
	p.mu.Lock()
	entry, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if entry.cancelTimer != nil {
		entry.cancelTimer()
	}
	return entry
}

// rejectAll settles every outstanding entry with err. Used on dispose so
// callers awaiting replies observe rejection instead of hanging on a
// session that no longer exists.
func (p *pendingTable) rejectAll(err error) {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*pendingRequest)
	p.mu.Unlock()

	for _, entry := range entries {
		if entry.cancelTimer != nil {
			entry.cancelTimer()
		}
		entry.reject(err)
	}
}

// size returns the number of outstanding requests.
func (p *pendingTable) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
