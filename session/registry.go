package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
)

// Registry holds the set of stream discriminants the application wants
// pushed to it. The full set is retransmitted (never a wire delta) whenever
// it changes while connected and once after every successful handshake: the
// broker keeps no client-side diff state, so idempotent full-set
// replacement cannot drift across reconnects.
type Registry struct {
	mu      sync.Mutex
	streams map[string]struct{}
	logger  *slog.Logger
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		streams: make(map[string]struct{}),
		logger:  logger,
	}
}

// Add inserts a stream discriminant and reports whether the set changed.
// Discriminants in the reserved internal namespace are logged and ignored:
// those are delivered through the dedicated peer/lifecycle channels and the
// broker will never stream them.
func (r *Registry) Add(discriminant string) bool {
	if message.IsInternal(discriminant) {
		r.logger.Warn("refusing subscription in internal namespace", "stream", discriminant)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.streams[discriminant]; exists {
		return false
	}
	r.streams[discriminant] = struct{}{}
	return true
}

// Remove deletes a stream discriminant and reports whether the set changed.
func (r *Registry) Remove(discriminant string) bool {
	if message.IsInternal(discriminant) {
		r.logger.Warn("refusing unsubscription in internal namespace", "stream", discriminant)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.streams[discriminant]; !exists {
		return false
	}
	delete(r.streams, discriminant)
	return true
}

// ReplaceAll swaps the entire set, filtering the internal namespace, and
// reports whether the set changed.
func (r *Registry) ReplaceAll(discriminants []string) bool {
	next := make(map[string]struct{}, len(discriminants))
	for _, d := range discriminants {
		if message.IsInternal(d) {
			r.logger.Warn("refusing subscription in internal namespace", "stream", d)
			continue
		}
		next[d] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(next) == len(r.streams) {
		same := true
		for d := range next {
			if _, ok := r.streams[d]; !ok {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	r.streams = next
	return true
}

// Contains reports whether a discriminant is currently subscribed.
func (r *Registry) Contains(discriminant string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.streams[discriminant]
	return ok
}

// Snapshot returns the current set, sorted for deterministic wire output.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.streams))
	for d := range r.streams {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = make(map[string]struct{})
}

// Len returns the subscription count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
