// Package backoff provides exponential backoff delay calculation for the
// reconnection controller.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config provides backoff configuration
type Config struct {
	BaseDelay   time.Duration // Delay for attempt 0
	MaxDelay    time.Duration // Cap on the computed delay (0 = uncapped)
	MaxAttempts int           // Attempts before the budget is exhausted
	Multiplier  float64       // Growth factor per attempt (typically 2.0)
	AddJitter   bool          // Add randomness to prevent thundering herd
}

// DefaultConfig returns the session engine's reconnection defaults:
// 1s base delay doubling per attempt, three attempts before giving up.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 3,
		Multiplier:  2.0,
		AddJitter:   false,
	}
}

// Delay returns the wait before reconnect attempt n (0-based):
// BaseDelay * Multiplier^n, capped at MaxDelay, with optional jitter of up
// to 25% added on top.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := c.BaseDelay
	if base <= 0 {
		return 0
	}
	multiplier := c.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}

	delay := float64(base) * math.Pow(multiplier, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	// Uncapped growth overflows time.Duration long before MaxAttempts runs
	// out; clamp rather than wrap.
	if delay > float64(math.MaxInt64) {
		delay = float64(math.MaxInt64)
	}

	d := time.Duration(delay)
	if c.AddJitter && d > 0 && d <= math.MaxInt64-d/4 {
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(d/4) + 1))
		randMu.Unlock()
		d += jitter
	}
	return d
}

// Exhausted reports whether attempt n (0-based) is beyond the retry budget.
func (c Config) Exhausted(attempt int) bool {
	return attempt >= c.MaxAttempts
}
