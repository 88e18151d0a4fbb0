package session

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rajeevrajeshuni/MentraOS-sub001/metric"
	"github.com/rajeevrajeshuni/MentraOS-sub001/pkg/backoff"
)

// Option is a functional option for configuring the Client
type Option func(*Client) error

// WithLogger sets a custom structured logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection using the provided registry
func WithMetrics(registry *metric.Registry) Option {
	return func(c *Client) error {
		if registry == nil {
			return nil
		}
		metrics, err := newSessionMetrics(registry)
		if err != nil {
			return err
		}
		c.metrics = metrics
		return nil
	}
}

// WithConnectTimeout sets how long Connect waits for the handshake
// acknowledgment before failing with ErrConnectionTimeout
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.connectTimeout = d
		}
		return nil
	}
}

// WithRequestTimeout sets the default deadline for location polls, direct
// messages, and user discovery
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.requestTimeout = d
		}
		return nil
	}
}

// WithPhotoTimeout sets the deadline for photo capture requests
func WithPhotoTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.photoTimeout = d
		}
		return nil
	}
}

// WithAutoReconnect enables or disables reconnection after abnormal closure
func WithAutoReconnect(enabled bool) Option {
	return func(c *Client) error {
		c.autoReconnect = enabled
		return nil
	}
}

// WithBackoff overrides the reconnection backoff policy
func WithBackoff(cfg backoff.Config) Option {
	return func(c *Client) error {
		c.backoffCfg = cfg
		return nil
	}
}

// WithSendLimiter attaches an advisory rate limiter to outbound sends.
// Exceeding the limit never drops or blocks a message; it is logged and
// counted so a chatty client is visible before the broker throttles it.
func WithSendLimiter(perSecond float64, burst int) Option {
	return func(c *Client) error {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
		return nil
	}
}

// WithSettingsSubscriptions registers a mapping from the broker settings
// snapshot to the derived subscription set. Whenever a settings_update
// arrives, the registry is replaced with the mapping's output and flushed.
func WithSettingsSubscriptions(fn func(settings map[string]any) []string) Option {
	return func(c *Client) error {
		c.settingsSubs = fn
		return nil
	}
}

// WithClock overrides the time source used for stamping and correlation
// ids (for testing)
func WithClock(fn func() time.Time) Option {
	return func(c *Client) error {
		if fn != nil {
			c.clock = fn
		}
		return nil
	}
}
