// Package config loads and validates the application configuration for a
// broker session client. Files may be JSON or YAML; a small set of
// environment variables overrides file values so credentials stay out of
// checked-in configs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvBrokerURL   = "MENTRA_BROKER_URL"
	EnvPackageName = "MENTRA_PACKAGE_NAME"
	EnvAPIKey      = "MENTRA_API_KEY"
)

// Config is the root application configuration.
type Config struct {
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	App     AppConfig     `json:"app" yaml:"app"`
	Session SessionConfig `json:"session" yaml:"session"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// BrokerConfig locates the cloud message broker.
type BrokerConfig struct {
	URL string `json:"url" yaml:"url"`
}

// AppConfig identifies this application to the broker.
type AppConfig struct {
	PackageName string `json:"package_name" yaml:"package_name"`
	APIKey      string `json:"api_key" yaml:"api_key"`
}

// SessionConfig tunes the session engine. Durations are strings in
// time.ParseDuration syntax ("5s", "1m30s"); zero values fall back to the
// engine defaults.
type SessionConfig struct {
	ConnectTimeout string `json:"connect_timeout" yaml:"connect_timeout"`
	RequestTimeout string `json:"request_timeout" yaml:"request_timeout"`
	PhotoTimeout   string `json:"photo_timeout" yaml:"photo_timeout"`

	AutoReconnect        *bool  `json:"auto_reconnect" yaml:"auto_reconnect"`
	ReconnectBaseDelay   string `json:"reconnect_base_delay" yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    string `json:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	ReconnectMaxAttempts int    `json:"reconnect_max_attempts" yaml:"reconnect_max_attempts"`

	SendRatePerSecond float64 `json:"send_rate_per_second" yaml:"send_rate_per_second"`
	SendBurst         int     `json:"send_burst" yaml:"send_burst"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

const maxConfigSize = 1 << 20 // 1MB is far beyond any sane session config

// Load reads, env-overrides, and validates a configuration file. The format
// is chosen by extension: .json, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse json")
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse yaml")
		}
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load", "unsupported extension for "+path)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func safeReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "config", "Load", "empty path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "config", "Load", "stat "+path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load", "not a regular file: "+path)
	}
	if info.Size() > maxConfigSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load",
			fmt.Sprintf("config file too large: %d bytes", info.Size()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config", "Load", "read "+path)
	}
	return data, nil
}

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBrokerURL); v != "" {
		c.Broker.URL = v
	}
	if v := os.Getenv(EnvPackageName); v != "" {
		c.App.PackageName = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.App.APIKey = v
	}
}

// Validate checks required fields and duration syntax.
func (c *Config) Validate() error {
	if c.Broker.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "broker.url")
	}
	if !strings.HasPrefix(c.Broker.URL, "ws://") && !strings.HasPrefix(c.Broker.URL, "wss://") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "broker.url must be a ws:// or wss:// URL")
	}
	if c.App.PackageName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "app.package_name")
	}
	if c.App.APIKey == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "app.api_key")
	}

	durations := map[string]string{
		"session.connect_timeout":      c.Session.ConnectTimeout,
		"session.request_timeout":      c.Session.RequestTimeout,
		"session.photo_timeout":        c.Session.PhotoTimeout,
		"session.reconnect_base_delay": c.Session.ReconnectBaseDelay,
		"session.reconnect_max_delay":  c.Session.ReconnectMaxDelay,
	}
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", field+": "+raw)
		}
	}

	if c.Session.ReconnectMaxAttempts < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "session.reconnect_max_attempts must be >= 0")
	}
	if c.Session.SendRatePerSecond < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "session.send_rate_per_second must be >= 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "metrics.addr")
	}
	return nil
}

// Duration accessors: zero when unset, so callers can fall back to engine
// defaults. Validate has already checked the syntax.

func parsedDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// ConnectTimeoutDuration returns the parsed connect timeout, zero when unset.
func (s SessionConfig) ConnectTimeoutDuration() time.Duration {
	return parsedDuration(s.ConnectTimeout)
}

// RequestTimeoutDuration returns the parsed request timeout, zero when unset.
func (s SessionConfig) RequestTimeoutDuration() time.Duration {
	return parsedDuration(s.RequestTimeout)
}

// PhotoTimeoutDuration returns the parsed photo timeout, zero when unset.
func (s SessionConfig) PhotoTimeoutDuration() time.Duration {
	return parsedDuration(s.PhotoTimeout)
}

// ReconnectBaseDelayDuration returns the parsed base delay, zero when unset.
func (s SessionConfig) ReconnectBaseDelayDuration() time.Duration {
	return parsedDuration(s.ReconnectBaseDelay)
}

// ReconnectMaxDelayDuration returns the parsed max delay, zero when unset.
func (s SessionConfig) ReconnectMaxDelayDuration() time.Duration {
	return parsedDuration(s.ReconnectMaxDelay)
}

// AutoReconnectEnabled reports auto_reconnect, defaulting to true when the
// field is absent.
func (s SessionConfig) AutoReconnectEnabled() bool {
	if s.AutoReconnect == nil {
		return true
	}
	return *s.AutoReconnect
}

// MetricsPath returns the configured metrics path, defaulting to /metrics.
func (m MetricsConfig) MetricsPath() string {
	if m.Path == "" {
		return "/metrics"
	}
	return m.Path
}
