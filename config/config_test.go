package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"broker": {"url": "wss://broker.example.com/app-ws"},
		"app": {"package_name": "com.example.captions", "api_key": "key-123"},
		"session": {
			"connect_timeout": "5s",
			"photo_timeout": "45s",
			"reconnect_max_attempts": 5,
			"send_rate_per_second": 10,
			"send_burst": 20
		},
		"metrics": {"enabled": true, "addr": ":9102"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://broker.example.com/app-ws", cfg.Broker.URL)
	assert.Equal(t, "com.example.captions", cfg.App.PackageName)
	assert.Equal(t, 5*time.Second, cfg.Session.ConnectTimeoutDuration())
	assert.Equal(t, 45*time.Second, cfg.Session.PhotoTimeoutDuration())
	assert.Zero(t, cfg.Session.RequestTimeoutDuration(), "unset duration falls back to engine default")
	assert.Equal(t, 5, cfg.Session.ReconnectMaxAttempts)
	assert.True(t, cfg.Session.AutoReconnectEnabled(), "auto_reconnect defaults to true")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.MetricsPath())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
broker:
  url: wss://broker.example.com/app-ws
app:
  package_name: com.example.captions
  api_key: key-123
session:
  auto_reconnect: false
  reconnect_base_delay: 500ms
metrics:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Session.AutoReconnectEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.Session.ReconnectBaseDelayDuration())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "broker = {}")
	_, err := Load(path)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"broker": {"url": "wss://file.example.com/ws"},
		"app": {"package_name": "com.example.captions", "api_key": "file-key"}
	}`)

	t.Setenv(EnvBrokerURL, "wss://env.example.com/ws")
	t.Setenv(EnvAPIKey, "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://env.example.com/ws", cfg.Broker.URL)
	assert.Equal(t, "env-key", cfg.App.APIKey)
	assert.Equal(t, "com.example.captions", cfg.App.PackageName, "unset env vars leave file values alone")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Broker: BrokerConfig{URL: "wss://broker.example.com/ws"},
			App:    AppConfig{PackageName: "com.example.app", APIKey: "k"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing broker url", func(c *Config) { c.Broker.URL = "" }, errors.ErrMissingConfig},
		{"http broker url", func(c *Config) { c.Broker.URL = "https://broker.example.com" }, errors.ErrInvalidConfig},
		{"missing package name", func(c *Config) { c.App.PackageName = "" }, errors.ErrMissingConfig},
		{"missing api key", func(c *Config) { c.App.APIKey = "" }, errors.ErrMissingConfig},
		{"bad duration", func(c *Config) { c.Session.ConnectTimeout = "five seconds" }, errors.ErrInvalidConfig},
		{"negative attempts", func(c *Config) { c.Session.ReconnectMaxAttempts = -1 }, errors.ErrInvalidConfig},
		{"negative rate", func(c *Config) { c.Session.SendRatePerSecond = -1 }, errors.ErrInvalidConfig},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true }, errors.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
