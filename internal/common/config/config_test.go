// internal/common/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ==========================
// Defaults and Validation
// ==========================

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "school-notifier", cfg.App.Name)
	assert.Equal(t, ":9090", cfg.App.MetricsAddr)
	assert.Equal(t, 5, cfg.Transport.Reconnect.MaxAttempts)
	assert.Equal(t, 1000, cfg.Transport.Reconnect.InitialDelay)
	assert.Equal(t, 5000, cfg.Transport.Reconnect.MaxDelay)
	assert.Equal(t, 100, cfg.Notifications.MaxStored)
	assert.Equal(t, 5000, cfg.Notifications.DedupWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Transport.URL = "ws://localhost:4000/push"
		cfg.API.BaseURL = "http://localhost:4000/api"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing transport url",
			mutate:  func(cfg *Config) { cfg.Transport.URL = "" },
			wantErr: "transport.url",
		},
		{
			name:    "missing api base url",
			mutate:  func(cfg *Config) { cfg.API.BaseURL = "" },
			wantErr: "api.base_url",
		},
		{
			name: "max delay below initial delay",
			mutate: func(cfg *Config) {
				cfg.Transport.Reconnect.InitialDelay = 5000
				cfg.Transport.Reconnect.MaxDelay = 1000
			},
			wantErr: "max_delay",
		},
		{
			name: "cache enabled without address",
			mutate: func(cfg *Config) {
				cfg.Cache.Enabled = true
				cfg.Cache.Address = ""
			},
			wantErr: "cache.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// ==========================
// Duration Helpers
// ==========================

func TestDurationHelpers(t *testing.T) {
	cfg := Config{
		Transport: TransportConfig{
			Reconnect: ReconnectConfig{InitialDelay: 1000, MaxDelay: 5000},
		},
		API:           APIConfig{Timeout: 15000},
		Notifications: NotificationsConfig{DedupWindow: 5000, DesktopDismissDelay: 3000},
		Cache:         CacheConfig{TTL: 1440},
	}

	assert.Equal(t, time.Second, cfg.Transport.Reconnect.InitialDelayDuration())
	assert.Equal(t, 5*time.Second, cfg.Transport.Reconnect.MaxDelayDuration())
	assert.Equal(t, 15*time.Second, cfg.API.TimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.Notifications.DedupWindowDuration())
	assert.Equal(t, 3*time.Second, cfg.Notifications.DesktopDismissDuration())
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTLDuration())
}

// ==========================
// File Loading
// ==========================

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: test-notifier
  environment: test
transport:
  url: ws://localhost:4000/push
  reconnect:
    max_attempts: 3
api:
  base_url: http://localhost:4000/api
notifications:
  max_stored: 50
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test-notifier", cfg.App.Name)
	assert.Equal(t, "ws://localhost:4000/push", cfg.Transport.URL)
	assert.Equal(t, 3, cfg.Transport.Reconnect.MaxAttempts)
	assert.Equal(t, 50, cfg.Notifications.MaxStored)
	// Unset fields still get defaults.
	assert.Equal(t, 1000, cfg.Transport.Reconnect.InitialDelay)
	assert.Equal(t, 5000, cfg.Notifications.DedupWindow)
}

func TestLoadFromFile_InvalidConfigRejected(t *testing.T) {
	path := writeConfigFile(t, `
transport:
  url: ws://localhost:4000/push
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_PUSH_URL", "ws://push.example.test/ws")

	path := writeConfigFile(t, `
transport:
  url: ${TEST_PUSH_URL}
api:
  base_url: http://localhost:4000/api
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://push.example.test/ws", cfg.Transport.URL)
}
