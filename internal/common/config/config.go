// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Transport     TransportConfig     `mapstructure:"transport"`
	API           APIConfig           `mapstructure:"api"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// TransportConfig holds the push-channel endpoint and reconnection policy.
// The reconnect bounds are a deliberate configuration surface rather than
// transport-library defaults.
type TransportConfig struct {
	URL              string          `mapstructure:"url"`
	HandshakeTimeout int             `mapstructure:"handshake_timeout"` // milliseconds
	Reconnect        ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	InitialDelay int `mapstructure:"initial_delay"` // milliseconds
	MaxDelay     int `mapstructure:"max_delay"`     // milliseconds
}

func (r ReconnectConfig) InitialDelayDuration() time.Duration {
	return time.Duration(r.InitialDelay) * time.Millisecond
}

func (r ReconnectConfig) MaxDelayDuration() time.Duration {
	return time.Duration(r.MaxDelay) * time.Millisecond
}

// APIConfig holds the REST backend used by persistence sync.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

func (a APIConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Millisecond
}

// NotificationsConfig holds store and presentation settings.
type NotificationsConfig struct {
	MaxStored           int `mapstructure:"max_stored"`
	DedupWindow         int `mapstructure:"dedup_window"`          // milliseconds
	DesktopDismissDelay int `mapstructure:"desktop_dismiss_delay"` // milliseconds
}

func (n NotificationsConfig) DedupWindowDuration() time.Duration {
	return time.Duration(n.DedupWindow) * time.Millisecond
}

func (n NotificationsConfig) DesktopDismissDuration() time.Duration {
	return time.Duration(n.DesktopDismissDelay) * time.Millisecond
}

// CacheConfig holds the optional local snapshot cache settings.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // minutes
}

func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Minute
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func validateConfig(cfg *Config) error {
	if cfg.Transport.URL == "" {
		return fmt.Errorf("transport.url is required")
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.Transport.Reconnect.MaxDelay < cfg.Transport.Reconnect.InitialDelay {
		return fmt.Errorf("transport.reconnect.max_delay must be >= initial_delay")
	}
	if cfg.Cache.Enabled && cfg.Cache.Address == "" {
		return fmt.Errorf("cache.address is required when cache is enabled")
	}
	return nil
}
