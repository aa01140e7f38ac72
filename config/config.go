// Package config contains the negsync configuration and its loading from files.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/nostrsync/negsync/metrics"
)

const (
	// DefaultFrameSizeLimit is the default limit on the negentropy message size, in bytes.
	DefaultFrameSizeLimit = 50000
	// DefaultSessionTimeout is the default limit on the duration of a sync session.
	DefaultSessionTimeout = 30 * time.Second
	// DefaultCapabilityTTL is the default time relay capability check results are cached for.
	DefaultCapabilityTTL = time.Hour
)

// Config is the negsync configuration.
type Config struct {
	// Relays lists the websocket URLs of the relays to sync with.
	Relays []string `mapstructure:"relays"`
	// Database is the path to the SQLite database holding the local events.
	Database string `mapstructure:"database"`

	Sync    SyncConfig    `mapstructure:"sync"`
	Serve   ServeConfig   `mapstructure:"serve"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggerConfig  `mapstructure:"logging"`
}

// SyncConfig configures the client side of the reconciliation.
type SyncConfig struct {
	// Filters is the JSON filter object sent to the relays with NEG-OPEN.
	Filters             string        `mapstructure:"filters"`
	FrameSizeLimit      int           `mapstructure:"frame-size-limit"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxConcurrentRelays int           `mapstructure:"max-concurrent-relays"`
	// CheckCapabilities enables skipping the relays that don't advertise NIP-77 support.
	CheckCapabilities bool          `mapstructure:"check-capabilities"`
	CapabilityTTL     time.Duration `mapstructure:"capability-ttl"`
	// CapabilityRetries is the number of retries for the relay information document requests.
	CapabilityRetries int `mapstructure:"capability-retries"`
}

// ServeConfig configures the relay side of the reconciliation.
type ServeConfig struct {
	Listen         string `mapstructure:"listen"`
	MaxSessions    int    `mapstructure:"max-sessions"`
	FrameSizeLimit int    `mapstructure:"frame-size-limit"`
}

// MetricsConfig configures the prometheus metrics.
type MetricsConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Listen  string             `mapstructure:"listen"`
	Push    metrics.PushConfig `mapstructure:"push"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Database: "negsync.db",
		Sync: SyncConfig{
			Filters:             "{}",
			FrameSizeLimit:      DefaultFrameSizeLimit,
			Timeout:             DefaultSessionTimeout,
			MaxConcurrentRelays: 8,
			CheckCapabilities:   true,
			CapabilityTTL:       DefaultCapabilityTTL,
			CapabilityRetries:   2,
		},
		Serve: ServeConfig{
			Listen:         "127.0.0.1:7777",
			MaxSessions:    100,
			FrameSizeLimit: DefaultFrameSizeLimit,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9090",
		},
		Logging: DefaultLoggingConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	for _, limit := range []int{c.Sync.FrameSizeLimit, c.Serve.FrameSizeLimit} {
		if limit < 0 {
			errs = append(errs, fmt.Errorf("negative frame size limit %d", limit))
		}
	}
	if c.Sync.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("non-positive sync timeout %v", c.Sync.Timeout))
	}
	if c.Sync.MaxConcurrentRelays <= 0 {
		errs = append(errs, fmt.Errorf("bad max-concurrent-relays %d", c.Sync.MaxConcurrentRelays))
	}
	for _, r := range c.Relays {
		if !strings.HasPrefix(r, "ws://") && !strings.HasPrefix(r, "wss://") {
			errs = append(errs, fmt.Errorf("relay URL %q is not a websocket URL", r))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig reads the configuration file at path from fs and applies it on top of cfg.
// The format is detected by the file extension (toml, yaml, json).
func LoadConfig(fs afero.Fs, path string, cfg *Config) error {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook), withErrorUnused()); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func withErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
