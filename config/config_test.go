package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigTOML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/negsync.toml", []byte(`
relays = "wss://relay.one,wss://relay.two"
database = "/var/lib/negsync/events.db"

[sync]
filters = '{"kinds":[1]}'
timeout = "45s"
frame-size-limit = 8192
check-capabilities = false

[logging]
log-encoder = "json"
sync = "debug"

[metrics.push]
url = "http://pushgateway:9091"
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(fs, "/etc/negsync.toml", &cfg))
	require.Equal(t, []string{"wss://relay.one", "wss://relay.two"}, cfg.Relays)
	require.Equal(t, "/var/lib/negsync/events.db", cfg.Database)
	require.Equal(t, `{"kinds":[1]}`, cfg.Sync.Filters)
	require.Equal(t, 45*time.Second, cfg.Sync.Timeout)
	require.Equal(t, 8192, cfg.Sync.FrameSizeLimit)
	require.False(t, cfg.Sync.CheckCapabilities)
	require.Equal(t, DefaultCapabilityTTL, cfg.Sync.CapabilityTTL, "defaults are kept")
	require.Equal(t, JSONLogEncoder, cfg.Logging.Encoder)
	require.Equal(t, "debug", cfg.Logging.SyncLoggerLevel)
	require.Equal(t, "info", cfg.Logging.AppLoggerLevel)
	require.Equal(t, "http://pushgateway:9091", cfg.Metrics.Push.URL)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cfg.json", []byte(`{
		"relays": ["wss://relay.one"],
		"serve": {"listen": ":8080", "max-sessions": 3}
	}`), 0o600))
	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(fs, "cfg.json", &cfg))
	require.Equal(t, []string{"wss://relay.one"}, cfg.Relays)
	require.Equal(t, ":8080", cfg.Serve.Listen)
	require.Equal(t, 3, cfg.Serve.MaxSessions)
	require.Equal(t, DefaultFrameSizeLimit, cfg.Serve.FrameSizeLimit)
}

func TestLoadConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	require.ErrorContains(t, LoadConfig(fs, "missing.toml", &cfg), "failed to read config file")

	require.NoError(t, afero.WriteFile(fs, "bad.toml", []byte(`
[sync]
no-such-option = 1
`), 0o600))
	require.Error(t, LoadConfig(fs, "bad.toml", &cfg))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Relays = []string{"https://relay.one"}
	cfg.Sync.Timeout = 0
	err := cfg.Validate()
	require.ErrorContains(t, err, "not a websocket URL")
	require.ErrorContains(t, err, "non-positive sync timeout")
}
