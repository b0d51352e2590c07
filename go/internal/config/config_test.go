package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TMARS_URL", "TMARS_SERVER_ID", "TMARS_POLLING_INTERVAL", "NATS_URL",
		"HTTP_ADDR", "STORE_DRIVER", "STORE_PATH", "LOG_LEVEL", "DB_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_FileWithDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
tmars:
  url: https://tm.example.com
  server_id: abc123
  polling_interval: 60
alerts:
  max_delay: 600
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tm.example.com", cfg.TMars.URL)
	assert.Equal(t, time.Minute, cfg.TMars.Interval())
	assert.Equal(t, 30*time.Second, cfg.TMars.Timeout())
	assert.Equal(t, 2*time.Minute, cfg.TMars.Cooldown())
	assert.Equal(t, time.Minute, cfg.Alerts.MinDelayDuration())
	assert.Equal(t, 10*time.Hour, cfg.Alerts.MaxDelayDuration())
	assert.Equal(t, 3, cfg.Alerts.PruneAfterMisses)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "https://tm.example.com", cfg.Notify.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout())
	assert.Equal(t, "miou.notifications", cfg.NATS.NotifySubject)
	assert.Equal(t, ":8082", cfg.HTTP.Addr)
	assert.Equal(t, zerolog.DebugLevel, cfg.Log.ZerologLevel())
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "miou", cfg.Database.Database)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TMARS_URL", "https://env.example.com")
	t.Setenv("TMARS_SERVER_ID", "env-server")
	t.Setenv("TMARS_POLLING_INTERVAL", "300")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("DB_NAME", "alerts")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.TMars.URL)
	assert.Equal(t, "env-server", cfg.TMars.ServerID)
	assert.Equal(t, 5*time.Minute, cfg.TMars.Interval())
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "alerts", cfg.Database.Database)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing url",
			body: "tmars:\n  server_id: x\n",
			want: "tmars.url is required",
		},
		{
			name: "polling too fast",
			body: "tmars:\n  url: https://tm\n  server_id: x\n  polling_interval: 5\n",
			want: "tmars.polling_interval must be at least 10",
		},
		{
			name: "timeout longer than interval",
			body: "tmars:\n  url: https://tm\n  server_id: x\n  polling_interval: 20\n  request_timeout: 30\n",
			want: "tmars.request_timeout must not exceed pollinginterval",
		},
		{
			name: "max delay above a week",
			body: "tmars:\n  url: https://tm\n  server_id: x\nalerts:\n  max_delay: 10081\n",
			want: "alerts.max_delay must be at most 10080",
		},
		{
			name: "max below min",
			body: "tmars:\n  url: https://tm\n  server_id: x\nalerts:\n  min_delay: 30\n  max_delay: 10\n",
			want: "alerts.max_delay must not be lower than mindelay",
		},
		{
			name: "unknown store driver",
			body: "tmars:\n  url: https://tm\n  server_id: x\nstore:\n  driver: redis\n",
			want: "store.driver must be one of [file postgres]",
		},
		{
			name: "unknown log level",
			body: "tmars:\n  url: https://tm\n  server_id: x\nlog:\n  level: loud\n",
			want: "log.level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingOrBrokenFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "tmars: [unclosed"))
	assert.Error(t, err)
}
