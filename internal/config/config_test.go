package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("X_USERNAME", "@someone")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/hook")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "someone", cfg.Account.Username)
	assert.Equal(t, "https://discord.example/hook", cfg.Notify.WebhookURL)
	assert.Equal(t, "cookies.json", cfg.Auth.CookiesFile)
	assert.Equal(t, 10, cfg.Collector.StallLimit)
	assert.Equal(t, 500, cfg.Collector.ScrollLimit)
	assert.Equal(t, 15, cfg.Collector.CheckpointInterval)
	assert.Equal(t, 1500*time.Millisecond, Duration(cfg.Collector.ScrollSleep))
	assert.Equal(t, "https://x.com/someone/followers", cfg.FollowersURL())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("X_USERNAME", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
account:
  username: fromfile
collector:
  stall_limit: 3
  scroll_sleep: 10ms
storage:
  history_dir: /tmp/history
browser:
  engine: rod
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "fromfile", cfg.Account.Username)
	assert.Equal(t, 3, cfg.Collector.StallLimit)
	assert.Equal(t, 500, cfg.Collector.ScrollLimit, "unset keys keep defaults")
	assert.Equal(t, "/tmp/history", cfg.Storage.HistoryDir)
	assert.Equal(t, "rod", cfg.Browser.Engine)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		anyErr  bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing username", mutate: func(c *Config) { c.Account.Username = " " }, wantErr: ErrMissingUsername},
		{name: "unknown engine", mutate: func(c *Config) { c.Browser.Engine = "lynx" }, anyErr: true},
		{name: "zero stall limit", mutate: func(c *Config) { c.Collector.StallLimit = 0 }, anyErr: true},
		{name: "bad duration", mutate: func(c *Config) { c.Collector.WaitTimeout = "soon" }, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Account.Username = "someone"
			tt.mutate(cfg)

			err := cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
