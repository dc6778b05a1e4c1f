package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/giftwatch/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  token: "123456:ABCDEF"
  admin_id: 42
userbot:
  api_id: 1001
  api_hash: "deadbeef"
feed:
  url: "https://example.com/status"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.AdminID != 42 {
		t.Errorf("AdminID = %d, want 42", cfg.Telegram.AdminID)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Engine.CycleInterval != time.Second {
		t.Errorf("CycleInterval = %v, want 1s", cfg.Engine.CycleInterval)
	}
	if cfg.Engine.IdleInterval != 5*time.Second {
		t.Errorf("IdleInterval = %v, want 5s", cfg.Engine.IdleInterval)
	}
	if cfg.Engine.ErrorBackoff != 10*time.Second {
		t.Errorf("ErrorBackoff = %v, want 10s", cfg.Engine.ErrorBackoff)
	}
	if cfg.Promo.JoinCheckDelay != 15*time.Second {
		t.Errorf("JoinCheckDelay = %v, want 15s", cfg.Promo.JoinCheckDelay)
	}
	if cfg.Userbot.SessionFile != config.DefaultSessionFile {
		t.Errorf("SessionFile = %q, want default", cfg.Userbot.SessionFile)
	}
	if cfg.Messages.Welcome == "" {
		t.Error("default messages missing")
	}
	if task, ok := cfg.Scheduler.Tasks["subscription_expiry"]; !ok || !task.Enabled {
		t.Error("subscription_expiry task not enabled by default")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
log:
  level: debug
engine:
  cycle_interval: 2s
  error_backoff: 30s
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Engine.CycleInterval != 2*time.Second {
		t.Errorf("CycleInterval = %v, want 2s", cfg.Engine.CycleInterval)
	}
	if cfg.Engine.ErrorBackoff != 30*time.Second {
		t.Errorf("ErrorBackoff = %v, want 30s", cfg.Engine.ErrorBackoff)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing token",
			content: `
telegram:
  admin_id: 42
userbot:
  api_id: 1001
  api_hash: "deadbeef"
feed:
  url: "https://example.com/status"
`,
		},
		{
			name: "missing feed url",
			content: `
telegram:
  token: "123456:ABCDEF"
  admin_id: 42
userbot:
  api_id: 1001
  api_hash: "deadbeef"
`,
		},
		{
			name:    "invalid log level",
			content: minimalConfig + "\nlog:\n  level: loud\n",
		},
		{
			name:    "feed url not a url",
			content: minimalConfig + "\nfeed:\n  url: not-a-url\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := config.Load(path); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:ABCDEF")
	t.Setenv("BOT_TELEGRAM_ADMIN_ID", "42")
	t.Setenv("BOT_USERBOT_API_ID", "1001")
	t.Setenv("BOT_USERBOT_API_HASH", "deadbeef")
	t.Setenv("BOT_FEED_URL", "https://example.com/status")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.Token != "123456:ABCDEF" {
		t.Errorf("Token = %q, want env value", cfg.Telegram.Token)
	}
	if cfg.Database.Path != config.DefaultDBPath {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}
