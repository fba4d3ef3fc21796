package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.PollLimit != 10 || cfg.Telegram.PollTimeout != 5*time.Second {
		t.Errorf("telegram defaults wrong: %+v", cfg.Telegram)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Sandbox.Image != "agent-sandbox:latest" || cfg.Sandbox.FallbackImage != "python:3.10-slim" {
		t.Errorf("sandbox defaults wrong: %+v", cfg.Sandbox)
	}
	if cfg.Vitals.UpdateInterval != 5*time.Second || cfg.Vitals.AlertInterval != 30*time.Second {
		t.Errorf("vitals defaults wrong: %+v", cfg.Vitals)
	}
	if cfg.IdleDelay != 2*time.Second || cfg.ErrorBackoff != 5*time.Second {
		t.Errorf("loop defaults wrong: idle=%v backoff=%v", cfg.IdleDelay, cfg.ErrorBackoff)
	}
	if cfg.DataDir != ".tmp" || cfg.DocsDir != "docs" {
		t.Errorf("dir defaults wrong: %q %q", cfg.DataDir, cfg.DocsDir)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemed.yaml")
	yaml := `
telegram:
  poll_limit: 50
vitals:
  max_heart_rate: 120
idle_delay: 1s
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.PollLimit != 50 {
		t.Errorf("poll_limit = %d", cfg.Telegram.PollLimit)
	}
	if cfg.Vitals.MaxHeartRate != 120 {
		t.Errorf("max_heart_rate = %v", cfg.Vitals.MaxHeartRate)
	}
	if cfg.IdleDelay != time.Second {
		t.Errorf("idle_delay = %v", cfg.IdleDelay)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q", cfg.Logging.Format)
	}
	// Untouched sections keep their defaults.
	if cfg.Vitals.MinSpO2 != 92 {
		t.Errorf("min_spo2 = %v, want default 92", cfg.Vitals.MinSpO2)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemed.yaml")
	if err := os.WriteFile(path, []byte("telegram: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) { c.Telegram.Token = "123:abc" }, true},
		{"missing token", func(*Config) {}, false},
		{"zero poll limit", func(c *Config) { c.Telegram.Token = "x"; c.Telegram.PollLimit = 0 }, false},
		{"zero sandbox timeout", func(c *Config) { c.Telegram.Token = "x"; c.Sandbox.Timeout = 0 }, false},
		{"zero vitals interval", func(c *Config) { c.Telegram.Token = "x"; c.Vitals.UpdateInterval = 0 }, false},
		{"empty data dir", func(c *Config) { c.Telegram.Token = "x"; c.DataDir = " " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate = nil, want error")
			}
		})
	}
}

func TestResolveSecrets_Environment(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("ESP32_CAM_IP", "192.168.1.50")

	cfg := DefaultConfig()
	cfg.ResolveSecrets(nil)

	if cfg.Telegram.Token != "123:token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminChatID != "42" {
		t.Errorf("admin chat = %q", cfg.Telegram.AdminChatID)
	}
	// With no explicit allowlist, access defaults to the admin alone.
	if cfg.Telegram.AllowedUsers != "42" {
		t.Errorf("allowed users = %q, want admin fallback", cfg.Telegram.AllowedUsers)
	}
	if cfg.LLM.APIKey != "gm-key" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Camera.IP != "192.168.1.50" {
		t.Errorf("camera ip = %q", cfg.Camera.IP)
	}
}

func TestResolveSecrets_ConfigWinsOverEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg := DefaultConfig()
	cfg.Telegram.Token = "file-token"
	cfg.ResolveSecrets(nil)

	if cfg.Telegram.Token != "file-token" {
		t.Errorf("token = %q, want the configured one kept", cfg.Telegram.Token)
	}
}
