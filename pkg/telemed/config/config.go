// Package config defines all configuration for the telemed daemon.
//
// Configuration is layered: YAML file → environment (.env is loaded by the
// CLI before this package runs) → OS keyring for secrets. Every section has
// defaults so an empty file yields a runnable (if capability-degraded) bot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full daemon configuration.
type Config struct {
	// Telegram configures the transport client.
	Telegram TelegramConfig `yaml:"telegram"`

	// LLM configures the Gemini-backed language model tools.
	LLM LLMConfig `yaml:"llm"`

	// Sandbox configures the Docker code sandbox.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Vitals configures the patient telemetry simulator.
	Vitals VitalsConfig `yaml:"vitals"`

	// Monitor configures the proactive server health check.
	Monitor MonitorConfig `yaml:"monitor"`

	// Camera configures the ward camera snapshot tool.
	Camera CameraConfig `yaml:"camera"`

	// DataDir is where all state files live (users, reminders, vitals, ...).
	DataDir string `yaml:"data_dir"`

	// DocsDir holds generated reports and the patient manual. Mounted
	// read/write into the sandbox at /mnt/docs.
	DocsDir string `yaml:"docs_dir"`

	// IdleDelay is the pause between poll-loop iterations.
	IdleDelay time.Duration `yaml:"idle_delay"`

	// ErrorBackoff is the extra pause after a transport error.
	ErrorBackoff time.Duration `yaml:"error_backoff"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// TelegramConfig holds transport settings.
type TelegramConfig struct {
	// Token is the Bot API token. Resolved from TELEGRAM_BOT_TOKEN or the
	// OS keyring when empty (see ResolveSecrets).
	Token string `yaml:"token"`

	// AdminChatID receives server health alerts. Resolved from
	// TELEGRAM_CHAT_ID when empty.
	AdminChatID string `yaml:"admin_chat_id"`

	// AllowedUsers is a comma-separated chat-ID allowlist. "*" allows
	// everyone. Defaults to the admin chat ID.
	AllowedUsers string `yaml:"allowed_users"`

	// PollLimit is the max updates fetched per getUpdates call.
	PollLimit int `yaml:"poll_limit"`

	// PollTimeout is the long-poll timeout passed to getUpdates.
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// LLMConfig holds Gemini settings.
type LLMConfig struct {
	// APIKey is resolved from GEMINI_API_KEY or the keyring when empty.
	APIKey string `yaml:"api_key"`

	// Model is the chat/vision model (default "gemini-2.0-flash").
	Model string `yaml:"model"`

	// SpeechModel is the TTS-capable model used for voice replies.
	SpeechModel string `yaml:"speech_model"`

	// Timeout bounds a single model round-trip.
	Timeout time.Duration `yaml:"timeout"`
}

// SandboxConfig holds Docker sandbox settings.
type SandboxConfig struct {
	// Image is the preferred, pre-built sandbox image.
	Image string `yaml:"image"`

	// FallbackImage is used (with a warning) when Image is absent locally.
	FallbackImage string `yaml:"fallback_image"`

	// Timeout is the wall-clock budget for one execution. Generous by
	// default so user code may pip-install once.
	Timeout time.Duration `yaml:"timeout"`

	// MemoryMB limits container memory.
	MemoryMB int `yaml:"memory_mb"`

	// CPUShares sets the relative CPU weight.
	CPUShares int `yaml:"cpu_shares"`

	// AllowNetwork keeps networking on inside the container so that user
	// code can install dependencies.
	AllowNetwork bool `yaml:"allow_network"`
}

// VitalsConfig holds simulator cadences and alert thresholds.
type VitalsConfig struct {
	// UpdateInterval is the minimum time between state advances per patient.
	UpdateInterval time.Duration `yaml:"update_interval"`

	// AlertInterval is the minimum time between alert sends per patient.
	AlertInterval time.Duration `yaml:"alert_interval"`

	// MaxHeartRate triggers a tachycardia alert when exceeded.
	MaxHeartRate float64 `yaml:"max_heart_rate"`

	// MaxTemperature triggers a high-fever alert when exceeded.
	MaxTemperature float64 `yaml:"max_temperature"`

	// MinSpO2 triggers a hypoxia alert when undercut.
	MinSpO2 float64 `yaml:"min_spo2"`
}

// MonitorConfig holds the server health-check sweep settings.
type MonitorConfig struct {
	// Interval gates the health-check sweep (0 disables it).
	Interval time.Duration `yaml:"interval"`

	// CPUThreshold and MemThreshold are alert percentages.
	CPUThreshold float64 `yaml:"cpu_threshold"`
	MemThreshold float64 `yaml:"mem_threshold"`

	// DiskThreshold is the alert percentage for the root filesystem.
	DiskThreshold float64 `yaml:"disk_threshold"`
}

// CameraConfig holds the ESP32-CAM snapshot settings.
type CameraConfig struct {
	// IP is the camera address. Resolved from ESP32_CAM_IP when empty.
	// Empty after resolution disables the /foto command.
	IP string `yaml:"ip"`

	// Timeout bounds one snapshot request.
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollLimit:   10,
			PollTimeout: 5 * time.Second,
		},
		LLM: LLMConfig{
			Model:       "gemini-2.0-flash",
			SpeechModel: "gemini-2.5-flash-preview-tts",
			Timeout:     60 * time.Second,
		},
		Sandbox: SandboxConfig{
			Image:         "agent-sandbox:latest",
			FallbackImage: "python:3.10-slim",
			Timeout:       120 * time.Second,
			MemoryMB:      512,
			CPUShares:     512,
			AllowNetwork:  true,
		},
		Vitals: VitalsConfig{
			UpdateInterval: 5 * time.Second,
			AlertInterval:  30 * time.Second,
			MaxHeartRate:   110,
			MaxTemperature: 38.5,
			MinSpO2:        92,
		},
		Monitor: MonitorConfig{
			Interval:      5 * time.Minute,
			CPUThreshold:  85,
			MemThreshold:  85,
			DiskThreshold: 90,
		},
		Camera: CameraConfig{
			Timeout: 15 * time.Second,
		},
		DataDir:      ".tmp",
		DocsDir:      "docs",
		IdleDelay:    2 * time.Second,
		ErrorBackoff: 5 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the defaults plus environment resolution are enough to run.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfigFile looks for a config file in the conventional locations.
func FindConfigFile() string {
	candidates := []string{
		"telemed.yaml",
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "telemed", "config.yaml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (set TELEGRAM_BOT_TOKEN or telegram.token)")
	}
	if c.Telegram.PollLimit <= 0 {
		return fmt.Errorf("telegram poll_limit must be positive")
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox timeout must be positive")
	}
	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox memory_mb must be positive")
	}
	if c.Vitals.UpdateInterval <= 0 || c.Vitals.AlertInterval <= 0 {
		return fmt.Errorf("vitals intervals must be positive")
	}
	if c.IdleDelay <= 0 {
		return fmt.Errorf("idle_delay must be positive")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}
