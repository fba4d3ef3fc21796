package config

import (
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "telemed"

	keyringBotToken = "telegram_bot_token"
	keyringAPIKey   = "gemini_api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// StoreBotToken saves the Telegram bot token to the OS keyring.
func StoreBotToken(value string) error { return StoreKeyring(keyringBotToken, value) }

// StoreAPIKey saves the Gemini API key to the OS keyring.
func StoreAPIKey(value string) error { return StoreKeyring(keyringAPIKey, value) }

// ResolveSecrets fills in secret and identity fields that were not set in the
// YAML file. Priority per field: environment variable → OS keyring → config
// value already present. Missing Gemini key or camera IP only degrades the
// corresponding capabilities; a missing bot token fails Validate later.
func (c *Config) ResolveSecrets(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if c.Telegram.Token == "" {
		if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
			c.Telegram.Token = v
			logger.Debug("bot token loaded from environment")
		} else if v := GetKeyring(keyringBotToken); v != "" {
			c.Telegram.Token = v
			logger.Debug("bot token loaded from OS keyring")
		}
	}

	if c.Telegram.AdminChatID == "" {
		c.Telegram.AdminChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if c.Telegram.AllowedUsers == "" {
		if v := os.Getenv("TELEGRAM_ALLOWED_USERS"); v != "" {
			c.Telegram.AllowedUsers = v
		} else {
			c.Telegram.AllowedUsers = c.Telegram.AdminChatID
		}
	}

	if c.LLM.APIKey == "" {
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.LLM.APIKey = v
			logger.Debug("Gemini API key loaded from environment")
		} else if v := GetKeyring(keyringAPIKey); v != "" {
			c.LLM.APIKey = v
			logger.Debug("Gemini API key loaded from OS keyring")
		} else {
			logger.Warn("no Gemini API key found, AI features disabled")
		}
	}

	if c.Camera.IP == "" {
		c.Camera.IP = os.Getenv("ESP32_CAM_IP")
	}
}
