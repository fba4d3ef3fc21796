// Package commands implements the telemed CLI commands using cobra.
package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tecven/telemed/pkg/telemed/config"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "telemed",
		Short: "Telemed - Telemedicine assistant bot",
		Long: `Telemed is a Telegram-based telemedicine assistant: patient telemetry
monitoring with alerts, medical report generation, document analysis,
reminders and appointments, and a sandboxed code runner.

Examples:
  telemed serve
  telemed serve --config ./telemed.yaml
  telemed chat-id`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatIDCmd(),
		newSecretCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// loadConfig resolves the config file (flag, then discovery, then pure
// defaults), loads .env first so environment resolution sees it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	return config.Load(path)
}

// newLogger builds the slog logger from config plus the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
