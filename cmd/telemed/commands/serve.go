package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tecven/telemed/pkg/telemed/bot"
	"github.com/tecven/telemed/pkg/telemed/dispatch"
	"github.com/tecven/telemed/pkg/telemed/sandbox"
	"github.com/tecven/telemed/pkg/telemed/scheduler"
	"github.com/tecven/telemed/pkg/telemed/store"
	"github.com/tecven/telemed/pkg/telemed/telegram"
	"github.com/tecven/telemed/pkg/telemed/tools"
	"github.com/tecven/telemed/pkg/telemed/vitals"
)

// newServeCmd creates the `telemed serve` command that runs the bot daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the telemedicine bot daemon",
		Long: `Start the bot: poll Telegram for messages, dispatch commands, run the
patient telemetry simulation and deliver reminders, appointment
notifications and medical alerts.

Examples:
  telemed serve
  telemed serve --config ./telemed.yaml --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	cfg.ResolveSecrets(logger)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening state stores: %w", err)
	}

	tg := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		AllowedUsers: cfg.Telegram.AllowedUsers,
		PollLimit:    cfg.Telegram.PollLimit,
		PollTimeout:  cfg.Telegram.PollTimeout,
	}, stores.Cursor, logger)

	botName, err := tg.Me(ctx)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	logger.Info("connected to Telegram", "bot", botName)

	// AI tools. A missing API key degrades the bot instead of failing it.
	var llm *tools.Gemini
	var memory *tools.MemoryStore
	if cfg.LLM.APIKey != "" {
		memory, err = tools.OpenMemory(filepath.Join(cfg.DataDir, "memory.db"))
		if err != nil {
			logger.Warn("long-term memory unavailable", "error", err)
		}
		llm, err = tools.NewGemini(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.SpeechModel, cfg.LLM.Timeout, memory, logger)
		if err != nil {
			logger.Warn("Gemini client unavailable, AI features disabled", "error", err)
		}
	}
	if memory != nil {
		defer memory.Close()
	}

	var camera *tools.Camera
	if cfg.Camera.IP != "" {
		camera = tools.NewCamera(cfg.Camera.IP, cfg.Camera.Timeout)
		logger.Info("ward camera configured", "ip", cfg.Camera.IP)
	}

	// Sandbox availability is probed lazily on first run, so a stopped
	// Docker daemon does not prevent startup.
	runner, err := sandbox.New(sandbox.Config{
		Image:         cfg.Sandbox.Image,
		FallbackImage: cfg.Sandbox.FallbackImage,
		Timeout:       cfg.Sandbox.Timeout,
		MemoryMB:      cfg.Sandbox.MemoryMB,
		CPUShares:     cfg.Sandbox.CPUShares,
		AllowNetwork:  cfg.Sandbox.AllowNetwork,
		DocsDir:       cfg.DocsDir,
		ScratchDir:    cfg.DataDir,
	}, logger, nil)
	if err != nil {
		return fmt.Errorf("configuring sandbox: %w", err)
	}

	thresholds := vitals.Thresholds{
		MaxHeartRate:   cfg.Vitals.MaxHeartRate,
		MaxTemperature: cfg.Vitals.MaxTemperature,
		MinSpO2:        cfg.Vitals.MinSpO2,
	}
	metricLimits := tools.MetricThresholds{
		CPU:  cfg.Monitor.CPUThreshold,
		Mem:  cfg.Monitor.MemThreshold,
		Disk: cfg.Monitor.DiskThreshold,
	}

	disp := dispatch.New(dispatch.Config{
		DataDir: cfg.DataDir,
		DocsDir: cfg.DocsDir,
		Metrics: metricLimits,
	}, tg, stores, llm, memory, tools.NewSearcher(), camera, runner, logger)

	sched := scheduler.New(scheduler.Config{
		VitalsUpdateInterval: cfg.Vitals.UpdateInterval,
		VitalsAlertInterval:  cfg.Vitals.AlertInterval,
		Thresholds:           thresholds,
		HealthInterval:       cfg.Monitor.Interval,
		Metrics:              metricLimits,
		AdminChatID:          cfg.Telegram.AdminChatID,
	}, stores, vitals.NewSimulator(nil), tg, nil, logger)

	b := bot.New(bot.Config{
		IdleDelay:    cfg.IdleDelay,
		ErrorBackoff: cfg.ErrorBackoff,
	}, tg, disp, sched, logger)

	logger.Info("telemed running, press Ctrl+C to stop",
		"data_dir", cfg.DataDir,
		"poll_timeout", cfg.Telegram.PollTimeout)

	start := time.Now()
	err = b.Run(ctx)
	logger.Info("telemed stopped", "uptime", time.Since(start).Round(time.Second))
	return err
}
