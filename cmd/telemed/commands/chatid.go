package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tecven/telemed/pkg/telemed/telegram"
)

// newChatIDCmd creates the `telemed chat-id` bootstrap helper: it polls once
// and prints the chat IDs of whoever has messaged the bot, so the admin can
// fill TELEGRAM_CHAT_ID and the allowlist before first serve.
func newChatIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat-id",
		Short: "Print the chat IDs of recent senders",
		Long: `Poll Telegram once and print the chat ID of every pending message.
Send your bot any message first, then run this to discover your own ID.`,
		RunE: runChatID,
	}
}

func runChatID(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	cfg.ResolveSecrets(logger)
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (set TELEGRAM_BOT_TOKEN)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// The allowlist is wide open and the cursor is in-memory: this command
	// must see every sender and must not consume the serve loop's offset.
	tg := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		AllowedUsers: "*",
		PollLimit:    cfg.Telegram.PollLimit,
		PollTimeout:  cfg.Telegram.PollTimeout,
	}, memCursor{}, slog.New(slog.DiscardHandler))

	events, err := tg.Poll(ctx)
	if err != nil {
		return fmt.Errorf("polling Telegram: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No pending messages. Send your bot a message and try again.")
		return nil
	}

	seen := map[string]bool{}
	for _, ev := range events {
		if seen[ev.ChatID] {
			continue
		}
		seen[ev.ChatID] = true
		fmt.Printf("chat_id: %s  sender: %s\n", ev.ChatID, ev.Sender)
	}
	return nil
}

// memCursor discards the update offset so the real cursor stays untouched.
type memCursor struct{}

func (memCursor) Load() (int64, error) { return 0, nil }
func (memCursor) Save(int64) error     { return nil }
