package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tecven/telemed/pkg/telemed/config"
)

// newSecretCmd creates the `telemed secret` command for storing credentials
// in the OS keyring instead of .env files.
func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials in the OS keyring",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-token [token]",
			Short: "Store the Telegram bot token",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := config.StoreBotToken(args[0]); err != nil {
					return fmt.Errorf("storing bot token: %w", err)
				}
				fmt.Println("Bot token stored in OS keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-api-key [key]",
			Short: "Store the Gemini API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := config.StoreAPIKey(args[0]); err != nil {
					return fmt.Errorf("storing API key: %w", err)
				}
				fmt.Println("Gemini API key stored in OS keyring.")
				return nil
			},
		},
	)

	return cmd
}
