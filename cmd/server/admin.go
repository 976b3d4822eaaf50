package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var regenerateSecret bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		return db.Close()
	},
}

var webhookSecretCmd = &cobra.Command{
	Use:   "webhook-secret",
	Short: "Print the webhook token and URLs",
	Long: `Print the token Moodle must send with every webhook call, creating it on
first use. With --regenerate a new token replaces the current one and the
Moodle side must be updated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		secret, err := a.settings.WebhookSecret(ctx)
		if regenerateSecret {
			secret, err = a.settings.RegenerateWebhookSecret(ctx)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Token: %s\n", secret)
		base := strings.TrimRight(cfg.Server.BaseURL, "/")
		for _, hook := range []string{"categories", "courses", "prices"} {
			fmt.Fprintf(out, "POST %s/webhooks/%s\n", base, hook)
		}
		return nil
	},
}

func init() {
	webhookSecretCmd.Flags().BoolVar(&regenerateSecret, "regenerate", false, "Replace the current token")
}
