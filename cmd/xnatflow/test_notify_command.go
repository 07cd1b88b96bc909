package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"xnatflow/internal/logging"
	"xnatflow/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var recipients []string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			to := recipients
			if len(to) == 0 {
				to = cfg.Mail.AdminEmails
			}
			if len(to) == 0 {
				return errors.New("no recipients: pass --to or set mail.admin_emails")
			}
			if !cfg.Notifications.Email && cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent (email disabled and no ntfy topic)")
				return nil
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg, logger)
			if err := svc.TestNotification(cmd.Context(), to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %d recipient(s)\n", len(to))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&recipients, "to", nil, "Recipient address (repeatable; defaults to mail.admin_emails)")
	return cmd
}
