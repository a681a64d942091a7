// cmd/testmail.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/notify"
	"github.com/markb/reminderd/internal/reminder"
	"github.com/markb/reminderd/internal/settings"
)

var testmailCmd = &cobra.Command{
	Use:   "testmail",
	Short: "Send a test notification",
	Long:  `Sends a synthetic reminder through the configured delivery path to verify mail settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		deliverer := notify.NewDeliverer(
			database,
			settings.NewStore(database),
			mailconfig.NewStore(database),
			nil,
			nil,
		)

		now := time.Now()
		rem := &reminder.Reminder{
			ID:        "test-" + now.Format("20060102150405"),
			Title:     "Test notification",
			Note:      "Sent by 'reminderd testmail'.",
			StartDate: now,
		}

		receipt, err := deliverer.Deliver(cmd.Context(), rem)
		if err != nil {
			if errors.Is(err, notify.ErrNotConfigured) {
				return fmt.Errorf("delivery not configured: set a recipient (and an active mail configuration for SMTP mode) first")
			}
			return fmt.Errorf("delivery failed: %w", err)
		}

		fmt.Printf("Delivered %q to %s via %s mode\n", receipt.Subject, receipt.Recipient, receipt.Mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testmailCmd)
	testmailCmd.Flags().String("db", "reminders.db", "Path to database file")
}
