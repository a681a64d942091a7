// cmd/init.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/settings"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new reminderd database",
	Long:  `Creates a new SQLite database with the reminder schema tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		recipient, _ := cmd.Flags().GetString("recipient")
		mode, _ := cmd.Flags().GetString("mail-mode")

		// Check if file already exists
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("database already exists at %s", dbPath)
		}

		if mode != "" && !mail.ValidMode(mode) {
			return fmt.Errorf("invalid mail mode %q: must be log, catch, or smtp", mode)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer database.Close()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		store := settings.NewStore(database)
		if recipient != "" {
			if err := store.Set(settings.KeyNotifyRecipient, recipient); err != nil {
				return fmt.Errorf("failed to set recipient: %w", err)
			}
		}
		if mode != "" {
			if err := store.Set(settings.KeyMailMode, mode); err != nil {
				return fmt.Errorf("failed to set mail mode: %w", err)
			}
		}

		fmt.Printf("Initialized database at %s\n", dbPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("db", "reminders.db", "Path to database file")
	initCmd.Flags().String("recipient", "", "Notification recipient email address")
	initCmd.Flags().String("mail-mode", "", "Email mode: log, catch, or smtp (default: log)")
}
