package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:     "reminderd",
	Short:   "Scheduled reminder notification service",
	Long:    `A single-binary service that stores reminders in SQLite and emails them when due, speaking SMTP directly.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("reminderd version {{.Version}}\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// jwtSecretFromEnv returns the configured JWT secret, warning when the
// insecure default is in use.
func jwtSecretFromEnv() string {
	secret := os.Getenv("REMINDERD_JWT_SECRET")
	if secret == "" {
		secret = "super-secret-jwt-key-please-change-in-production"
		fmt.Fprintln(os.Stderr, "Warning: Using default JWT secret. Set REMINDERD_JWT_SECRET in production.")
	}
	return secret
}
