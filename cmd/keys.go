// cmd/keys.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markb/reminderd/internal/auth"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long:  `Commands for managing API keys for reminderd.`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate portal and service API keys",
	Long:  `Generates both portal and service API keys using the configured JWT secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := auth.NewService(jwtSecretFromEnv())

		portalKey, err := svc.GenerateAPIKey(auth.APIKeyPortal)
		if err != nil {
			return fmt.Errorf("failed to generate portal key: %w", err)
		}
		serviceKey, err := svc.GenerateAPIKey(auth.APIKeyService)
		if err != nil {
			return fmt.Errorf("failed to generate service key: %w", err)
		}

		fmt.Printf("REMINDERD_PORTAL_KEY=%s\n", portalKey)
		fmt.Printf("REMINDERD_SERVICE_KEY=%s\n", serviceKey)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
}
