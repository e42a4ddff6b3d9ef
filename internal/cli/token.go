package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/auth"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenShowCmd, tokenRotateCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the gateway secret",
	Long:  "The gateway secret is the bearer token the sandbox presents on every API call.",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the gateway secret, creating it if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Secret.Value != "" {
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Secret.Value)
			return nil
		}
		secret, err := auth.LoadOrCreateSecret(cfg.Secret.File)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the gateway secret file with a new secret",
	Long: "Writes a fresh secret to the secret file. A running gateway keeps the old\n" +
		"secret until it is restarted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Secret.Value != "" {
			return fmt.Errorf("secret is set inline (GATEWAY_SECRET); rotate it at its source")
		}
		if err := os.Remove(cfg.Secret.File); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old secret: %w", err)
		}
		secret, err := auth.LoadOrCreateSecret(cfg.Secret.File)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		fmt.Fprintf(os.Stderr, "Secret rotated: %s\n", cfg.Secret.File)
		return nil
	},
}
