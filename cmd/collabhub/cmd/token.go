package cmd

import (
	"errors"
	"fmt"

	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/security"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Issue a development connect token",
	Long: `Issue a signed connect token for userId using JWT_SECRET and JWT_TTL.

Example:
  JWT_SECRET=dev collabhub token alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		token, err := security.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
