package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "sheetport/internal/jwt_token"
	"sheetport/internal/platform/config"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the sheetport API",
	Long:  `Mint a token for --actor with --role, signed with the configured key.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if _, err := cliActor(); err != nil {
			return err
		}
		ttl := cfg.Auth.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
		token, err := svc.GenerateAccessToken(actorID, actorRole, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to the configured TTL)")
}
