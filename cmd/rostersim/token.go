package main

import (
	"fmt"

	"rosterd/internal/app"
	"rosterd/internal/config"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenAction  string
	tokenSecret  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for the roster_refresh and roster_reload RPCs",
	Args:  cobra.NoArgs,
	RunE:  mintToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "token subject")
	tokenCmd.Flags().StringVar(&tokenAction, "action", app.AdminActionAny, "refresh, reload or *")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "signing secret (defaults to admin.token_secret)")
}

func mintToken(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	secret := cfg.Admin.TokenSecret
	if tokenSecret != "" {
		secret = tokenSecret
	}

	svc := app.NewAdminTokenService(secret, cfg.Admin.TokenIssuer, cfg.AdminTokenTTL())
	token, err := svc.Issue(tokenSubject, tokenAction)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
