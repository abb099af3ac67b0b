package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenShowCmd())

	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		userID string
		email  string
		secret string
		ttl    time.Duration
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a development token with the server's shared secret",
		Long: `Sign a bearer token locally with the HS256 secret the server verifies
against (FAIRWAY_JWT_SECRET). Intended for local development; production
tokens come from the identity provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			authCfg := auth.DefaultConfig()
			if secret != "" {
				authCfg.Secret = secret
			}
			authCfg.TokenDuration = ttl

			token, err := auth.New(clock.New(), authCfg).IssueToken(auth.Principal{
				UserID: model.UserID(userID),
				Email:  email,
			})
			if err != nil {
				return err
			}

			if save {
				if err := cfg.SaveToken(token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				if cfg.Verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "Token saved to %s\n", cfg.TokenFile)
				}
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(map[string]string{"token": token})
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("FAIRWAY_JWT_SECRET"), "Signing secret (env: FAIRWAY_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultConfig().TokenDuration, "Token lifetime")
	cmd.Flags().BoolVar(&save, "save", true, "Save the token to the token file")

	return cmd
}

func newTokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the token the CLI will send",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client.Token() == "" {
				return fmt.Errorf("no token configured")
			}
			NewOutput(cmd.OutOrStdout(), cfg.Output).PrintMessage(client.Token())
			return nil
		},
	}
}
