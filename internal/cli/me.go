package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/fairway/internal/api/request"
	"github.com/mcoot/fairway/internal/api/response"
)

func newMeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show or register the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.User
			if err := client.Get("/api/v1/me", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.AddCommand(newMeRegisterCmd())
	cmd.AddCommand(newMeMatchesCmd())

	return cmd
}

func newMeRegisterCmd() *cobra.Command {
	var (
		req      request.RegisterRequest
		handicap float64
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create or update your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("handicap") {
				req.Handicap = &handicap
			}

			var result response.User
			if err := client.Put("/api/v1/me", req, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email (defaults to the token's email)")
	cmd.Flags().StringVar(&req.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last", "", "Last name")
	cmd.Flags().Float64Var(&handicap, "handicap", 0, "Handicap index")

	return cmd
}

func newMeMatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List your current matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Match
			if err := client.Get("/api/v1/me/matches", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}
