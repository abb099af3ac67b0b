package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/fairway/internal/api/response"
)

func newPointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points <user>",
		Short: "Show a user's points balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Points
			if err := client.Get(userPointsPath(args[0], ""), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "history <user>",
		Short: "List a user's points grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.PointsHistory
			if err := client.Get(userPointsPath(args[0], "/history"), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	})

	return cmd
}

func userPointsPath(user, suffix string) string {
	return "/api/v1/users/" + url.PathEscape(user) + "/points" + suffix
}
