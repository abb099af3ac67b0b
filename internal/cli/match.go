package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/fairway/internal/api/request"
	"github.com/mcoot/fairway/internal/api/response"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match lifecycle commands",
	}

	cmd.AddCommand(newMatchCreateCmd())
	cmd.AddCommand(newMatchGetCmd())
	cmd.AddCommand(newMatchEditCmd())
	cmd.AddCommand(newMatchTransitionCmd("start", "Start a scheduled match (host only)"))
	cmd.AddCommand(newMatchTransitionCmd("cancel", "Cancel a match (host only)"))
	cmd.AddCommand(newMatchEndCmd())
	cmd.AddCommand(newMatchJoinCmd())
	cmd.AddCommand(newMatchInviteCmd())
	cmd.AddCommand(newMatchLeaderboardCmd())
	cmd.AddCommand(newMatchResultCmd())
	cmd.AddCommand(newMatchHistoryCmd())

	return cmd
}

func matchPath(id string, suffix string) string {
	return "/api/v1/matches/" + url.PathEscape(id) + suffix
}

// parseScheduled accepts RFC 3339 or a local "2006-01-02 15:04" tee time
func parseScheduled(s string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --scheduled %q: use RFC 3339 or \"YYYY-MM-DD HH:MM\"", s)
	}
	return &t, nil
}

func newMatchCreateCmd() *cobra.Command {
	var (
		req       request.CreateMatchRequest
		scheduled string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new match you host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scheduled != "" {
				t, err := parseScheduled(scheduled)
				if err != nil {
					return err
				}
				req.ScheduledFor = t
			}

			var result response.Match
			if err := client.Post("/api/v1/matches", req, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Match title")
	cmd.Flags().IntVar(&req.NumberOfHoles, "holes", 18, "Number of holes (9 or 18)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringVar(&req.LocationName, "location-name", "", "Course name")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "Tee time")

	return cmd
}

func newMatchGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <match>",
		Short: "Show a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			if err := client.Get(matchPath(args[0], ""), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchEditCmd() *cobra.Command {
	var title, description, locationName, scheduled string

	cmd := &cobra.Command{
		Use:   "edit <match>",
		Short: "Edit match details (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req request.EditMatchRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("location-name") {
				req.LocationName = &locationName
			}
			if flags.Changed("scheduled") {
				t, err := parseScheduled(scheduled)
				if err != nil {
					return err
				}
				req.ScheduledFor = t
			}

			var result response.Match
			if err := client.Patch(matchPath(args[0], ""), req, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Match title")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&locationName, "location-name", "", "Course name")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "Tee time")

	return cmd
}

func newMatchTransitionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <match>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			if err := client.Post(matchPath(args[0], "/"+action), nil, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <match>",
		Short: "End a match and record its result (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.EndMatchResponse
			if err := client.Post(matchPath(args[0], "/end"), nil, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <match|invite-link>",
		Short: "Join a match by ID or invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			if err := client.Post("/api/v1/matches/join", request.JoinRequest{Invite: args[0]}, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchInviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <match>",
		Short: "Print a shareable invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Invite
			if err := client.Get(matchPath(args[0], "/invite"), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "leaderboard <match>",
		Aliases: []string{"lb"},
		Short:   "Show standings and missing scores",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Leaderboard
			if err := client.Get(matchPath(args[0], "/leaderboard"), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <match>",
		Short: "Show the recorded result of a completed match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.MatchResult
			if err := client.Get(matchPath(args[0], "/result"), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newMatchHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user>",
		Short: "List a user's completed and cancelled matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Match
			if err := client.Get("/api/v1/users/"+url.PathEscape(args[0])+"/matches", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}
