package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/fairway/internal/api/request"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score entry commands",
	}

	cmd.AddCommand(newScoreSubmitCmd())

	return cmd
}

func newScoreSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <match> <hole> <strokes>",
		Short: "Record your strokes for a hole",
		Long: `Record your strokes for a hole of an active match. Submitting again
for the same hole replaces the earlier score.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			hole, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid hole %q", args[1])
			}
			strokes, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid strokes %q", args[2])
			}

			path := matchPath(args[0], "/scores/"+strconv.Itoa(hole))
			if err := client.Put(path, request.SubmitScoreRequest{Strokes: &strokes}, nil); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).PrintMessage(fmt.Sprintf("Hole %d: %d strokes recorded", hole, strokes))
			return nil
		},
	}
}
