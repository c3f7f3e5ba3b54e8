package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"baseQuestAPI/internal/ui"
)

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the live leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			board, err := svc.GetLeaderboard(ctx, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconTrophy, fmt.Sprintf("Week %d leaderboard (%d players)", board.Week, board.TotalPlayers)))
			for i, e := range board.Entries {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(out, "%3d. %s %s %s\n",
					e.Rank,
					e.Address.Hex(),
					ui.Key.Render(fmt.Sprintf("%s %d", ui.IconStreak, e.CurrentStreak)),
					ui.Gold.Render(fmt.Sprintf("%d BP", e.WeeklyBasePoints)),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Rows to show (0 for all)")
	return cmd
}
