package root

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"baseQuestAPI/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current week, fee and prize pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := svc.GetGameInfo(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconWeek, fmt.Sprintf("Week %d", info.CurrentWeek)))
			fmt.Fprintln(out, ui.LabelValue("Entry fee", info.EntryFeeEth+" ETH"))
			fmt.Fprintln(out, ui.LabelValue("Prize pool", ui.Gold.Render(info.WeeklyPrizePoolEth+" ETH")))
			fmt.Fprintln(out, ui.LabelValue("Ends", fmt.Sprintf("%s %s",
				info.WeekEndsAt.Format(time.RFC3339),
				ui.Muted.Render(fmt.Sprintf("(in %s)", time.Duration(info.TimeUntilWeekEnd)*time.Second)),
			)))
			return nil
		},
	}
}
