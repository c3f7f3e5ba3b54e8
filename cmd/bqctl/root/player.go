package root

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"baseQuestAPI/internal/ui"
	"baseQuestAPI/internal/wallet"
)

func newPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "player <address>",
		Short: "Dump a player's record and status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := wallet.UnifyAddress(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := svc.GetPlayerData(ctx, addr)
			if err != nil {
				return err
			}
			reset, err := svc.GetTimeUntilDayReset(ctx, addr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconPlayer, addr.Hex()))
			fmt.Fprintln(out, ui.LabelValue("Joined", rec.HasJoined))
			fmt.Fprintln(out, ui.LabelValue("Active this week", rec.ActiveThisWeek))
			fmt.Fprintln(out, ui.LabelValue("Player week", rec.PlayerWeek))
			fmt.Fprintln(out, ui.LabelValue(ui.IconStreak+" Streak", rec.CurrentStreak))
			fmt.Fprintln(out, ui.LabelValue("Weekly BP", rec.WeeklyBasePoints))
			fmt.Fprintln(out, ui.LabelValue("Total BP", rec.TotalBasePoints))
			fmt.Fprintln(out, ui.LabelValue("Tasks today", rec.TasksCompletedToday))
			fmt.Fprintln(out, ui.LabelValue("Day resets in", reset.Round(time.Second)))
			fmt.Fprintln(out, ui.LabelValue("Attestation nonce", rec.Nonce))
			return nil
		},
	}
}
