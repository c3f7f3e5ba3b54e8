package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"baseQuestAPI/internal/ui"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/internal/week"
	"baseQuestAPI/services"
)

func newAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Roll the game into the current week and settle closed weeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			wk, err := svc.AdvanceWeek(ctx)
			if err != nil {
				return err
			}
			n, err := svc.SettlePending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Current week", wk))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Weeks settled", n))
			return nil
		},
	}
}

func newSettleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <week>",
		Short: "Settle one closed week and print its payouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wk, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid week %q", args[0])
			}

			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, settleErr := svc.SettleWeek(ctx, wk)
			if errors.Is(settleErr, services.ErrSettlementAlreadyDone) {
				snap, err = svc.GetWeekSnapshot(ctx, wk)
				if err != nil {
					return err
				}
				settleErr = nil
			}
			if snap == nil {
				return settleErr
			}

			printSnapshot(cmd.OutOrStdout(), snap)
			return settleErr
		},
	}
}

func printSnapshot(out io.Writer, snap *week.Snapshot) {
	fmt.Fprintln(out, ui.Heading(ui.IconCoin, fmt.Sprintf("Week %d %s", snap.Week, ui.SettlementText(string(snap.Status)))))
	fmt.Fprintln(out, ui.LabelValue("Pool", wallet.FormatEther(snap.Pool)+" ETH"))
	if snap.FailureReason != "" {
		fmt.Fprintln(out, ui.LabelValue("Failure", snap.FailureReason))
	}
	for _, p := range snap.Payouts {
		fmt.Fprintf(out, "- %s %s %s\n", p.Address.Hex(), ui.Gold.Render(wallet.FormatEther(p.Amount)+" ETH"), ui.Muted.Render(p.TxHash))
	}
}
