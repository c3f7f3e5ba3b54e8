package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"baseQuestAPI/internal/ui"
)

const Version = "0.1.0"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bqctl",
		Short:         "Operator tool for the BaseQuest weekly game",
		Long:          "bqctl curates weekly tasks, inspects players and drives week rollover and settlement against the configured ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.AddCommand(
		newStatusCmd(),
		newTasksCmd(),
		newPlayerCmd(),
		newLeaderboardCmd(),
		newAdvanceCmd(),
		newSettleCmd(),
	)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}
