package root

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/ui"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/services"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Curate the current week's tasks",
	}
	cmd.AddCommand(newTasksListCmd(), newTasksAddCmd(), newTasksToggleCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var wk int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of a week (default: current)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var (
				shown uint64
				list  []task.Task
			)
			if wk < 0 {
				shown, list, err = svc.GetCurrentWeekTasks(ctx)
			} else {
				shown = uint64(wk)
				list, err = svc.GetTasks(ctx, shown)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconTask, fmt.Sprintf("Tasks of week %d", shown)))
			if len(list) == 0 {
				fmt.Fprintln(out, ui.Muted.Render("no tasks"))
				return nil
			}
			for _, t := range list {
				fmt.Fprintf(out, "%s %s %s %s %s\n",
					ui.Key.Render(fmt.Sprintf("#%d", t.ID)),
					t.Description,
					ui.Muted.Render("["+string(t.Type)+"]"),
					ui.Gold.Render(fmt.Sprintf("%d BP", t.BasePointsReward)),
					ui.ActiveText(t.IsActive),
				)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&wk, "week", "w", -1, "Week index")
	return cmd
}

func curatorCaller(svc *services.GameService, raw string) (services.Caller, error) {
	addr, err := wallet.UnifyAddress(raw)
	if err != nil {
		return services.Caller{}, errors.Wrap(err, "--as")
	}
	c := svc.Roles().CallerFor(addr)
	if !c.Has(services.CapCurator) {
		return services.Caller{}, fmt.Errorf("%s is not a configured curator", addr.Hex())
	}
	return c, nil
}

func newTasksAddCmd() *cobra.Command {
	var (
		file   string
		as     string
		desc   string
		typ    string
		reward uint64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append tasks to the current week from flags or a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []task.NewTaskRequest
			switch {
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &reqs); err != nil {
					return errors.Wrapf(err, "parse %s", file)
				}
			case desc != "":
				reqs = append(reqs, task.NewTaskRequest{Description: desc, TaskType: typ, BasePointsReward: reward})
			default:
				return errors.New("either --file or --desc is required")
			}

			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			caller, err := curatorCaller(svc, as)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, req := range reqs {
				created, err := svc.AddTask(ctx, caller, req)
				if err != nil {
					return errors.Wrapf(err, "add %q", req.Description)
				}
				fmt.Fprintf(out, "%s %s %s\n", ui.Good.Render(ui.IconDone), ui.Key.Render(fmt.Sprintf("#%d", created.ID)), created.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of tasks")
	cmd.Flags().StringVar(&as, "as", "", "Curator wallet address")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "Task description")
	cmd.Flags().StringVarP(&typ, "type", "t", string(task.TypeOnchain), "Task type (onchain|offchain|hybrid)")
	cmd.Flags().Uint64VarP(&reward, "reward", "r", 10, "Base points reward")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newTasksToggleCmd() *cobra.Command {
	var (
		as     string
		active bool
	)

	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Activate or deactivate a task of the current week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, "task id")
			}

			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			caller, err := curatorCaller(svc, as)
			if err != nil {
				return err
			}
			t, err := svc.SetTaskActive(ctx, caller, id, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Key.Render(fmt.Sprintf("#%d", t.ID)), ui.ActiveText(t.IsActive))
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Curator wallet address")
	cmd.Flags().BoolVar(&active, "active", true, "Desired state")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
