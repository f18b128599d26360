package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"speechtune/internal/runs"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Run history",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolved()
			if err != nil {
				return err
			}
			store, err := ctx.openRuns(&cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, run := range list {
				rows = append(rows, []string{
					shortID(run.ID),
					string(run.Kind),
					run.Method,
					run.ModelSize,
					string(run.Status),
					formatMetric(run),
					run.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			table := renderTable(
				[]string{"ID", "Kind", "Method", "Size", "Status", "Metric", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0: all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolved()
			if err != nil {
				return err
			}
			store, err := ctx.openRuns(&cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", run.ID)
			fmt.Fprintf(out, "Kind:        %s\n", run.Kind)
			fmt.Fprintf(out, "Method:      %s\n", run.Method)
			fmt.Fprintf(out, "Model size:  %s\n", run.ModelSize)
			fmt.Fprintf(out, "Status:      %s\n", run.Status)
			fmt.Fprintf(out, "Steps:       %d\n", run.Steps)
			if run.HasMetric {
				fmt.Fprintf(out, "Metric:      %s = %.6f\n", run.MetricName, run.MetricValue)
			}
			if run.CheckpointDir != "" {
				fmt.Fprintf(out, "Checkpoint:  %s\n", run.CheckpointDir)
			}
			if run.Error != "" {
				fmt.Fprintf(out, "Error:       %s\n", run.Error)
			}
			fmt.Fprintf(out, "Created:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Updated:     %s\n", run.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMetric(run *runs.Run) string {
	if !run.HasMetric {
		return "-"
	}
	return fmt.Sprintf("%s %.4f", run.MetricName, run.MetricValue)
}
