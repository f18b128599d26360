package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"speechtune/internal/checkpoint"
	"speechtune/internal/model"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect saved checkpoints",
	}

	checkpointCmd.AddCommand(newCheckpointShowCommand())
	checkpointCmd.AddCommand(newCheckpointVerifyCommand(ctx))

	return checkpointCmd
}

func newCheckpointShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show <dir>",
		Short:       "Print checkpoint metadata",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := checkpoint.Load(args[0])
			if err != nil {
				return err
			}

			var values int
			for _, w := range snap.Weights {
				values += len(w.Data)
			}

			out := cmd.OutOrStdout()
			meta := snap.Meta
			hp := meta.Hyperparameters
			fmt.Fprintf(out, "Method:          %s\n", meta.Method)
			fmt.Fprintf(out, "Base model:      %s\n", meta.BaseModelID)
			fmt.Fprintf(out, "Model size:      %s\n", meta.ModelSize)
			fmt.Fprintf(out, "Step:            %d\n", meta.Step)
			fmt.Fprintf(out, "Created:         %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "Tensors:         %d (%d values)\n", len(snap.Weights), values)
			fmt.Fprintf(out, "Learning rate:   %v\n", hp.LearningRate)
			if hp.Rank > 0 {
				fmt.Fprintf(out, "Rank:            %d (alpha %v)\n", hp.Rank, hp.Alpha)
			}
			if len(hp.Layers) > 0 {
				parts := make([]string, len(hp.Layers))
				for i, l := range hp.Layers {
					parts[i] = fmt.Sprintf("%d", l)
				}
				fmt.Fprintf(out, "Layers:          %s\n", strings.Join(parts, ", "))
			}
			fmt.Fprintf(out, "Steps trained:   %d (batch size %d, seed %d)\n", hp.Steps, hp.BatchSize, hp.Seed)
			return nil
		},
	}
}

func newCheckpointVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check that a checkpoint restores against its base model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolved()
			if err != nil {
				return err
			}

			snap, err := checkpoint.Load(args[0])
			if err != nil {
				return err
			}
			m, err := model.Resolve(cfg.Paths.BaseModelDir, snap.Meta.ModelSize, snap.Meta.Hyperparameters.Seed)
			if err != nil {
				return err
			}
			if _, err := checkpoint.Restore(snap, m, snap.Meta.Method); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s verified: %s on %s restores cleanly\n",
				args[0], snap.Meta.Method, snap.Meta.BaseModelID)
			return nil
		},
	}
}
