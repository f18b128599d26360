package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"speechtune/internal/checkpoint"
	"speechtune/internal/config"
	"speechtune/internal/dataset"
	"speechtune/internal/errs"
	"speechtune/internal/eval"
	"speechtune/internal/method"
	"speechtune/internal/model"
	"speechtune/internal/runs"
)

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a checkpoint against a held-out manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolved()
			if err != nil {
				return err
			}
			if err := applyEvaluateFlags(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.ValidateEvaluate(); err != nil {
				return err
			}
			return runEvaluate(cmd, ctx, cfg)
		},
	}

	cmd.Flags().String("checkpoint_dir", "", "Checkpoint directory to evaluate")
	cmd.Flags().String("test_data", "", "Evaluation manifest (JSONL)")
	cmd.Flags().String("task", "", "Decode task (transcribe, translate)")
	cmd.Flags().String("target_language", "", "BCP 47 tag for translation references")
	cmd.Flags().Int("max_tokens", 0, "Decode budget per item")
	cmd.Flags().String("method", "", "Expected fine-tuning method (default: checkpoint's)")
	cmd.Flags().String("base_model_dir", "", "Base model weights directory")
	return cmd
}

func applyEvaluateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}

	set("checkpoint_dir", func() error { return getPath(cmd, "checkpoint_dir", &cfg.Paths.CheckpointDir) })
	set("test_data", func() error { return getPath(cmd, "test_data", &cfg.Paths.TestData) })
	set("task", func() error { return getString(cmd, "task", &cfg.Evaluation.Task) })
	set("target_language", func() error { return getString(cmd, "target_language", &cfg.Evaluation.TargetLanguage) })
	set("max_tokens", func() error { return getInt(cmd, "max_tokens", &cfg.Evaluation.MaxTokens) })
	set("base_model_dir", func() error { return getPath(cmd, "base_model_dir", &cfg.Paths.BaseModelDir) })
	if err != nil {
		return err
	}

	cfg.Evaluation.Task = strings.ToLower(strings.TrimSpace(cfg.Evaluation.Task))
	return nil
}

func runEvaluate(cmd *cobra.Command, ctx *commandContext, cfg config.Config) error {
	task, err := eval.ParseTask(cfg.Evaluation.Task)
	if err != nil {
		return err
	}
	if task == eval.TaskTranslate {
		if err := eval.ValidateLanguage(cfg.Evaluation.TargetLanguage); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.Paths.CheckpointDir) == "" {
		return errs.Wrap(errs.ErrConfig, "evaluate", "resolve", "checkpoint_dir is required", nil)
	}
	if strings.TrimSpace(cfg.Paths.TestData) == "" {
		return errs.Wrap(errs.ErrConfig, "evaluate", "resolve", "test_data is required", nil)
	}

	logger, err := ctx.newLogger(&cfg)
	if err != nil {
		return err
	}

	snap, err := checkpoint.Load(cfg.Paths.CheckpointDir)
	if err != nil {
		return err
	}

	// The checkpoint's recorded method is authoritative unless the caller
	// explicitly requests one; a disagreement is fatal, never coerced.
	requested := snap.Meta.Method
	if cmd.Flags().Changed("method") {
		var raw string
		if err := getString(cmd, "method", &raw); err != nil {
			return err
		}
		requested, err = method.Parse(raw)
		if err != nil {
			return err
		}
	}

	// A synthetic base is rebuilt from the seed the checkpoint was trained
	// with, not the configured one; otherwise Restore would compare ids of
	// models with different frozen weights.
	m, err := model.Resolve(cfg.Paths.BaseModelDir, snap.Meta.ModelSize, snap.Meta.Hyperparameters.Seed)
	if err != nil {
		return err
	}
	strat, err := checkpoint.Restore(snap, m, requested)
	if err != nil {
		return err
	}

	manifest, err := dataset.Load(cfg.Paths.TestData)
	if err != nil {
		return errs.Wrap(errs.ErrEvaluation, "evaluate", "load manifest", "", err)
	}

	store, err := ctx.openRuns(&cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.Begin(cmd.Context(), runs.KindEval, string(requested), string(snap.Meta.ModelSize), cfg.Paths.CheckpointDir)
	if err != nil {
		return err
	}

	decoder := eval.NewGreedyDecoder(m, strat, cfg.Evaluation.MaxTokens)
	pipeline := eval.NewPipeline(decoder, task, logger)
	report, err := pipeline.Run(cmd.Context(), manifest)
	if err != nil {
		if failErr := store.Fail(cmd.Context(), runID, err); failErr != nil {
			logger.Warn("record run failure", "error", failErr)
		}
		return err
	}
	if err := store.Complete(cmd.Context(), runID, snap.Meta.Step, report.MetricName, report.MetricValue); err != nil {
		return err
	}

	renderReport(cmd, runID, snap, report)
	return nil
}

func renderReport(cmd *cobra.Command, runID string, snap *checkpoint.Snapshot, report *eval.Report) {
	out := cmd.OutOrStdout()
	if stdoutIsTerminal() {
		rows := [][]string{
			{"Run", runID},
			{"Method", string(snap.Meta.Method)},
			{"Model size", string(snap.Meta.ModelSize)},
			{"Task", string(report.Task)},
			{"Items", fmt.Sprintf("%d", report.Items)},
			{strings.ToUpper(report.MetricName), fmt.Sprintf("%.4f", report.MetricValue)},
		}
		fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
		return
	}
	fmt.Fprintf(out, "run=%s method=%s model_size=%s task=%s items=%d %s=%.4f\n",
		runID, snap.Meta.Method, snap.Meta.ModelSize, report.Task, report.Items,
		report.MetricName, report.MetricValue)
}
