package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"speechtune/internal/checkpoint"
	"speechtune/internal/config"
	"speechtune/internal/dataset"
	"speechtune/internal/errs"
	"speechtune/internal/method"
	"speechtune/internal/model"
	"speechtune/internal/runs"
	"speechtune/internal/training"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var presetPath string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fine-tune a base model on a training manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolved()
			if err != nil {
				return err
			}
			if strings.TrimSpace(presetPath) != "" {
				preset, err := config.LoadPreset(presetPath)
				if err != nil {
					return err
				}
				cfg.ApplyPreset(preset)
			}
			if err := applyTuningFlags(cmd, &cfg); err != nil {
				return err
			}

			// Closed sets and ranges are checked before any data file opens.
			if err := cfg.ValidateTrain(); err != nil {
				return err
			}
			return runTrain(cmd, ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&presetPath, "preset", "", "YAML hyperparameter preset file")
	registerTuningFlags(cmd)
	cmd.Flags().String("train_data", "", "Training manifest (JSONL)")
	cmd.Flags().String("output_dir", "", "Checkpoint output directory")
	cmd.Flags().String("base_model_dir", "", "Base model weights directory")
	return cmd
}

// registerTuningFlags declares the flags shared by train and that select the
// model and method. Flag names use underscores to match the config keys.
func registerTuningFlags(cmd *cobra.Command) {
	cmd.Flags().String("model_size", "", "Base model size (small, medium, large)")
	cmd.Flags().String("method", "", "Fine-tuning method (lora, loreft, direft, full)")
	cmd.Flags().Float64("learning_rate", 0, "Optimizer learning rate")
	cmd.Flags().Int("rank", 0, "Low-rank dimension for lora/loreft/direft")
	cmd.Flags().Float64("alpha", 0, "Adapter scaling numerator")
	cmd.Flags().IntSlice("layers", nil, "Layers to adapt (default all)")
	cmd.Flags().Int("positions", 0, "Intervention positions per layer")
	cmd.Flags().Bool("tied_projection", true, "Tie the intervention projection")
	cmd.Flags().Int("steps", 0, "Number of optimization steps")
	cmd.Flags().Int("batch_size", 0, "Records per optimization step")
	cmd.Flags().Int("save_every", 0, "Checkpoint interval in steps (0: final only)")
	cmd.Flags().Int("log_every", 0, "Progress logging interval in steps")
	cmd.Flags().String("optimizer", "", "Optimizer (sgd, adam)")
	cmd.Flags().Float64("momentum", 0, "Momentum for sgd")
	cmd.Flags().Int64("seed", 0, "Seed for weight and adapter init")
}

// applyTuningFlags overlays explicitly set flags onto the config copy.
// Unchanged flags leave file, preset, and default values alone.
func applyTuningFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}

	set("model_size", func() error { return getString(cmd, "model_size", &cfg.Model.Size) })
	set("method", func() error { return getString(cmd, "method", &cfg.Tuning.Method) })
	set("learning_rate", func() error { return getFloat64(cmd, "learning_rate", &cfg.Tuning.LearningRate) })
	set("rank", func() error { return getInt(cmd, "rank", &cfg.Tuning.Rank) })
	set("alpha", func() error { return getFloat64(cmd, "alpha", &cfg.Tuning.Alpha) })
	set("layers", func() error {
		values, err := flags.GetIntSlice("layers")
		if err != nil {
			return err
		}
		cfg.Tuning.Layers = values
		return nil
	})
	set("positions", func() error { return getInt(cmd, "positions", &cfg.Tuning.Positions) })
	set("tied_projection", func() error {
		value, err := flags.GetBool("tied_projection")
		if err != nil {
			return err
		}
		cfg.Tuning.TiedProjection = value
		return nil
	})
	set("steps", func() error { return getInt(cmd, "steps", &cfg.Tuning.Steps) })
	set("batch_size", func() error { return getInt(cmd, "batch_size", &cfg.Tuning.BatchSize) })
	set("save_every", func() error { return getInt(cmd, "save_every", &cfg.Tuning.SaveEvery) })
	set("log_every", func() error { return getInt(cmd, "log_every", &cfg.Tuning.LogEvery) })
	set("optimizer", func() error { return getString(cmd, "optimizer", &cfg.Tuning.Optimizer) })
	set("momentum", func() error { return getFloat64(cmd, "momentum", &cfg.Tuning.Momentum) })
	set("seed", func() error {
		value, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Model.Seed = value
		return nil
	})
	set("train_data", func() error { return getPath(cmd, "train_data", &cfg.Paths.TrainData) })
	set("output_dir", func() error { return getPath(cmd, "output_dir", &cfg.Paths.OutputDir) })
	set("base_model_dir", func() error { return getPath(cmd, "base_model_dir", &cfg.Paths.BaseModelDir) })
	if err != nil {
		return err
	}

	cfg.Model.Size = strings.ToLower(strings.TrimSpace(cfg.Model.Size))
	cfg.Tuning.Method = strings.ToLower(strings.TrimSpace(cfg.Tuning.Method))
	cfg.Tuning.Optimizer = strings.ToLower(strings.TrimSpace(cfg.Tuning.Optimizer))
	return nil
}

func runTrain(cmd *cobra.Command, ctx *commandContext, cfg config.Config) error {
	size, err := model.ParseSize(cfg.Model.Size)
	if err != nil {
		return err
	}
	mth, err := method.Parse(cfg.Tuning.Method)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Paths.TrainData) == "" {
		return errs.Wrap(errs.ErrConfig, "train", "resolve", "train_data is required (flag --train_data or [paths] train_data)", nil)
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) == "" {
		return errs.Wrap(errs.ErrConfig, "train", "resolve", "output_dir is required", nil)
	}

	logger, err := ctx.newLogger(&cfg)
	if err != nil {
		return err
	}

	manifest, err := dataset.Load(cfg.Paths.TrainData)
	if err != nil {
		return errs.Wrap(errs.ErrTraining, "train", "load manifest", "", err)
	}

	m, err := model.Resolve(cfg.Paths.BaseModelDir, size, cfg.Model.Seed)
	if err != nil {
		return err
	}

	hyper := checkpoint.Hyperparameters{
		LearningRate:   cfg.Tuning.LearningRate,
		Rank:           cfg.Tuning.Rank,
		Alpha:          cfg.Tuning.Alpha,
		Layers:         cfg.Tuning.Layers,
		Positions:      cfg.Tuning.Positions,
		TiedProjection: cfg.Tuning.TiedProjection,
		Steps:          cfg.Tuning.Steps,
		BatchSize:      cfg.Tuning.BatchSize,
		Seed:           cfg.Model.Seed,
	}
	strat, err := method.Attach(m, mth, hyper.Options())
	if err != nil {
		return err
	}
	opt, err := training.NewOptimizer(cfg.Tuning.Optimizer, cfg.Tuning.LearningRate, cfg.Tuning.Momentum)
	if err != nil {
		return err
	}

	store, err := ctx.openRuns(&cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.Begin(cmd.Context(), runs.KindTrain, string(mth), string(size), cfg.Paths.OutputDir)
	if err != nil {
		return err
	}

	trainer := training.New(m, strat, manifest, opt, training.Config{
		Steps:     cfg.Tuning.Steps,
		BatchSize: cfg.Tuning.BatchSize,
		SaveEvery: cfg.Tuning.SaveEvery,
		LogEvery:  cfg.Tuning.LogEvery,
		OutputDir: cfg.Paths.OutputDir,
		Hyper:     hyper,
	}, logger)

	result, err := trainer.Run(cmd.Context())
	if err != nil {
		if failErr := store.Fail(cmd.Context(), runID, err); failErr != nil {
			logger.Warn("record run failure", "error", failErr)
		}
		return err
	}
	if err := store.Complete(cmd.Context(), runID, result.Steps, "final_loss", result.FinalLoss); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s completed: %d steps, final loss %.6f\n", runID, result.Steps, result.FinalLoss)
	fmt.Fprintf(out, "Checkpoint: %s\n", result.CheckpointDir)
	return nil
}
