package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"speechtune/internal/checkpoint"
	"speechtune/internal/dataset"
	"speechtune/internal/errs"
	"speechtune/internal/logging"
	"speechtune/internal/method"
	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

// Config sets the fixed-step fit loop parameters.
type Config struct {
	Steps     int
	BatchSize int
	// SaveEvery persists a checkpoint every N steps; a final save always
	// happens after the last step. Zero means final save only.
	SaveEvery int
	// LogEvery emits a progress record every N steps.
	LogEvery  int
	OutputDir string
	Hyper     checkpoint.Hyperparameters
}

// Result summarizes a completed run.
type Result struct {
	Steps         int
	FinalLoss     float64
	CheckpointDir string
}

// Trainer runs the optimization loop over an attached strategy. There are no
// retries: a step failure aborts the run with the step index attached.
type Trainer struct {
	model    *model.Model
	strategy method.Strategy
	manifest *dataset.Manifest
	opt      Optimizer
	cfg      Config
	logger   *slog.Logger
}

// New wires a trainer. The strategy must already be attached to the model.
func New(m *model.Model, strat method.Strategy, manifest *dataset.Manifest, opt Optimizer, cfg Config, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Trainer{model: m, strategy: strat, manifest: manifest, opt: opt, cfg: cfg, logger: logger}
}

// Run executes the configured number of optimization steps, persisting
// checkpoints on the configured interval. Checkpoint files of the same name
// are overwritten, never merged.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	if len(t.manifest.Records) == 0 {
		return nil, errs.Wrap(errs.ErrTraining, "trainer", "start",
			fmt.Sprintf("training manifest %s has no records", t.manifest.Path), nil)
	}
	batches := t.manifest.Batches(t.cfg.BatchSize)
	params := t.strategy.TrainableParameters()
	if len(params) == 0 {
		return nil, errs.Wrap(errs.ErrTraining, "trainer", "start", "strategy has no trainable parameters", nil)
	}

	t.logger.Info("training started",
		logging.String("method", string(t.strategy.Method())),
		logging.String("model_size", string(t.model.Size)),
		logging.Int("steps", t.cfg.Steps),
		logging.Int("batch_size", t.cfg.BatchSize),
		logging.Int("trainable_parameters", countValues(params)),
		logging.String("optimizer", t.opt.Name()),
	)

	var loss float64
	for step := 1; step <= t.cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrTraining, "trainer", fmt.Sprintf("step %d", step), "canceled", err)
		}

		batch := batches[(step-1)%len(batches)]
		var err error
		loss, err = t.runStep(batch)
		if err != nil {
			return nil, errs.Wrap(errs.ErrTraining, "trainer", fmt.Sprintf("step %d", step), "", err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, errs.Wrap(errs.ErrTraining, "trainer", fmt.Sprintf("step %d", step),
				fmt.Sprintf("non-finite loss %v", loss), nil)
		}

		if t.cfg.LogEvery > 0 && step%t.cfg.LogEvery == 0 {
			t.logger.Info("training progress",
				logging.Int("step", step),
				logging.Float64("loss", loss),
			)
		}
		if t.cfg.SaveEvery > 0 && step%t.cfg.SaveEvery == 0 && step != t.cfg.Steps {
			if err := t.save(step); err != nil {
				return nil, errs.Wrap(errs.ErrTraining, "trainer", fmt.Sprintf("step %d", step), "persist checkpoint", err)
			}
		}
	}

	if err := t.save(t.cfg.Steps); err != nil {
		return nil, errs.Wrap(errs.ErrTraining, "trainer", "final checkpoint", "", err)
	}
	t.logger.Info("training finished",
		logging.Int("steps", t.cfg.Steps),
		logging.Float64("final_loss", loss),
		logging.String("checkpoint_dir", t.cfg.OutputDir),
	)
	return &Result{Steps: t.cfg.Steps, FinalLoss: loss, CheckpointDir: t.cfg.OutputDir}, nil
}

// runStep accumulates gradients over one batch and applies a single
// optimizer update. The returned loss is the batch mean.
func (t *Trainer) runStep(batch []dataset.Record) (float64, error) {
	params := t.strategy.TrainableParameters()
	for _, p := range params {
		p.EnsureGrad()
		p.ZeroGrad()
	}

	var total float64
	for _, rec := range batch {
		features, err := t.manifest.LoadFeatures(rec)
		if err != nil {
			return 0, err
		}
		acts, err := t.model.Forward(features, t.strategy)
		if err != nil {
			return 0, err
		}
		if !tensor.Finite(acts.Out) {
			return 0, fmt.Errorf("non-finite activations for record %q", rec.ID)
		}
		target := textTarget(rec.Text, t.model.Vocab)
		loss, err := lossAndBackward(t.model, t.strategy, acts, target)
		if err != nil {
			return 0, err
		}
		total += loss
	}

	scale := float32(1.0 / float64(len(batch)))
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] *= scale
		}
	}
	if err := t.opt.Step(params); err != nil {
		return 0, err
	}
	return total / float64(len(batch)), nil
}

func (t *Trainer) save(step int) error {
	snap := checkpoint.Capture(t.strategy, t.model, t.cfg.Hyper, step)
	return checkpoint.Save(t.cfg.OutputDir, snap)
}

func countValues(params []*tensor.Tensor) int {
	var n int
	for _, p := range params {
		n += p.Numel()
	}
	return n
}
