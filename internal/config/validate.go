package config

import (
	"fmt"

	"speechtune/internal/errs"
	"speechtune/internal/eval"
	"speechtune/internal/method"
	"speechtune/internal/model"
)

// Validate checks every section. Commands use the scoped variants below so
// an odd tuning block in the file cannot block evaluation, and vice versa;
// Validate is for surfaces that consume the whole config.
func (c *Config) Validate() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateTuning(); err != nil {
		return err
	}
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateTrain checks the fields the train command consumes. Closed-set
// fields reject unknown values here, before any model or data file is opened.
func (c *Config) ValidateTrain() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateTuning(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateEvaluate checks the fields the evaluate command consumes. Model
// size and tuning hyperparameters come from the checkpoint, not the config,
// so they are not checked here.
func (c *Config) ValidateEvaluate() error {
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateModel() error {
	if _, err := model.ParseSize(c.Model.Size); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTuning() error {
	mth, err := method.Parse(c.Tuning.Method)
	if err != nil {
		return err
	}
	if c.Tuning.LearningRate <= 0 {
		return configErr("tuning.learning_rate must be positive, got %v", c.Tuning.LearningRate)
	}
	if c.Tuning.Steps <= 0 {
		return configErr("tuning.steps must be positive, got %d", c.Tuning.Steps)
	}
	if c.Tuning.BatchSize <= 0 {
		return configErr("tuning.batch_size must be positive, got %d", c.Tuning.BatchSize)
	}
	if c.Tuning.SaveEvery < 0 {
		return configErr("tuning.save_every must not be negative, got %d", c.Tuning.SaveEvery)
	}
	if c.Tuning.LogEvery < 0 {
		return configErr("tuning.log_every must not be negative, got %d", c.Tuning.LogEvery)
	}
	if mth != method.Full {
		if c.Tuning.Rank <= 0 {
			return configErr("tuning.rank must be positive for method %q, got %d", mth, c.Tuning.Rank)
		}
		if c.Tuning.Alpha <= 0 {
			return configErr("tuning.alpha must be positive for method %q, got %v", mth, c.Tuning.Alpha)
		}
	}
	if mth == method.LoReFT || mth == method.DiReFT {
		if c.Tuning.Positions <= 0 {
			return configErr("tuning.positions must be positive for method %q, got %d", mth, c.Tuning.Positions)
		}
	}
	for _, layer := range c.Tuning.Layers {
		if layer < 0 {
			return configErr("tuning.layers entries must not be negative, got %d", layer)
		}
	}
	switch c.Tuning.Optimizer {
	case "sgd", "adam":
	default:
		return configErr("tuning.optimizer must be one of sgd, adam; got %q", c.Tuning.Optimizer)
	}
	if c.Tuning.Momentum < 0 || c.Tuning.Momentum >= 1 {
		return configErr("tuning.momentum must be in [0, 1), got %v", c.Tuning.Momentum)
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	if _, err := eval.ParseTask(c.Evaluation.Task); err != nil {
		return err
	}
	if err := eval.ValidateLanguage(c.Evaluation.TargetLanguage); err != nil {
		return err
	}
	if c.Evaluation.MaxTokens <= 0 {
		return configErr("evaluation.max_tokens must be positive, got %d", c.Evaluation.MaxTokens)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return configErr("logging.format must be one of console, json; got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return configErr("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return errs.Wrap(errs.ErrConfig, "config", "validate", fmt.Sprintf(format, args...), nil)
}
