package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeModel()
	c.normalizeTuning()
	c.normalizeEvaluation()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []*string{
		&c.Paths.TrainData,
		&c.Paths.TestData,
		&c.Paths.OutputDir,
		&c.Paths.CheckpointDir,
		&c.Paths.BaseModelDir,
		&c.Paths.RunsDir,
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func (c *Config) normalizeModel() {
	c.Model.Size = strings.ToLower(strings.TrimSpace(c.Model.Size))
}

func (c *Config) normalizeTuning() {
	c.Tuning.Method = strings.ToLower(strings.TrimSpace(c.Tuning.Method))
	c.Tuning.Optimizer = strings.ToLower(strings.TrimSpace(c.Tuning.Optimizer))
}

func (c *Config) normalizeEvaluation() {
	c.Evaluation.Task = strings.ToLower(strings.TrimSpace(c.Evaluation.Task))
	c.Evaluation.TargetLanguage = strings.TrimSpace(c.Evaluation.TargetLanguage)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
