package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"speechtune/internal/errs"
)

// Preset is a YAML hyperparameter bundle. Only fields present in the file
// are applied, so a preset can pin a handful of values and leave the rest to
// the config file and flags. Flags still win over preset values.
type Preset struct {
	Method         *string  `yaml:"method"`
	LearningRate   *float64 `yaml:"learning_rate"`
	Rank           *int     `yaml:"rank"`
	Alpha          *float64 `yaml:"alpha"`
	Layers         []int    `yaml:"layers"`
	Positions      *int     `yaml:"positions"`
	TiedProjection *bool    `yaml:"tied_projection"`
	Steps          *int     `yaml:"steps"`
	BatchSize      *int     `yaml:"batch_size"`
	SaveEvery      *int     `yaml:"save_every"`
	Optimizer      *string  `yaml:"optimizer"`
	Momentum       *float64 `yaml:"momentum"`
	Seed           *int64   `yaml:"seed"`
}

// LoadPreset reads a YAML preset file.
func LoadPreset(path string) (*Preset, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "config", "preset", fmt.Sprintf("read %s", expanded), err)
	}
	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "config", "preset", fmt.Sprintf("parse %s", expanded), err)
	}
	return &preset, nil
}

// ApplyPreset overlays preset values onto the config. The caller re-runs
// Validate afterwards; presets go through the same closed-set checks as
// every other source.
func (c *Config) ApplyPreset(p *Preset) {
	if p == nil {
		return
	}
	if p.Method != nil {
		c.Tuning.Method = *p.Method
	}
	if p.LearningRate != nil {
		c.Tuning.LearningRate = *p.LearningRate
	}
	if p.Rank != nil {
		c.Tuning.Rank = *p.Rank
	}
	if p.Alpha != nil {
		c.Tuning.Alpha = *p.Alpha
	}
	if len(p.Layers) > 0 {
		c.Tuning.Layers = append([]int(nil), p.Layers...)
	}
	if p.Positions != nil {
		c.Tuning.Positions = *p.Positions
	}
	if p.TiedProjection != nil {
		c.Tuning.TiedProjection = *p.TiedProjection
	}
	if p.Steps != nil {
		c.Tuning.Steps = *p.Steps
	}
	if p.BatchSize != nil {
		c.Tuning.BatchSize = *p.BatchSize
	}
	if p.SaveEvery != nil {
		c.Tuning.SaveEvery = *p.SaveEvery
	}
	if p.Optimizer != nil {
		c.Tuning.Optimizer = *p.Optimizer
	}
	if p.Momentum != nil {
		c.Tuning.Momentum = *p.Momentum
	}
	if p.Seed != nil {
		c.Model.Seed = *p.Seed
	}
	c.normalizeTuning()
}
