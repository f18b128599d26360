package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtune/internal/config"
	"speechtune/internal/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := writeConfig(t, `
[model]
size = "medium"
seed = 7

[tuning]
method = "loreft"
rank = 4
layers = [0, 2]

[evaluation]
task = "translate"
target_language = "de"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Model.Size != "medium" || cfg.Model.Seed != 7 {
		t.Fatalf("model section not applied: %+v", cfg.Model)
	}
	if cfg.Tuning.Method != "loreft" || cfg.Tuning.Rank != 4 {
		t.Fatalf("tuning section not applied: %+v", cfg.Tuning)
	}
	if len(cfg.Tuning.Layers) != 2 || cfg.Tuning.Layers[1] != 2 {
		t.Fatalf("layers not applied: %v", cfg.Tuning.Layers)
	}
	if cfg.Evaluation.Task != "translate" || cfg.Evaluation.TargetLanguage != "de" {
		t.Fatalf("evaluation section not applied: %+v", cfg.Evaluation)
	}
	// Untouched sections keep defaults.
	if cfg.Tuning.Optimizer != "adam" {
		t.Fatalf("expected default optimizer, got %q", cfg.Tuning.Optimizer)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("missing file should not be reported as existing")
	}
	if cfg.Model.Size != "small" {
		t.Fatalf("expected default size, got %q", cfg.Model.Size)
	}
}

func TestTrainValidationRejectsUnknownModelSize(t *testing.T) {
	// train_data deliberately points at a file that does not exist: the
	// closed-set check must fire first, not a file-open error.
	path := writeConfig(t, `
[paths]
train_data = "/nonexistent/train.jsonl"

[model]
size = "bogus"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load should defer section validation to the command: %v", err)
	}

	err = cfg.ValidateTrain()
	if err == nil {
		t.Fatal("expected error for unknown model size")
	}
	if !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("error should name the bad value: %v", err)
	}
}

func TestEvaluateValidationIgnoresTuning(t *testing.T) {
	// An odd tuning section must not block evaluation; the checkpoint
	// carries the hyperparameters that matter there.
	path := writeConfig(t, `
[tuning]
method = "prefix-tuning"
steps = -50
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.ValidateEvaluate(); err != nil {
		t.Fatalf("evaluate validation should skip tuning fields: %v", err)
	}
	if err := cfg.ValidateTrain(); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("train validation should still reject it, got %v", err)
	}
}

func TestLoadRejectsBadLogging(t *testing.T) {
	path := writeConfig(t, `
[logging]
format = "xml"
`)
	if _, _, _, err := config.Load(path); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("expected ErrConfig for bad log format, got %v", err)
	}
}

func TestValidateClosedSets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown method", func(c *config.Config) { c.Tuning.Method = "prefix-tuning" }},
		{"unknown optimizer", func(c *config.Config) { c.Tuning.Optimizer = "lion" }},
		{"unknown task", func(c *config.Config) { c.Evaluation.Task = "diarize" }},
		{"bad language tag", func(c *config.Config) { c.Evaluation.TargetLanguage = "not a tag!" }},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"unknown log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"zero rank for lora", func(c *config.Config) { c.Tuning.Rank = 0 }},
		{"negative learning rate", func(c *config.Config) { c.Tuning.LearningRate = -0.1 }},
		{"zero steps", func(c *config.Config) { c.Tuning.Steps = 0 }},
		{"negative layer index", func(c *config.Config) { c.Tuning.Layers = []int{1, -3} }},
		{"momentum out of range", func(c *config.Config) { c.Tuning.Momentum = 1.0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, errs.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestRankNotRequiredForFull(t *testing.T) {
	cfg := config.Default()
	cfg.Tuning.Method = "full"
	cfg.Tuning.Rank = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("full method should not require rank: %v", err)
	}
}

func TestLoadExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
output_dir = "`+dir+`/out"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("output_dir should be absolute, got %q", cfg.Paths.OutputDir)
	}
}

func TestApplyPreset(t *testing.T) {
	presetPath := filepath.Join(t.TempDir(), "preset.yaml")
	body := `
method: DIREFT
rank: 2
learning_rate: 0.01
layers: [1, 3]
tied_projection: false
seed: 99
`
	if err := os.WriteFile(presetPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	preset, err := config.LoadPreset(presetPath)
	if err != nil {
		t.Fatalf("LoadPreset failed: %v", err)
	}

	cfg := config.Default()
	cfg.ApplyPreset(preset)

	if cfg.Tuning.Method != "direft" {
		t.Fatalf("method should be applied lowercased, got %q", cfg.Tuning.Method)
	}
	if cfg.Tuning.Rank != 2 || cfg.Tuning.LearningRate != 0.01 {
		t.Fatalf("hyperparameters not applied: %+v", cfg.Tuning)
	}
	if cfg.Tuning.TiedProjection {
		t.Fatal("tied_projection false should be applied")
	}
	if cfg.Model.Seed != 99 {
		t.Fatalf("seed not applied, got %d", cfg.Model.Seed)
	}
	// Absent preset fields keep existing values.
	if cfg.Tuning.BatchSize != 4 {
		t.Fatalf("batch_size should keep default, got %d", cfg.Tuning.BatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("preset-applied config should validate: %v", err)
	}
}

func TestLoadPresetRejectsMalformedYAML(t *testing.T) {
	presetPath := filepath.Join(t.TempDir(), "preset.yaml")
	if err := os.WriteFile(presetPath, []byte("rank: [not an int"), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	if _, err := config.LoadPreset(presetPath); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}
