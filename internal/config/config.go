package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data locations. TrainData and TestData are usually supplied
// per invocation on the command line; the file values act as defaults.
type Paths struct {
	TrainData     string `toml:"train_data"`
	TestData      string `toml:"test_data"`
	OutputDir     string `toml:"output_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	BaseModelDir  string `toml:"base_model_dir"`
	RunsDir       string `toml:"runs_dir"`
}

// Model selects the frozen base model.
type Model struct {
	Size string `toml:"size"`
	Seed int64  `toml:"seed"`
}

// Tuning contains the fine-tuning method and its hyperparameters.
type Tuning struct {
	Method         string  `toml:"method"`
	LearningRate   float64 `toml:"learning_rate"`
	Rank           int     `toml:"rank"`
	Alpha          float64 `toml:"alpha"`
	Layers         []int   `toml:"layers"`
	Positions      int     `toml:"positions"`
	TiedProjection bool    `toml:"tied_projection"`
	Steps          int     `toml:"steps"`
	BatchSize      int     `toml:"batch_size"`
	SaveEvery      int     `toml:"save_every"`
	LogEvery       int     `toml:"log_every"`
	Optimizer      string  `toml:"optimizer"`
	Momentum       float64 `toml:"momentum"`
}

// Evaluation contains decode and metric settings.
type Evaluation struct {
	Task           string `toml:"task"`
	TargetLanguage string `toml:"target_language"`
	MaxTokens      int    `toml:"max_tokens"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for speechtune.
//
// Configuration sections by subsystem:
//   - Paths: manifests, checkpoint and run-store directories
//   - Model: base model size and synthetic-init seed
//   - Tuning: method selection and hyperparameters
//   - Evaluation: decode task, target language, decode budget
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Model      Model      `toml:"model"`
	Tuning     Tuning     `toml:"tuning"`
	Evaluation Evaluation `toml:"evaluation"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/speechtune/config.toml")
}

// Load locates and parses a configuration file. The returned config has all
// path fields expanded and normalized. Only the logging section, which every
// command consumes, is validated here; commands validate the sections they
// use via ValidateTrain/ValidateEvaluate after applying their flags.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.validateLogging(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("speechtune.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.RunsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
