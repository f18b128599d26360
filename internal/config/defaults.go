package config

const (
	defaultOutputDir    = "~/.local/share/speechtune/output"
	defaultRunsDir      = "~/.local/share/speechtune/runs"
	defaultModelSize    = "small"
	defaultModelSeed    = 42
	defaultMethod       = "lora"
	defaultLearningRate = 0.001
	defaultRank         = 8
	defaultAlpha        = 16.0
	defaultPositions    = 1
	defaultSteps        = 100
	defaultBatchSize    = 4
	defaultLogEvery     = 10
	defaultOptimizer    = "adam"
	defaultMomentum     = 0.9
	defaultTask         = "transcribe"
	defaultMaxTokens    = 8
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			RunsDir:   defaultRunsDir,
		},
		Model: Model{
			Size: defaultModelSize,
			Seed: defaultModelSeed,
		},
		Tuning: Tuning{
			Method:         defaultMethod,
			LearningRate:   defaultLearningRate,
			Rank:           defaultRank,
			Alpha:          defaultAlpha,
			Positions:      defaultPositions,
			TiedProjection: true,
			Steps:          defaultSteps,
			BatchSize:      defaultBatchSize,
			LogEvery:       defaultLogEvery,
			Optimizer:      defaultOptimizer,
			Momentum:       defaultMomentum,
		},
		Evaluation: Evaluation{
			Task:      defaultTask,
			MaxTokens: defaultMaxTokens,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
