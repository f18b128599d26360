// Package config loads, normalizes, and validates speechtune configuration.
//
// Values come from three sources, lowest precedence first: repository
// defaults, a TOML config file, and an optional YAML hyperparameter preset.
// Command-line flags are applied on top by the CLI layer. Validation is
// fail fast: closed-set fields such as model size and tuning method reject
// unknown values before any model or data file is opened.
package config
