// Package logging builds slog loggers for the CLI and background work.
//
// Two output formats are supported: a compact console format for
// interactive runs and JSON for machine consumption. Attr helpers wrap
// the slog constructors so callers do not import log/slog directly.
package logging
