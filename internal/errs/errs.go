package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig marks bad or missing CLI/file input, caught before any
	// model or data file is loaded.
	ErrConfig = errors.New("configuration error")
	// ErrTraining marks a fatal failure during an optimization step.
	ErrTraining = errors.New("training error")
	// ErrCheckpointMismatch marks an evaluation-time disagreement between
	// the checkpoint's recorded method and the requested one.
	ErrCheckpointMismatch = errors.New("checkpoint mismatch")
	// ErrEvaluation marks an empty or malformed test set.
	ErrEvaluation = errors.New("evaluation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = errors.New("failure")
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
