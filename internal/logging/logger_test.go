package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"speechtune/internal/logging"
)

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("training step", logging.Int("step", 12), logging.String("phase", "warm up"))

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("expected level label in output, got %q", out)
	}
	if !strings.Contains(out, "step=12") {
		t.Fatalf("expected step attribute in output, got %q", out)
	}
	if !strings.Contains(out, `phase="warm up"`) {
		t.Fatalf("expected quoted value with spaces, got %q", out)
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("checkpoint saved", logging.String("dir", "/tmp/run"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "checkpoint saved" {
		t.Fatalf("unexpected message: %v", record["msg"])
	}
	if record["dir"] != "/tmp/run" {
		t.Fatalf("unexpected dir attribute: %v", record["dir"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record should pass, got %q", out)
	}
}

func TestErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Error("run failed", logging.Error(errors.New("disk full")))
	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Fatalf("expected error attribute, got %q", buf.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should report disabled")
	}
	logger.Info("ignored")
}
