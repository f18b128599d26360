package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtune/internal/errs"
)

func writeWorkspace(t *testing.T) (configPath, manifestPath, outputDir string) {
	t.Helper()
	dir := t.TempDir()

	configPath = filepath.Join(dir, "config.toml")
	outputDir = filepath.Join(dir, "out")
	body := `
[paths]
output_dir = "` + outputDir + `"
runs_dir = "` + filepath.Join(dir, "runs") + `"

[tuning]
steps = 5
batch_size = 2
log_every = 0
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	manifestPath = filepath.Join(dir, "data.jsonl")
	manifest := `{"id": "a", "features": [0.4, 0.1, 0.9, 0.3], "text": "hello world", "translation": "hallo welt"}
{"id": "b", "features": [0.2, 0.8, 0.5], "text": "good morning", "translation": "guten morgen"}
{"id": "c", "features": [0.7, 0.6, 0.1, 0.2, 0.9], "text": "thank you", "translation": "danke"}
`
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return configPath, manifestPath, outputDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrainThenEvaluate(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
		"--method", "lora", "--model_size", "small",
	)
	if err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "completed") {
		t.Fatalf("expected completion message, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "metadata.json")); err != nil {
		t.Fatalf("checkpoint metadata missing: %v", err)
	}

	out, err = runCLI(t,
		"evaluate", "--config", configPath,
		"--checkpoint_dir", outputDir,
		"--test_data", manifestPath,
	)
	if err != nil {
		t.Fatalf("evaluate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "wer") {
		t.Fatalf("expected wer metric in report, got %q", out)
	}
}

func TestEvaluateMethodMismatch(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
		"--method", "lora",
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	_, err := runCLI(t,
		"evaluate", "--config", configPath,
		"--checkpoint_dir", outputDir,
		"--test_data", manifestPath,
		"--method", "loreft",
	)
	if !errors.Is(err, errs.ErrCheckpointMismatch) {
		t.Fatalf("expected ErrCheckpointMismatch, got %v", err)
	}
}

func TestTrainRejectsBadSizeBeforeData(t *testing.T) {
	configPath, _, _ := writeWorkspace(t)

	// train_data points nowhere; the closed-set failure must come first.
	_, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", "/nonexistent/data.jsonl",
		"--model_size", "bogus",
	)
	if !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if err != nil && strings.Contains(err.Error(), "nonexistent") {
		t.Fatalf("validation should fail before the manifest is opened: %v", err)
	}
}

func TestTrainTranslateEvaluate(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
		"--method", "direft", "--rank", "2",
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	out, err := runCLI(t,
		"evaluate", "--config", configPath,
		"--checkpoint_dir", outputDir,
		"--test_data", manifestPath,
		"--task", "translate", "--target_language", "de",
	)
	if err != nil {
		t.Fatalf("evaluate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "bleu") {
		t.Fatalf("expected bleu metric in report, got %q", out)
	}
}

func TestCheckpointShow(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
		"--method", "full",
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	out, err := runCLI(t, "checkpoint", "show", outputDir)
	if err != nil {
		t.Fatalf("checkpoint show failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "full") {
		t.Fatalf("expected method in output, got %q", out)
	}

	out, err = runCLI(t, "checkpoint", "verify", "--config", configPath, outputDir)
	if err != nil {
		t.Fatalf("checkpoint verify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "verified") {
		t.Fatalf("expected verification message, got %q", out)
	}
}

func TestRunsListAfterTraining(t *testing.T) {
	configPath, manifestPath, _ := writeWorkspace(t)

	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	out, err := runCLI(t, "runs", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("runs list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "train") || !strings.Contains(out, "completed") {
		t.Fatalf("expected completed train run in listing, got %q", out)
	}
}

func TestEvaluateUsesCheckpointSeed(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	// Train against a synthetic base built from a non-default seed.
	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
		"--method", "lora", "--seed", "7",
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	// Evaluation rebuilds the base from the checkpoint's recorded seed,
	// so the config default must not matter here.
	out, err := runCLI(t,
		"evaluate", "--config", configPath,
		"--checkpoint_dir", outputDir,
		"--test_data", manifestPath,
	)
	if err != nil {
		t.Fatalf("evaluate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "wer") {
		t.Fatalf("expected wer metric in report, got %q", out)
	}

	if out, err := runCLI(t, "checkpoint", "verify", "--config", configPath, outputDir); err != nil {
		t.Fatalf("checkpoint verify failed: %v\n%s", err, out)
	}
}

func TestEvaluateIgnoresBrokenTuningSection(t *testing.T) {
	configPath, manifestPath, outputDir := writeWorkspace(t)

	if out, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
	); err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}

	// Break the tuning section in place; evaluation does not consume it.
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	broken := strings.Replace(string(raw), "steps = 5", "steps = -5\nmethod = \"prefix-tuning\"", 1)
	if err := os.WriteFile(configPath, []byte(broken), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	out, err := runCLI(t,
		"evaluate", "--config", configPath,
		"--checkpoint_dir", outputDir,
		"--test_data", manifestPath,
	)
	if err != nil {
		t.Fatalf("evaluate should not consume tuning fields: %v\n%s", err, out)
	}

	if _, err := runCLI(t,
		"train", "--config", configPath,
		"--train_data", manifestPath,
	); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("train should still reject the broken tuning section, got %v", err)
	}
}
