package model_test

import (
	"errors"
	"testing"

	"speechtune/internal/errs"
	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

func TestParseSize(t *testing.T) {
	for _, valid := range []string{"small", "medium", "large", " Large "} {
		if _, err := model.ParseSize(valid); err != nil {
			t.Fatalf("ParseSize(%q) returned error: %v", valid, err)
		}
	}
	_, err := model.ParseSize("bogus")
	if !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("expected ErrConfig for bogus size, got %v", err)
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a := model.Synthetic(model.SizeSmall, 7)
	b := model.Synthetic(model.SizeSmall, 7)
	pa, pb := a.Parameters(), b.Parameters()
	if len(pa) != len(pb) {
		t.Fatalf("parameter count mismatch: %d vs %d", len(pa), len(pb))
	}
	for i := range pa {
		if !tensor.ApproxEqual(pa[i], pb[i], 0) {
			t.Fatalf("parameter %s differs between identical builds", pa[i].Name)
		}
	}
	if a.ID != b.ID {
		t.Fatalf("identical builds disagree on id: %q vs %q", a.ID, b.ID)
	}
}

func TestSyntheticSeedChangesIdentity(t *testing.T) {
	a := model.Synthetic(model.SizeSmall, 7)
	b := model.Synthetic(model.SizeSmall, 42)
	if a.ID == b.ID {
		t.Fatalf("different seeds must not share id %q", a.ID)
	}
	if tensor.ApproxEqual(a.Layers[0].Weight, b.Layers[0].Weight, 0) {
		t.Fatal("different seeds produced identical layer weights")
	}
}

func TestForwardShapes(t *testing.T) {
	m := model.Synthetic(model.SizeSmall, 1)
	acts, err := m.Forward([]float32{0.5, -0.25, 1, 0.75, -1}, nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(acts.Out) != m.Hidden {
		t.Fatalf("final hidden width %d, want %d", len(acts.Out), m.Hidden)
	}
	if len(acts.Inputs) != len(m.Layers) || len(acts.Pre) != len(m.Layers) {
		t.Fatal("activation taps missing layers")
	}
	if !tensor.Finite(acts.Out) {
		t.Fatal("forward produced non-finite values")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := model.Synthetic(model.SizeMedium, 11)
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := model.Load(dir, model.SizeMedium)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != m.ID {
		t.Fatalf("id mismatch: %q vs %q", loaded.ID, m.ID)
	}
	if len(loaded.Vocab) != len(m.Vocab) {
		t.Fatalf("vocab size mismatch: %d vs %d", len(loaded.Vocab), len(m.Vocab))
	}
	pa, pb := m.Parameters(), loaded.Parameters()
	for i := range pa {
		if !tensor.ApproxEqual(pa[i], pb[i], 1e-6) {
			t.Fatalf("parameter %s not preserved", pa[i].Name)
		}
	}

	if _, err := model.Load(dir, model.SizeLarge); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestResolveFallsBackToSynthetic(t *testing.T) {
	m, err := model.Resolve("", model.SizeSmall, 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.ID == "" || len(m.Layers) == 0 {
		t.Fatal("expected synthetic model")
	}
}
