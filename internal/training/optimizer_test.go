package training_test

import (
	"testing"

	"speechtune/internal/tensor"
	"speechtune/internal/training"
)

func paramWithGrad(name string, value, grad float32) *tensor.Tensor {
	p := tensor.New(name, 2)
	p.Data[0], p.Data[1] = value, value
	p.EnsureGrad()
	p.Grad[0], p.Grad[1] = grad, grad
	return p
}

func TestSGDStep(t *testing.T) {
	opt, err := training.NewOptimizer("sgd", 0.5, 0)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	p := paramWithGrad("w", 1, 0.2)
	if err := opt.Step([]*tensor.Tensor{p}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if p.Data[0] != 0.9 {
		t.Fatalf("unexpected value after step: %v", p.Data[0])
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	opt, err := training.NewOptimizer("sgd", 1, 0.5)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	p := paramWithGrad("w", 0, 1)
	if err := opt.Step([]*tensor.Tensor{p}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// velocity = 1, value = -1
	if err := opt.Step([]*tensor.Tensor{p}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// velocity = 0.5 + 1 = 1.5, value = -2.5
	if p.Data[0] != -2.5 {
		t.Fatalf("momentum not applied: %v", p.Data[0])
	}
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	opt, err := training.NewOptimizer("adam", 0.1, 0)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	p := paramWithGrad("w", 1, 0.3)
	if err := opt.Step([]*tensor.Tensor{p}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if p.Data[0] >= 1 {
		t.Fatalf("adam should move against the gradient: %v", p.Data[0])
	}
}

func TestOptimizerSkipsParamsWithoutGrad(t *testing.T) {
	opt, _ := training.NewOptimizer("sgd", 0.5, 0)
	p := tensor.New("frozen", 2)
	p.Data[0] = 3
	if err := opt.Step([]*tensor.Tensor{p}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if p.Data[0] != 3 {
		t.Fatalf("parameter without grad must not move: %v", p.Data[0])
	}
}
