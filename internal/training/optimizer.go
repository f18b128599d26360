package training

import (
	"fmt"
	"math"
	"strings"

	"speechtune/internal/errs"
	"speechtune/internal/tensor"
)

// Optimizer applies accumulated gradients to trainable parameters.
// Per-parameter state is keyed by tensor name so the parameter set can be
// rebuilt between runs without invalidating semantics.
type Optimizer interface {
	Name() string
	Step(params []*tensor.Tensor) error
}

// NewOptimizer builds the configured optimizer. The set is closed: sgd or
// adam.
func NewOptimizer(name string, learningRate, momentum float64) (Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sgd":
		return &sgd{lr: float32(learningRate), momentum: float32(momentum), velocity: map[string][]float32{}}, nil
	case "adam":
		return &adam{lr: learningRate, beta1: 0.9, beta2: 0.999, eps: 1e-8,
			m: map[string][]float32{}, v: map[string][]float32{}}, nil
	default:
		return nil, errs.Wrap(errs.ErrConfig, "training", "optimizer",
			fmt.Sprintf("unknown optimizer %q (expected sgd or adam)", name), nil)
	}
}

type sgd struct {
	lr       float32
	momentum float32
	velocity map[string][]float32
}

func (o *sgd) Name() string { return "sgd" }

func (o *sgd) Step(params []*tensor.Tensor) error {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		if o.momentum > 0 {
			vel, ok := o.velocity[p.Name]
			if !ok {
				vel = make([]float32, len(p.Data))
				o.velocity[p.Name] = vel
			}
			for i := range p.Data {
				vel[i] = o.momentum*vel[i] + p.Grad[i]
				p.Data[i] -= o.lr * vel[i]
			}
			continue
		}
		for i := range p.Data {
			p.Data[i] -= o.lr * p.Grad[i]
		}
	}
	return nil
}

type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	step         int
	m, v         map[string][]float32
}

func (o *adam) Name() string { return "adam" }

func (o *adam) Step(params []*tensor.Tensor) error {
	o.step++
	bc1 := 1 - math.Pow(o.beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.beta2, float64(o.step))
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		m, ok := o.m[p.Name]
		if !ok {
			m = make([]float32, len(p.Data))
			o.m[p.Name] = m
			o.v[p.Name] = make([]float32, len(p.Data))
		}
		v := o.v[p.Name]
		if len(m) != len(p.Data) {
			return fmt.Errorf("optimizer state for %s has %d values, parameter has %d", p.Name, len(m), len(p.Data))
		}
		for i := range p.Data {
			g := float64(p.Grad[i])
			m[i] = float32(o.beta1*float64(m[i]) + (1-o.beta1)*g)
			v[i] = float32(o.beta2*float64(v[i]) + (1-o.beta2)*g*g)
			mHat := float64(m[i]) / bc1
			vHat := float64(v[i]) / bc2
			p.Data[i] -= float32(o.lr * mHat / (math.Sqrt(vHat) + o.eps))
		}
	}
	return nil
}
