package method

import (
	"fmt"

	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

// reftIntervention edits hidden representations at selected layers instead of
// editing weights. The tied form (LoReFT) applies h + R^T(W*h + b - R*h);
// the untied form (DiReFT) drops the projected-base subtraction. Whether the
// projection constraint is strict is a pass-through flag, not reimplemented
// math.
type reftIntervention struct {
	method Method
	tied   bool
	proj   []*tensor.Tensor // R: [rank, hidden]
	weight []*tensor.Tensor // W: [rank, hidden]
	bias   []*tensor.Tensor // b: [rank]
}

func newReFT(m *model.Model, mth Method, layers []int, opts Options, tied bool) *reftIntervention {
	r := &reftIntervention{
		method: mth,
		tied:   tied,
		proj:   make([]*tensor.Tensor, len(m.Layers)),
		weight: make([]*tensor.Tensor, len(m.Layers)),
		bias:   make([]*tensor.Tensor, len(m.Layers)),
	}
	for _, idx := range layers {
		r.proj[idx] = tensor.Randn(fmt.Sprintf("reft.%d.proj", idx), opts.Seed, opts.Rank, m.Hidden)
		r.weight[idx] = tensor.Randn(fmt.Sprintf("reft.%d.weight", idx), opts.Seed, opts.Rank, m.Hidden)
		r.bias[idx] = tensor.New(fmt.Sprintf("reft.%d.bias", idx), opts.Rank)
	}
	return r
}

func (r *reftIntervention) Method() Method   { return r.method }
func (r *reftIntervention) TrainsBase() bool { return false }

func (r *reftIntervention) TrainableParameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for i := range r.proj {
		if r.proj[i] != nil {
			params = append(params, r.proj[i], r.weight[i], r.bias[i])
		}
	}
	return params
}

func (r *reftIntervention) Adjust(_ int, _, pre []float32) []float32 { return pre }

func (r *reftIntervention) After(layer int, h []float32) []float32 {
	if r.proj[layer] == nil {
		return h
	}
	s := r.source(layer, h)
	if s == nil {
		return h
	}
	edit, err := r.proj[layer].MatVecT(s)
	if err != nil {
		return h
	}
	out := make([]float32, len(h))
	for i := range h {
		out[i] = h[i] + edit[i]
	}
	return out
}

// source computes W*h + b, minus R*h in the tied form.
func (r *reftIntervention) source(layer int, h []float32) []float32 {
	s, err := r.weight[layer].MatVec(h)
	if err != nil {
		return nil
	}
	for i := range s {
		s[i] += r.bias[layer].Data[i]
	}
	if r.tied {
		rh, err := r.proj[layer].MatVec(h)
		if err != nil {
			return nil
		}
		for i := range s {
			s[i] -= rh[i]
		}
	}
	return s
}

func (r *reftIntervention) BackwardAfter(layer int, h, delta []float32) []float32 {
	if r.proj[layer] == nil {
		return delta
	}
	s := r.source(layer, h)
	if s == nil {
		return delta
	}
	// dL/ds = R * delta
	ds, err := r.proj[layer].MatVec(delta)
	if err != nil {
		return delta
	}

	// dW += ds (outer) h; db += ds
	if err := r.weight[layer].AccumulateOuter(ds, h); err != nil {
		return delta
	}
	if err := r.bias[layer].AccumulateVec(ds); err != nil {
		return delta
	}

	// dR += s (outer) delta, minus (R*delta) (outer) h in the tied form.
	if err := r.proj[layer].AccumulateOuter(s, delta); err != nil {
		return delta
	}
	if r.tied {
		r.proj[layer].EnsureGrad()
		cols := r.proj[layer].Shape[1]
		for i, dsi := range ds {
			row := r.proj[layer].Grad[i*cols : (i+1)*cols]
			for j, hj := range h {
				row[j] -= dsi * hj
			}
		}
	}

	// dh = delta + W^T(R*delta) - R^T(R*delta) (subtraction only when tied).
	wt, err := r.weight[layer].MatVecT(ds)
	if err != nil {
		return delta
	}
	out := make([]float32, len(delta))
	copy(out, delta)
	for i := range out {
		out[i] += wt[i]
	}
	if r.tied {
		rt, err := r.proj[layer].MatVecT(ds)
		if err != nil {
			return delta
		}
		for i := range out {
			out[i] -= rt[i]
		}
	}
	return out
}

func (r *reftIntervention) BackwardAdjust(_ int, _, _ []float32) []float32 { return nil }
