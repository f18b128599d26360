package method

import (
	"fmt"

	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

// loraAdapter inserts trainable low-rank matrices alongside selected frozen
// layers. The forward pass adds scale*B(A*x) to the frozen pre-activation;
// B starts at zero so the attached model is initially identical to the base.
type loraAdapter struct {
	scale float32
	// down/up are indexed by layer; unselected layers hold nil.
	down []*tensor.Tensor // A: [rank, hidden]
	up   []*tensor.Tensor // B: [hidden, rank]
}

func newLoRA(m *model.Model, layers []int, opts Options) *loraAdapter {
	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = float64(opts.Rank)
	}
	a := &loraAdapter{
		scale: float32(alpha / float64(opts.Rank)),
		down:  make([]*tensor.Tensor, len(m.Layers)),
		up:    make([]*tensor.Tensor, len(m.Layers)),
	}
	for _, idx := range layers {
		a.down[idx] = tensor.Randn(fmt.Sprintf("lora.%d.down", idx), opts.Seed, opts.Rank, m.Hidden)
		a.up[idx] = tensor.New(fmt.Sprintf("lora.%d.up", idx), m.Hidden, opts.Rank)
	}
	return a
}

func (a *loraAdapter) Method() Method   { return LoRA }
func (a *loraAdapter) TrainsBase() bool { return false }

func (a *loraAdapter) TrainableParameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for i := range a.down {
		if a.down[i] != nil {
			params = append(params, a.down[i], a.up[i])
		}
	}
	return params
}

func (a *loraAdapter) Adjust(layer int, x, pre []float32) []float32 {
	if a.down[layer] == nil {
		return pre
	}
	u, err := a.down[layer].MatVec(x)
	if err != nil {
		return pre
	}
	v, err := a.up[layer].MatVec(u)
	if err != nil {
		return pre
	}
	out := make([]float32, len(pre))
	for i := range pre {
		out[i] = pre[i] + a.scale*v[i]
	}
	return out
}

func (a *loraAdapter) After(_ int, h []float32) []float32 { return h }

func (a *loraAdapter) BackwardAfter(_ int, _, delta []float32) []float32 { return delta }

func (a *loraAdapter) BackwardAdjust(layer int, x, dpre []float32) []float32 {
	if a.down[layer] == nil {
		return nil
	}
	u, err := a.down[layer].MatVec(x) // A*x
	if err != nil {
		return nil
	}
	scaled := make([]float32, len(dpre))
	for i, v := range dpre {
		scaled[i] = a.scale * v
	}
	// dB += scale*dpre (outer) A*x
	if err := a.up[layer].AccumulateOuter(scaled, u); err != nil {
		return nil
	}
	// dA += (B^T scale*dpre) (outer) x
	bt, err := a.up[layer].MatVecT(scaled)
	if err != nil {
		return nil
	}
	if err := a.down[layer].AccumulateOuter(bt, x); err != nil {
		return nil
	}
	// Extra input delta through the adapter branch: A^T(B^T scale*dpre).
	dx, err := a.down[layer].MatVecT(bt)
	if err != nil {
		return nil
	}
	return dx
}
