package method

import (
	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

// fullTune marks every base parameter trainable. No structural change; the
// hooks are pass-through and gradient accumulation for base weights happens
// in the training backward pass.
type fullTune struct {
	params []*tensor.Tensor
}

func newFull(m *model.Model) *fullTune {
	return &fullTune{params: m.Parameters()}
}

func (f *fullTune) Method() Method   { return Full }
func (f *fullTune) TrainsBase() bool { return true }

func (f *fullTune) TrainableParameters() []*tensor.Tensor {
	return append([]*tensor.Tensor(nil), f.params...)
}

func (f *fullTune) Adjust(_ int, _, pre []float32) []float32 { return pre }

func (f *fullTune) After(_ int, h []float32) []float32 { return h }

func (f *fullTune) BackwardAfter(_ int, _, delta []float32) []float32 { return delta }

func (f *fullTune) BackwardAdjust(_ int, _, _ []float32) []float32 { return nil }
