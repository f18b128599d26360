package tensor

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// Tensor is a named float32 tensor with row-major data. Grad is allocated
// lazily by EnsureGrad and holds accumulated gradients for trainable tensors.
type Tensor struct {
	Name  string    `json:"name" msgpack:"name"`
	Shape []int     `json:"shape" msgpack:"shape"`
	Data  []float32 `json:"data" msgpack:"data"`
	Grad  []float32 `json:"-" msgpack:"-"`
}

// New creates a zero-filled tensor with the given name and shape.
func New(name string, shape ...int) *Tensor {
	n := numel(shape)
	return &Tensor{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

// Randn creates a tensor initialized from a deterministic normal draw scaled
// by 1/sqrt(fan-in). The stream is seeded from the tensor name and the run
// seed so identical configurations produce identical initial values.
func Randn(name string, seed int64, shape ...int) *Tensor {
	t := New(name, shape...)
	fanIn := 1
	if len(shape) > 1 {
		fanIn = shape[len(shape)-1]
	}
	scale := 1.0 / math.Sqrt(float64(fanIn))
	rng := rand.New(rand.NewSource(seed ^ int64(nameHash(name))))
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64() * scale)
	}
	return t
}

func nameHash(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int {
	return numel(t.Shape)
}

// Rows returns the leading dimension for a matrix tensor, or 1 for vectors.
func (t *Tensor) Rows() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[0]
}

// Cols returns the trailing dimension.
func (t *Tensor) Cols() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

// Clone returns a deep copy sharing no storage with the receiver.
func (t *Tensor) Clone() *Tensor {
	c := New(t.Name, t.Shape...)
	copy(c.Data, t.Data)
	return c
}

// EnsureGrad allocates the gradient buffer when absent.
func (t *Tensor) EnsureGrad() {
	if t.Grad == nil {
		t.Grad = make([]float32, len(t.Data))
	}
}

// ZeroGrad clears accumulated gradients.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// MatVec computes W*x for a [out,in] matrix, appending the result into a new
// slice of length out.
func (t *Tensor) MatVec(x []float32) ([]float32, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("matvec: %s is not a matrix", t.Name)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	if len(x) != cols {
		return nil, fmt.Errorf("matvec: %s expects input %d, got %d", t.Name, cols, len(x))
	}
	out := make([]float32, rows)
	for r := 0; r < rows; r++ {
		row := t.Data[r*cols : (r+1)*cols]
		var sum float32
		for c, v := range row {
			sum += v * x[c]
		}
		out[r] = sum
	}
	return out, nil
}

// MatVecT computes transpose(W)*y for a [out,in] matrix.
func (t *Tensor) MatVecT(y []float32) ([]float32, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("matvecT: %s is not a matrix", t.Name)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	if len(y) != rows {
		return nil, fmt.Errorf("matvecT: %s expects input %d, got %d", t.Name, rows, len(y))
	}
	out := make([]float32, cols)
	for r := 0; r < rows; r++ {
		row := t.Data[r*cols : (r+1)*cols]
		yr := y[r]
		for c, v := range row {
			out[c] += v * yr
		}
	}
	return out, nil
}

// AccumulateOuter adds a*b^T into the gradient buffer of a [len(a),len(b)]
// matrix tensor.
func (t *Tensor) AccumulateOuter(a, b []float32) error {
	if len(t.Shape) != 2 || t.Shape[0] != len(a) || t.Shape[1] != len(b) {
		return fmt.Errorf("outer: shape mismatch for %s: %v vs [%d %d]", t.Name, t.Shape, len(a), len(b))
	}
	t.EnsureGrad()
	cols := t.Shape[1]
	for r, av := range a {
		row := t.Grad[r*cols : (r+1)*cols]
		for c, bv := range b {
			row[c] += av * bv
		}
	}
	return nil
}

// AccumulateVec adds v into the gradient buffer of a vector tensor.
func (t *Tensor) AccumulateVec(v []float32) error {
	if len(v) != len(t.Data) {
		return fmt.Errorf("accumulate: length mismatch for %s: %d vs %d", t.Name, len(t.Data), len(v))
	}
	t.EnsureGrad()
	for i, val := range v {
		t.Grad[i] += val
	}
	return nil
}

// ApproxEqual reports whether two tensors hold the same values within tol.
func ApproxEqual(a, b *Tensor, tol float64) bool {
	if a == nil || b == nil || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if math.Abs(float64(a.Data[i])-float64(b.Data[i])) > tol {
			return false
		}
	}
	return true
}

// Finite reports whether every element is a finite number.
func Finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
