package model

import (
	"fmt"
	"math"
	"strings"

	"speechtune/internal/errs"
	"speechtune/internal/tensor"
)

// Size selects one of the pretrained base model variants.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Sizes lists every supported model size.
func Sizes() []Size {
	return []Size{SizeSmall, SizeMedium, SizeLarge}
}

// ParseSize validates a model size token against the closed set.
func ParseSize(raw string) (Size, error) {
	switch Size(strings.ToLower(strings.TrimSpace(raw))) {
	case SizeSmall:
		return SizeSmall, nil
	case SizeMedium:
		return SizeMedium, nil
	case SizeLarge:
		return SizeLarge, nil
	default:
		return "", errs.Wrap(errs.ErrConfig, "model", "parse size",
			fmt.Sprintf("unknown model size %q (expected small, medium, or large)", raw), nil)
	}
}

type arch struct {
	layers int
	hidden int
	vocab  int
}

func archOf(size Size) arch {
	switch size {
	case SizeMedium:
		return arch{layers: 6, hidden: 48, vocab: 48}
	case SizeLarge:
		return arch{layers: 8, hidden: 64, vocab: 64}
	default:
		return arch{layers: 4, hidden: 32, vocab: 32}
	}
}

// Layer is one frozen encoder block: an affine projection followed by tanh.
type Layer struct {
	Index  int
	Weight *tensor.Tensor
	Bias   *tensor.Tensor
}

// Model is a frozen pretrained speech encoder stand-in. It is loaded once per
// invocation and passed explicitly to strategy construction; there is no
// process-wide singleton.
type Model struct {
	ID     string
	Size   Size
	Hidden int
	Vocab  []string
	Layers []*Layer
	Head   *tensor.Tensor
}

// Hook lets a strategy participate in the forward pass at two points:
// editing a layer's pre-activation given the layer input, and editing the
// post-activation hidden state. Returned slices replace the originals.
type Hook interface {
	Adjust(layer int, x, pre []float32) []float32
	After(layer int, h []float32) []float32
}

// Activations captures the per-layer tensors a forward pass produced, in the
// form the training backward pass needs.
type Activations struct {
	// Inputs[i] is the hidden state entering layer i.
	Inputs [][]float32
	// Pre[i] is the pre-activation W*x+b of layer i.
	Pre [][]float32
	// Hidden[i] is tanh(Pre[i]) before any hook edit.
	Hidden [][]float32
	// Out is the final hidden state after the last layer and hook.
	Out []float32
}

// Synthetic builds a deterministic model for the given size. Real pretrained
// weights are outside this repository; the synthetic variant stands in for
// them with seeded values so runs are reproducible end to end. The seed is
// part of the identity: two seeds produce different frozen weights, so they
// must never pass for the same base model.
func Synthetic(size Size, seed int64) *Model {
	a := archOf(size)
	m := &Model{
		ID:     fmt.Sprintf("speechtune-base-%s-s%d", size, seed),
		Size:   size,
		Hidden: a.hidden,
		Vocab:  builtinVocab(a.vocab),
	}
	for i := 0; i < a.layers; i++ {
		m.Layers = append(m.Layers, &Layer{
			Index:  i,
			Weight: tensor.Randn(fmt.Sprintf("encoder.%d.weight", i), seed, a.hidden, a.hidden),
			Bias:   tensor.Randn(fmt.Sprintf("encoder.%d.bias", i), seed, a.hidden),
		})
	}
	m.Head = tensor.Randn("head.weight", seed, a.vocab, a.hidden)
	return m
}

// Parameters returns every base parameter in a stable order.
func (m *Model) Parameters() []*tensor.Tensor {
	params := make([]*tensor.Tensor, 0, len(m.Layers)*2+1)
	for _, l := range m.Layers {
		params = append(params, l.Weight, l.Bias)
	}
	params = append(params, m.Head)
	return params
}

// FoldFeatures folds an arbitrary-length feature vector into the model's
// hidden width by wrapping accumulation, then normalizes to unit scale.
func (m *Model) FoldFeatures(features []float32) []float32 {
	out := make([]float32, m.Hidden)
	if len(features) == 0 {
		return out
	}
	for i, v := range features {
		out[i%m.Hidden] += v
	}
	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range out {
			out[i] = float32(float64(out[i]) / norm)
		}
	}
	return out
}

// Forward runs folded features through the frozen encoder, applying the hook
// after each layer when one is attached.
func (m *Model) Forward(features []float32, hook Hook) (*Activations, error) {
	x := m.FoldFeatures(features)
	acts := &Activations{
		Inputs: make([][]float32, len(m.Layers)),
		Pre:    make([][]float32, len(m.Layers)),
		Hidden: make([][]float32, len(m.Layers)),
	}
	for i, l := range m.Layers {
		acts.Inputs[i] = x
		pre, err := l.Weight.MatVec(x)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		for j := range pre {
			pre[j] += l.Bias.Data[j]
		}
		if hook != nil {
			pre = hook.Adjust(i, x, pre)
		}
		acts.Pre[i] = pre
		h := make([]float32, len(pre))
		for j, v := range pre {
			h[j] = float32(math.Tanh(float64(v)))
		}
		acts.Hidden[i] = h
		if hook != nil {
			h = hook.After(i, h)
		}
		x = h
	}
	acts.Out = x
	return acts, nil
}

// builtinVocab returns the first n entries of the embedded token list,
// cycling with numeric suffixes when n exceeds the list.
func builtinVocab(n int) []string {
	base := []string{
		"the", "and", "you", "that", "was", "for", "are", "with",
		"his", "they", "one", "have", "this", "from", "had", "not",
		"but", "what", "all", "were", "when", "your", "can", "said",
		"there", "use", "each", "which", "she", "how", "their", "will",
		"other", "about", "out", "many", "then", "them", "these", "some",
		"her", "would", "make", "like", "him", "into", "time", "has",
		"look", "two", "more", "write", "see", "number", "way", "could",
		"people", "than", "first", "water", "been", "call", "who", "oil",
	}
	vocab := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(base) {
			vocab[i] = base[i]
		} else {
			vocab[i] = fmt.Sprintf("tok%d", i)
		}
	}
	return vocab
}
