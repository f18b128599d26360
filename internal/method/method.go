package method

import (
	"fmt"
	"strings"

	"speechtune/internal/errs"
	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

// Method identifies a fine-tuning strategy. The set is closed; dispatch is a
// tagged variant rather than open plugin registration.
type Method string

const (
	LoRA   Method = "lora"
	LoReFT Method = "loreft"
	DiReFT Method = "direft"
	Full   Method = "full"
)

// Methods lists every supported fine-tuning method.
func Methods() []Method {
	return []Method{LoRA, LoReFT, DiReFT, Full}
}

// Parse validates a method token against the closed set.
func Parse(raw string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case LoRA:
		return LoRA, nil
	case LoReFT:
		return LoReFT, nil
	case DiReFT:
		return DiReFT, nil
	case Full:
		return Full, nil
	default:
		return "", errs.Wrap(errs.ErrConfig, "method", "parse",
			fmt.Sprintf("unknown method %q (expected lora, loreft, direft, or full)", raw), nil)
	}
}

// Options carries the hyperparameters that shape strategy attachment.
type Options struct {
	// Rank is the low-rank dimension for lora/loreft/direft.
	Rank int
	// Alpha scales the LoRA update; the effective scale is Alpha/Rank.
	Alpha float64
	// Layers selects which encoder layers receive adapters or
	// interventions. Empty means every layer.
	Layers []int
	// Positions is the intervention position budget recorded for the
	// external runtime; it is carried opaquely through checkpoints.
	Positions int
	// TiedProjection controls whether the representation intervention
	// subtracts the projected base state (LoReFT form). DiReFT runs
	// untied unless this flag forces otherwise.
	TiedProjection bool
	// Seed drives deterministic adapter initialization.
	Seed int64
}

// Strategy is the common contract every fine-tuning variant implements:
// attach to a frozen model, expose trainable parameters, and participate in
// the forward/backward pass through hooks.
type Strategy interface {
	Method() Method
	// TrainsBase reports whether base model parameters are trainable.
	TrainsBase() bool
	// TrainableParameters returns the parameters the optimizer updates,
	// in a stable order.
	TrainableParameters() []*tensor.Tensor
	// Adjust edits a layer's pre-activation given the layer input.
	Adjust(layer int, x, pre []float32) []float32
	// After edits a layer's post-activation hidden state.
	After(layer int, h []float32) []float32
	// BackwardAfter accumulates gradients for the After edit and maps the
	// output delta back to the pre-hook hidden state. h is the hidden
	// state the hook received.
	BackwardAfter(layer int, h, delta []float32) []float32
	// BackwardAdjust accumulates gradients for the Adjust edit and
	// returns any extra delta contribution to the layer input.
	BackwardAdjust(layer int, x, dpre []float32) []float32
}

// Attach constructs the strategy for the requested method and wires it to
// the model. Hyperparameter validation happens here, before any training
// state is built.
func Attach(m *model.Model, mth Method, opts Options) (Strategy, error) {
	layers, err := resolveLayers(m, opts.Layers)
	if err != nil {
		return nil, err
	}
	switch mth {
	case Full:
		return newFull(m), nil
	case LoRA:
		if err := validateRank(m, mth, opts.Rank); err != nil {
			return nil, err
		}
		return newLoRA(m, layers, opts), nil
	case LoReFT, DiReFT:
		if err := validateRank(m, mth, opts.Rank); err != nil {
			return nil, err
		}
		tied := opts.TiedProjection || mth == LoReFT
		return newReFT(m, mth, layers, opts, tied), nil
	default:
		return nil, errs.Wrap(errs.ErrConfig, "method", "attach",
			fmt.Sprintf("unknown method %q", mth), nil)
	}
}

func validateRank(m *model.Model, mth Method, rank int) error {
	if rank < 1 {
		return errs.Wrap(errs.ErrConfig, "method", "attach",
			fmt.Sprintf("%s requires rank >= 1, got %d", mth, rank), nil)
	}
	if rank > m.Hidden {
		return errs.Wrap(errs.ErrConfig, "method", "attach",
			fmt.Sprintf("%s rank %d exceeds hidden width %d", mth, rank, m.Hidden), nil)
	}
	return nil
}

func resolveLayers(m *model.Model, requested []int) ([]int, error) {
	if len(requested) == 0 {
		all := make([]int, len(m.Layers))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]struct{}, len(requested))
	layers := make([]int, 0, len(requested))
	for _, idx := range requested {
		if idx < 0 || idx >= len(m.Layers) {
			return nil, errs.Wrap(errs.ErrConfig, "method", "attach",
				fmt.Sprintf("layer %d out of range (model has %d layers)", idx, len(m.Layers)), nil)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		layers = append(layers, idx)
	}
	return layers, nil
}
