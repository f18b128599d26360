package training

import (
	"hash/fnv"
	"math"
	"strings"

	"speechtune/internal/method"
	"speechtune/internal/model"
)

// textTarget maps reference text into a vocabulary-space target vector:
// a normalized bag of words where out-of-vocabulary words hash to a stable
// slot. This is the supervision proxy the local runtime trains against.
func textTarget(text string, vocab []string) []float32 {
	target := make([]float32, len(vocab))
	index := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		index[tok] = i
	}
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		if i, ok := index[w]; ok {
			target[i]++
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		target[int(h.Sum32())%len(vocab)]++
	}
	var norm float64
	for _, v := range target {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range target {
			target[i] = float32(float64(target[i]) / norm)
		}
	}
	return target
}

// lossAndBackward computes the scalar loss for one example and accumulates
// gradients through the strategy's hooks and, for full tuning, the base
// parameters. It is a manual backward pass over the affine+tanh stack.
func lossAndBackward(m *model.Model, strat method.Strategy, acts *model.Activations, target []float32) (float64, error) {
	logits, err := m.Head.MatVec(acts.Out)
	if err != nil {
		return 0, err
	}

	n := float32(len(logits))
	dlogits := make([]float32, len(logits))
	var loss float64
	for i := range logits {
		diff := logits[i] - target[i]
		loss += 0.5 * float64(diff) * float64(diff)
		dlogits[i] = diff / n
	}
	loss /= float64(len(logits))

	if strat.TrainsBase() {
		if err := m.Head.AccumulateOuter(dlogits, acts.Out); err != nil {
			return 0, err
		}
	}
	delta, err := m.Head.MatVecT(dlogits)
	if err != nil {
		return 0, err
	}

	for i := len(m.Layers) - 1; i >= 0; i-- {
		delta = strat.BackwardAfter(i, acts.Hidden[i], delta)

		// Through tanh: dpre = delta * (1 - h^2), h recorded pre-hook.
		dpre := make([]float32, len(delta))
		for j := range delta {
			h := float64(acts.Hidden[i][j])
			dpre[j] = delta[j] * float32(1-h*h)
		}

		layer := m.Layers[i]
		if strat.TrainsBase() {
			if err := layer.Weight.AccumulateOuter(dpre, acts.Inputs[i]); err != nil {
				return 0, err
			}
			if err := layer.Bias.AccumulateVec(dpre); err != nil {
				return 0, err
			}
		}

		extra := strat.BackwardAdjust(i, acts.Inputs[i], dpre)

		next, err := layer.Weight.MatVecT(dpre)
		if err != nil {
			return 0, err
		}
		if extra != nil {
			for j := range next {
				next[j] += extra[j]
			}
		}
		delta = next
	}
	return loss, nil
}
