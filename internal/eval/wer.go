package eval

import "strings"

// WERAccumulator aggregates corpus-level word error rate: edit distance and
// reference length are summed across all items and divided once at the end,
// so the result does not depend on item order.
type WERAccumulator struct {
	distance int
	refWords int
}

// Add scores one hypothesis/reference pair into the accumulator.
func (a *WERAccumulator) Add(hypothesis, reference string) {
	hyp := strings.Fields(normalizeText(hypothesis))
	ref := strings.Fields(normalizeText(reference))
	a.distance += levenshtein(hyp, ref)
	a.refWords += len(ref)
}

// WER returns total edit distance over total reference length.
func (a *WERAccumulator) WER() float64 {
	if a.refWords == 0 {
		return 0
	}
	return float64(a.distance) / float64(a.refWords)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// levenshtein computes word-level edit distance with unit costs.
func levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
