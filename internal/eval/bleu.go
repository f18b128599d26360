package eval

import (
	"math"
	"strings"
)

const bleuMaxOrder = 4

// BLEUAccumulator aggregates corpus-level BLEU: clipped n-gram matches and
// totals are summed across all items and combined once at the end, matching
// the standard corpus scoring convention and keeping the result independent
// of item order.
type BLEUAccumulator struct {
	matches [bleuMaxOrder]int
	totals  [bleuMaxOrder]int
	hypLen  int
	refLen  int
}

// Add scores one hypothesis/reference pair into the accumulator.
func (a *BLEUAccumulator) Add(hypothesis, reference string) {
	hyp := strings.Fields(normalizeText(hypothesis))
	ref := strings.Fields(normalizeText(reference))
	a.hypLen += len(hyp)
	a.refLen += len(ref)

	for order := 1; order <= bleuMaxOrder; order++ {
		hypGrams := ngramCounts(hyp, order)
		refGrams := ngramCounts(ref, order)
		for gram, count := range hypGrams {
			a.totals[order-1] += count
			if refCount, ok := refGrams[gram]; ok {
				if count < refCount {
					a.matches[order-1] += count
				} else {
					a.matches[order-1] += refCount
				}
			}
		}
	}
}

// BLEU returns the corpus score in [0,1]: geometric mean of clipped n-gram
// precisions up to order 4 times the brevity penalty. A zero precision at
// any order yields zero, per the unsmoothed convention.
func (a *BLEUAccumulator) BLEU() float64 {
	if a.hypLen == 0 || a.refLen == 0 {
		return 0
	}
	var logSum float64
	for order := 0; order < bleuMaxOrder; order++ {
		if a.totals[order] == 0 || a.matches[order] == 0 {
			return 0
		}
		logSum += math.Log(float64(a.matches[order]) / float64(a.totals[order]))
	}
	score := math.Exp(logSum / bleuMaxOrder)

	if a.hypLen < a.refLen {
		score *= math.Exp(1 - float64(a.refLen)/float64(a.hypLen))
	}
	return score
}

func ngramCounts(words []string, order int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+order <= len(words); i++ {
		counts[strings.Join(words[i:i+order], "\x00")]++
	}
	return counts
}
