package eval_test

import (
	"math"
	"math/rand"
	"testing"

	"speechtune/internal/eval"
)

func TestBLEUPerfectMatch(t *testing.T) {
	var acc eval.BLEUAccumulator
	acc.Add("the cat sat on the mat today", "the cat sat on the mat today")
	if got := acc.BLEU(); math.Abs(got-1) > 1e-12 {
		t.Fatalf("BLEU = %v, want 1", got)
	}
}

func TestBLEUNoOverlap(t *testing.T) {
	var acc eval.BLEUAccumulator
	acc.Add("x y z w", "a b c d")
	if got := acc.BLEU(); got != 0 {
		t.Fatalf("BLEU = %v, want 0", got)
	}
}

func TestBLEUBrevityPenalty(t *testing.T) {
	var full eval.BLEUAccumulator
	full.Add("the cat sat on the mat", "the cat sat on the mat")
	var short eval.BLEUAccumulator
	short.Add("the cat sat on", "the cat sat on the mat")
	if short.BLEU() >= full.BLEU() {
		t.Fatalf("short hypothesis should be penalized: short=%v full=%v", short.BLEU(), full.BLEU())
	}
}

func TestBLEUOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"the cat sat on the mat", "the cat sat on the mat"},
		{"dogs run fast over grass", "dogs run quickly over grass"},
		{"hello there general", "hello there general kenobi"},
		{"a b c d e", "a b c d e"},
		{"one two three four", "one two three four five"},
	}
	var base eval.BLEUAccumulator
	for _, p := range pairs {
		base.Add(p[0], p[1])
	}
	want := base.BLEU()

	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([][2]string(nil), pairs...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		var acc eval.BLEUAccumulator
		for _, p := range shuffled {
			acc.Add(p[0], p[1])
		}
		if got := acc.BLEU(); math.Abs(got-want) > 1e-12 {
			t.Fatalf("permuted BLEU = %v, want %v", got, want)
		}
	}
}

func TestBLEUEmptyCorpus(t *testing.T) {
	var acc eval.BLEUAccumulator
	if got := acc.BLEU(); got != 0 {
		t.Fatalf("empty corpus BLEU = %v, want 0", got)
	}
}
