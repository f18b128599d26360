// Package eval loads a tuned model and scores it against a held-out set.
//
// The pipeline decodes each test item, accumulates prediction records, and
// computes one corpus-level scalar: word error rate for transcription or
// BLEU for speech translation. Both metrics aggregate counts across the
// whole corpus and divide once at the end, so item order never changes the
// result.
package eval
