// Package dataset reads the JSONL train/test manifests that feed the
// training driver and the evaluation pipeline.
//
// A record pairs an audio feature reference with its transcript (and,
// for speech translation, a translation reference). Feature vectors are
// either inline or raw little-endian float32 files resolved relative to
// the manifest.
package dataset
