// Package checkpoint persists trainable parameter snapshots plus the
// metadata needed to reconstruct them.
//
// A checkpoint directory holds two files: metadata.json (method, base model
// identity, hyperparameters, step) and weights.bin (msgpack-encoded named
// tensors). Restore refuses to rebuild a strategy whose recorded method or
// base model disagrees with what evaluation requested; that mismatch is the
// one invariant this package exists to enforce.
package checkpoint
