// Package model represents the frozen pretrained speech model that tuning
// strategies attach to.
//
// The model is an ordered stack of affine+tanh encoder layers plus a scoring
// head, addressed by stable parameter names (encoder.N.weight, head.weight).
// It is loaded once per invocation, either from a base-model directory or as
// a deterministic synthetic stand-in, and handed explicitly to strategy
// construction. Forward exposes per-layer activations and a post-layer Hook
// so representation-editing strategies can intervene without the model
// knowing about them.
package model
