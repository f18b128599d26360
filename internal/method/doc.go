// Package method implements the fine-tuning strategy dispatcher.
//
// The method set is closed: full-parameter tuning, LoRA low-rank adapters,
// and the LoReFT/DiReFT representation interventions. Attach validates the
// hyperparameters a method needs and wires the chosen variant to a frozen
// model before any training state exists, so bad requests fail fast.
//
// Every variant satisfies the same Strategy contract: stable trainable
// parameter names, deterministic seeded initialization, and forward/backward
// hooks. The training driver and checkpoint layer treat all methods
// uniformly through it.
package method
