// Package training runs the fixed-step fit loop over an attached strategy.
//
// One optimizer update per batch, checkpoint persistence on a configurable
// interval, no retries: any step failure aborts the run and reports the step
// index. The backward pass is a manual gradient computation over the frozen
// affine+tanh stack; strategies contribute their own gradients through the
// hook contract in the method package.
package training
