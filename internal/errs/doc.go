// Package errs defines the error taxonomy shared by every speechtune
// component.
//
// Four sentinel errors cover the failure classes the CLI can surface:
// configuration problems caught before any expensive load, fatal training
// step failures, checkpoint/method disagreements at evaluation time, and
// unusable test sets. Wrap tags an error with one of these sentinels plus
// component context so callers can classify with errors.Is while keeping a
// readable message.
package errs
