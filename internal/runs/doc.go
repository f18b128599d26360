// Package runs persists training and evaluation history in SQLite.
//
// Each CLI invocation is one row: begun as running, finished as completed
// with its corpus metric or failed with the surfaced error. The database is
// a convenience record, not coordination state; a file lock keeps concurrent
// invocations from writing the same database.
package runs
