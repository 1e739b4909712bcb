// Package metrics exposes step accounting counters. Callers depend on the
// Recorder interface; NoopRecorder is used when metrics are not wired.
package metrics
