// Package metrics implements the in-process counters the engine increments
// on every auth operation outcome. Counters are lock-free and reading a
// snapshot never pauses writers.
package metrics
