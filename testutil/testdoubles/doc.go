// Package testdoubles provides test doubles for the simulator's boundary
// contracts: a recording sender with scriptable failures, a manual clock
// for deterministic time control, and logger and metrics spies for
// asserting on observability instrumentation.
package testdoubles
