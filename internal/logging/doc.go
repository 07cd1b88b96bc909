// Package logging assembles structured slog loggers and formatting helpers used
// across xnatflow.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so tracker and lifecycle code can
// automatically tag log lines with run IDs, remote operations, and correlation
// IDs. Run loggers tee console output into a per-run JSON log file; that file
// is the log location referenced when a run is marked failed. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing guarantees as the rest of the system.
package logging
