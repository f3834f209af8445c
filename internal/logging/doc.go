// Package logging assembles structured slog loggers and formatting helpers used
// across podigest.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so lifecycle code can tag log
// lines with episode IDs, stages, and scheduler run IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
