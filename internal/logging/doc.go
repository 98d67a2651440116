// Package logging assembles structured slog loggers and formatting helpers used
// across courier.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so the upload loop can tag log
// lines with the file being transferred. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
