// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides console and JSON handlers, attr helpers so call sites avoid
// importing slog directly, and context carriers that stamp job, stage, and
// request identifiers onto log records emitted inside the pipeline.
package logging
