// Package logging wires slog loggers for the daemon and CLI.
//
// It provides console and JSON handlers, typed attribute helpers, and
// context carriers that stamp job id, stage, and correlation id onto every
// record emitted inside a stage execution.
package logging
