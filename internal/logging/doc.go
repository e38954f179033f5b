// Package logging assembles the structured slog loggers used by coworker.
//
// It owns the console and JSON handlers, the level and output plumbing, and
// context helpers that tag log lines with the active run id, pipeline stage,
// file, and correlation id. Terminal output and the workspace log file are
// fed by one logger through a fan-out handler so every line lands in both.
//
// Warnings and errors should go through WarnWithContext and ErrorWithContext
// so they always carry event_type, error_hint and impact fields.
package logging
