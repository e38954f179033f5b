package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to the terminal handler and to the log file
// handler. Either side may reject a level independently.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

// newTeeHandler returns console alone when there is no file handler.
func newTeeHandler(console, file slog.Handler) slog.Handler {
	if file == nil {
		return console
	}
	return teeHandler{console: console, file: file}
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.console.Enabled(ctx, level) || t.file.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var consoleErr, fileErr error
	if t.console.Enabled(ctx, record.Level) {
		consoleErr = t.console.Handle(ctx, record.Clone())
	}
	if t.file.Enabled(ctx, record.Level) {
		fileErr = t.file.Handle(ctx, record)
	}
	return errors.Join(consoleErr, fileErr)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{console: t.console.WithAttrs(attrs), file: t.file.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{console: t.console.WithGroup(name), file: t.file.WithGroup(name)}
}
