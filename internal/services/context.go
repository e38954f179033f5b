package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
	fileKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// WithRunID tags ctx with the pipeline run id.
func WithRunID(ctx context.Context, id string) context.Context { return withValue(ctx, runIDKey, id) }

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, runIDKey) }

// WithStage tags ctx with the pipeline stage (ingest, extract, organize, export).
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey) }

// WithFile tags ctx with the base name of the document being processed.
func WithFile(ctx context.Context, name string) context.Context { return withValue(ctx, fileKey, name) }

func FileFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, fileKey) }

// WithRequestID tags ctx with a correlation id. The LLM transport sends it as
// X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, requestIDKey) }

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}
