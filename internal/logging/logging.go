// Package logging wraps log/slog — the teacher's own logging library of
// choice (see cmd/root.go's slog.SetLogLoggerLevel) — with secret redaction,
// trace-id propagation, and an audit-log helper per spec §4.7.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type traceIDKey struct{}

// WithTraceID returns a context carrying id, so that log records emitted
// through a logger taken from this context (via L) are stamped
// with it.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceID extracts the trace id stashed by WithTraceID, or "" if absent.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey{}).(string)
	return v
}

// Init installs a redacting slog handler as the default logger. jsonOutput
// selects JSON records; otherwise a text handler is used, mirroring the
// teacher's default text handler. cmd/root.go always passes false, so every
// command logs text.
func Init(jsonOutput bool, level slog.Level) {
	var base slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		base = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		base = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(&redactingHandler{next: base}))
}

// L returns a logger that stamps the trace id from ctx, if any, plus
// component, into every record.
func L(ctx context.Context, component string) *slog.Logger {
	l := slog.Default().With("component", component)
	if id := TraceID(ctx); id != "" {
		l = l.With("traceId", id)
	}
	return l
}

// Audit emits a first-class audit log record: an info-level record with
// audit=true and the operation name stamped into its attributes, per §4.7.
func Audit(ctx context.Context, component, operation string, metadata map[string]any) {
	args := make([]any, 0, 4+2*len(metadata))
	args = append(args, "audit", true, "operation", operation)
	for k, v := range metadata {
		args = append(args, k, v)
	}
	L(ctx, component).Info("audit: "+operation, args...)
}
