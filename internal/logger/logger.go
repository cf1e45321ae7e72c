// Package logger wires up structured, JSON-formatted logging on top of
// log/slog and carries a request-scoped trace ID through context.Context
// so every log line emitted while handling one originating event can be
// correlated after the fact.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type contextKey int

const traceIDContextKey contextKey = iota

// Init builds the process-wide logger for service, installs it as the
// log/slog default (so bare slog.Info/slog.Error calls also emit
// structured JSON), and returns it for callers that want to pass it
// explicitly instead of relying on the package default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	base := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(base)
	return base
}

// WithTraceID attaches a trace ID to ctx for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey, traceID)
}

// TraceID reads the trace ID attached by WithTraceID, or "" if none was set.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDContextKey).(string)
	return v
}

// NewTraceID derives a trace ID from a caller-supplied tag and a
// timestamp: "{tag}-{unixNano}". No UUID dependency is needed since
// uniqueness only has to hold within one process's lifetime.
func NewTraceID(tag string, at time.Time) string {
	return fmt.Sprintf("%s-%d", tag, at.UnixNano())
}

// Attrs returns the slog attributes a call site should splice in to carry
// ctx's trace ID, if any was set:
//
//	logger.Info("order placed", logger.Attrs(ctx)...)
func Attrs(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}
