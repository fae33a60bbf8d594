// Package logger installs the process-wide slog handler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Init installs a text or JSON handler writing to w (stdout when nil)
func Init(level slog.Level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// WithTraceID stores a request trace ID on the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID stored by WithTraceID
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithContext returns the default logger annotated with the trace ID, if any
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := TraceID(ctx); id != "" {
		l = l.With(slog.String("trace_id", id))
	}
	return l
}
