package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Routevox tracer.
const tracerName = "github.com/routevox/routevox"

// Tracer returns the Routevox [trace.Tracer] from the globally registered
// provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// SessionLogger returns an [slog.Logger] carrying the voice session ID plus,
// when ctx holds an active span, the trace correlation attributes. Session
// lifecycle logs all go through this so a session can be followed across the
// WebSocket handler and the REST action endpoints.
func SessionLogger(ctx context.Context, sessionID string) *slog.Logger {
	l := slog.Default().With(slog.String("session_id", sessionID))
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
