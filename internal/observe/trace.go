package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope under which elocute spans are
// created.
const tracerName = "github.com/rafizsust/elocute"

// Tracer resolves the elocute tracer from the globally registered
// [trace.TracerProvider] at each call.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a child span named name under the span in ctx, or a root
// span when ctx carries none. The caller owns span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID reports the hex trace ID of the span in ctx; the trace ID
// doubles as the request correlation identifier. Empty when ctx carries no
// valid trace.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default [slog.Logger] bound to the trace_id and span_id
// of the span in ctx, or unadorned when ctx carries no valid trace.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
