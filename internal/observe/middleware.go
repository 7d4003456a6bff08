package observe

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseTap wraps [http.ResponseWriter] so the middleware can observe the
// status code the downstream handler chose.
type responseTap struct {
	http.ResponseWriter
	code int
}

func (t *responseTap) WriteHeader(code int) {
	t.code = code
	t.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to [http.ResponseController].
func (t *responseTap) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// Middleware wraps an [http.Handler] with the HTTP observability surface: it
// continues any W3C trace context carried by the request (starting a new
// trace otherwise), opens a server span per request, echoes the trace ID in
// the X-Correlation-ID response header, records the request duration to
// [Metrics.HTTPRequestDuration], and logs completion through the
// trace-correlated logger.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	var propagator propagation.TraceContext

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			tap := &responseTap{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(tap, r.WithContext(ctx))

			elapsed := time.Since(start)
			span.SetAttributes(semconv.HTTPResponseStatusCode(tap.code))
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
				),
			)

			Logger(ctx).Info("http request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", tap.code,
				"duration", elapsed,
			)
		})
	}
}
