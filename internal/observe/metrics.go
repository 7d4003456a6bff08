// Package observe provides application-wide observability primitives for
// elocute: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all elocute metrics.
const meterName = "github.com/rafizsust/elocute"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Pipeline counters ---

	// FramesSampled counts captured audio frames. Use with attribute:
	//   attribute.Bool("silent", ...)
	FramesSampled metric.Int64Counter

	// RecognitionEvents counts events received from the recognition engine.
	// Use with attribute: attribute.String("type", ...)
	RecognitionEvents metric.Int64Counter

	// RecognizerRestarts counts successful recognition engine restarts.
	RecognizerRestarts metric.Int64Counter

	// --- Latency histograms ---

	// AnalysisDuration tracks the wall time of end-of-session analysis.
	AnalysisDuration metric.Float64Histogram

	// SessionDuration tracks total capture time per session.
	SessionDuration metric.Float64Histogram

	// GradingSubmitDuration tracks grading submission latency. Use with
	// attribute: attribute.String("status", ...)
	GradingSubmitDuration metric.Float64Histogram

	// --- Score histograms ---

	// ClarityScore tracks the distribution of per-session clarity scores.
	ClarityScore metric.Int64Histogram

	// FluencyScore tracks the distribution of per-session fluency scores.
	FluencyScore metric.Float64Histogram

	// --- Gauges ---

	// SessionsActive tracks the number of live capture sessions.
	SessionsActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// short-lived operations such as analysis and grading submission.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for whole
// capture sessions, which run from seconds to tens of minutes.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800,
}

// scoreBuckets defines histogram bucket boundaries for 0-100 scores.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesSampled, err = m.Int64Counter("elocute.frames.sampled",
		metric.WithDescription("Total audio frames sampled, by silence flag."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionEvents, err = m.Int64Counter("elocute.recognition.events",
		metric.WithDescription("Total recognition engine events by type."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerRestarts, err = m.Int64Counter("elocute.recognizer.restarts",
		metric.WithDescription("Total successful recognition engine restarts."),
	); err != nil {
		return nil, err
	}

	// Latency histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("elocute.analysis.duration",
		metric.WithDescription("Wall time of end-of-session speech analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("elocute.session.duration",
		metric.WithDescription("Total capture time per session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GradingSubmitDuration, err = m.Float64Histogram("elocute.grading.submit.duration",
		metric.WithDescription("Grading submission latency by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Score histograms.
	if met.ClarityScore, err = m.Int64Histogram("elocute.clarity.score",
		metric.WithDescription("Distribution of per-session clarity scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FluencyScore, err = m.Float64Histogram("elocute.fluency.score",
		metric.WithDescription("Distribution of per-session fluency scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.SessionsActive, err = m.Int64UpDownCounter("elocute.sessions.active",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("elocute.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame is a convenience method that counts one sampled audio frame.
func (m *Metrics) RecordFrame(ctx context.Context, silent bool) {
	m.FramesSampled.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("silent", silent)),
	)
}

// RecordRecognitionEvent is a convenience method that counts one recognition
// engine event by type.
func (m *Metrics) RecordRecognitionEvent(ctx context.Context, eventType string) {
	m.RecognitionEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordRestart is a convenience method that counts one successful
// recognition engine restart.
func (m *Metrics) RecordRestart(ctx context.Context) {
	m.RecognizerRestarts.Add(ctx, 1)
}

// RecordAnalysis is a convenience method that records the analysis latency
// and the resulting clarity and fluency scores.
func (m *Metrics) RecordAnalysis(ctx context.Context, elapsed time.Duration, clarity int, fluency float64) {
	m.AnalysisDuration.Record(ctx, elapsed.Seconds())
	m.ClarityScore.Record(ctx, int64(clarity))
	m.FluencyScore.Record(ctx, fluency)
}

// RecordSessionDuration is a convenience method that records total capture
// time for one session.
func (m *Metrics) RecordSessionDuration(ctx context.Context, d time.Duration) {
	m.SessionDuration.Record(ctx, d.Seconds())
}

// RecordGradingSubmit is a convenience method that records one grading
// submission attempt with its outcome.
func (m *Metrics) RecordGradingSubmit(ctx context.Context, elapsed time.Duration, status string) {
	m.GradingSubmitDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}
