package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// meterForTest builds a Metrics instance whose instruments report into a
// manual reader.
func meterForTest(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// metricByName collects current data from reader and returns the named
// metric. Missing metrics fail the test.
func metricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == name {
				return met
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

// hasAttrs reports whether set carries every given attribute.
func hasAttrs(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, want := range attrs {
		got, ok := set.Value(want.Key)
		if !ok || got.Emit() != want.Value.Emit() {
			return false
		}
	}
	return true
}

// counterValue returns the int64 sum data point matching every given
// attribute. A metric without attributes matches when none are given.
func counterValue(t *testing.T, met metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want int64 sum", met.Name, met.Data)
	}
	for _, dp := range sum.DataPoints {
		if hasAttrs(dp.Attributes, attrs) {
			return dp.Value
		}
	}
	t.Fatalf("%s: no data point matches %v", met.Name, attrs)
	return 0
}

// histogramPoint returns the histogram data point matching every given
// attribute.
func histogramPoint[N int64 | float64](t *testing.T, met metricdata.Metrics, attrs ...attribute.KeyValue) metricdata.HistogramDataPoint[N] {
	t.Helper()
	hist, ok := met.Data.(metricdata.Histogram[N])
	if !ok {
		t.Fatalf("%s: data is %T, want histogram", met.Name, met.Data)
	}
	for _, dp := range hist.DataPoints {
		if hasAttrs(dp.Attributes, attrs) {
			return dp
		}
	}
	t.Fatalf("%s: no data point matches %v", met.Name, attrs)
	return metricdata.HistogramDataPoint[N]{}
}

func TestNewMetrics(t *testing.T) {
	if m, _ := meterForTest(t); m == nil {
		t.Fatal("NewMetrics = nil")
	}
}

func TestRecordFrame(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.RecordFrame(ctx, true)
	m.RecordFrame(ctx, true)
	m.RecordFrame(ctx, false)

	met := metricByName(t, reader, "elocute.frames.sampled")
	if got := counterValue(t, met, attribute.Bool("silent", true)); got != 2 {
		t.Errorf("silent frames = %d, want 2", got)
	}
	if got := counterValue(t, met, attribute.Bool("silent", false)); got != 1 {
		t.Errorf("voiced frames = %d, want 1", got)
	}
}

func TestRecordRecognitionEvent(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.RecordRecognitionEvent(ctx, "result")
	m.RecordRecognitionEvent(ctx, "result")
	m.RecordRecognitionEvent(ctx, "error")

	met := metricByName(t, reader, "elocute.recognition.events")
	if got := counterValue(t, met, attribute.String("type", "result")); got != 2 {
		t.Errorf("result events = %d, want 2", got)
	}
	if got := counterValue(t, met, attribute.String("type", "error")); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
}

func TestRecordRestart(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.RecordRestart(ctx)
	m.RecordRestart(ctx)

	met := metricByName(t, reader, "elocute.recognizer.restarts")
	if got := counterValue(t, met); got != 2 {
		t.Errorf("restarts = %d, want 2", got)
	}
}

func TestRecordAnalysis(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.RecordAnalysis(ctx, 42*time.Millisecond, 78, 85.5)

	dur := histogramPoint[float64](t, metricByName(t, reader, "elocute.analysis.duration"))
	if dur.Count != 1 {
		t.Errorf("duration samples = %d, want 1", dur.Count)
	}
	if want := (42 * time.Millisecond).Seconds(); dur.Sum != want {
		t.Errorf("duration sum = %v, want %v", dur.Sum, want)
	}

	clarity := histogramPoint[int64](t, metricByName(t, reader, "elocute.clarity.score"))
	if clarity.Count != 1 || clarity.Sum != 78 {
		t.Errorf("clarity count/sum = %d/%d, want 1/78", clarity.Count, clarity.Sum)
	}

	fluency := histogramPoint[float64](t, metricByName(t, reader, "elocute.fluency.score"))
	if fluency.Count != 1 || fluency.Sum != 85.5 {
		t.Errorf("fluency count/sum = %d/%v, want 1/85.5", fluency.Count, fluency.Sum)
	}
}

func TestRecordSessionDuration(t *testing.T) {
	m, reader := meterForTest(t)

	m.RecordSessionDuration(context.Background(), 95*time.Second)

	dp := histogramPoint[float64](t, metricByName(t, reader, "elocute.session.duration"))
	if dp.Count != 1 {
		t.Errorf("samples = %d, want 1", dp.Count)
	}
	if dp.Sum != 95 {
		t.Errorf("sum = %v seconds, want 95", dp.Sum)
	}
}

func TestRecordGradingSubmit(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.RecordGradingSubmit(ctx, 120*time.Millisecond, "ok")
	m.RecordGradingSubmit(ctx, 80*time.Millisecond, "error")

	met := metricByName(t, reader, "elocute.grading.submit.duration")
	if dp := histogramPoint[float64](t, met, attribute.String("status", "ok")); dp.Count != 1 {
		t.Errorf("ok submissions = %d, want 1", dp.Count)
	}
	if dp := histogramPoint[float64](t, met, attribute.String("status", "error")); dp.Count != 1 {
		t.Errorf("failed submissions = %d, want 1", dp.Count)
	}
}

func TestSessionsActiveGauge(t *testing.T) {
	m, reader := meterForTest(t)
	ctx := context.Background()

	m.SessionsActive.Add(ctx, 1)
	m.SessionsActive.Add(ctx, 1)
	m.SessionsActive.Add(ctx, -1)

	met := metricByName(t, reader, "elocute.sessions.active")
	if got := counterValue(t, met); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := meterForTest(t)

	m.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	met := metricByName(t, reader, "elocute.http.request.duration")
	dp := histogramPoint[float64](t, met,
		attribute.String("method", "GET"),
		attribute.String("path", "/healthz"),
	)
	if dp.Count != 1 {
		t.Errorf("samples = %d, want 1", dp.Count)
	}
	if dp.Sum != 0.05 {
		t.Errorf("sum = %v, want 0.05", dp.Sum)
	}
}

func TestDefaultMetrics_SharedInstance(t *testing.T) {
	// DefaultMetrics lazily builds one instance off the global provider;
	// every caller must see the same pointer.
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned distinct instances")
	}
}
