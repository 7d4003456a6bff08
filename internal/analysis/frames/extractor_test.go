package frames_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rafizsust/elocute/internal/analysis/frames"
	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/capture/mock"
)

func loudWindow(start time.Duration) capture.Window {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*200*float64(i)/16000))
	}
	return capture.Window{Samples: samples, SampleRate: 16000, Start: start}
}

func toneWindow(freq float64, start time.Duration) capture.Window {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return capture.Window{Samples: samples, SampleRate: 16000, Start: start}
}

func silentWindow(start time.Duration) capture.Window {
	return capture.Window{Samples: make([]int16, 1600), SampleRate: 16000, Start: start}
}

func startExtractor(t *testing.T, stream *mock.Stream) *frames.Extractor {
	t.Helper()
	ex := frames.New()
	dev := &mock.Device{AcquireResult: stream}
	if err := ex.Start(context.Background(), dev, frames.Config{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return ex
}

func TestExtractor_SamplesWindows(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(8)
	ex := startExtractor(t, stream)

	stream.Push(loudWindow(0))
	stream.Push(silentWindow(100 * time.Millisecond))
	stream.Push(loudWindow(200 * time.Millisecond))

	analysis := ex.Stop()

	if got, want := len(analysis.Frames), 3; got != want {
		t.Fatalf("frame count = %d, want %d", got, want)
	}
	if analysis.Frames[0].Silent || !analysis.Frames[1].Silent || analysis.Frames[2].Silent {
		t.Errorf("silence flags = %v/%v/%v, want false/true/false",
			analysis.Frames[0].Silent, analysis.Frames[1].Silent, analysis.Frames[2].Silent)
	}
	if analysis.Frames[1].RMS != 0 {
		t.Errorf("silent frame RMS = %v, want 0", analysis.Frames[1].RMS)
	}
	if analysis.Frames[0].RMS <= 0 {
		t.Errorf("loud frame RMS = %v, want > 0", analysis.Frames[0].RMS)
	}
	if got, want := analysis.Duration, 300*time.Millisecond; got != want {
		t.Errorf("duration = %v, want %v", got, want)
	}
	if got, want := analysis.SilenceRatio, 1.0/3.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("silence ratio = %v, want %v", got, want)
	}
	if !stream.Released() {
		t.Error("stream not released after Stop")
	}
}

func TestExtractor_PitchAggregates(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(4)
	ex := startExtractor(t, stream)

	stream.Push(toneWindow(100, 0))
	stream.Push(toneWindow(200, 100*time.Millisecond))

	analysis := ex.Stop()

	if got := analysis.PitchRange.Min; math.Abs(got-100) > 10 {
		t.Errorf("pitch min = %v, want ~100", got)
	}
	if got := analysis.PitchRange.Max; math.Abs(got-200) > 10 {
		t.Errorf("pitch max = %v, want ~200", got)
	}
	if got := analysis.AveragePitch; math.Abs(got-150) > 10 {
		t.Errorf("average pitch = %v, want ~150", got)
	}
}

func TestExtractor_DropsNonMonotonicWindows(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(4)
	ex := startExtractor(t, stream)

	stream.Push(loudWindow(0))
	stream.Push(loudWindow(100 * time.Millisecond))
	stream.Push(loudWindow(50 * time.Millisecond)) // stale, must be dropped

	analysis := ex.Stop()

	if got, want := len(analysis.Frames), 2; got != want {
		t.Fatalf("frame count = %d, want %d", got, want)
	}
	if got, want := analysis.Frames[1].Timestamp, 100*time.Millisecond; got != want {
		t.Errorf("last timestamp = %v, want %v", got, want)
	}
}

func TestExtractor_StopWithZeroFrames(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(1)
	ex := startExtractor(t, stream)

	analysis := ex.Stop()

	if len(analysis.Frames) != 0 {
		t.Fatalf("frame count = %d, want 0", len(analysis.Frames))
	}
	if analysis.Duration != 0 || analysis.SilenceRatio != 0 || analysis.AveragePitch != 0 {
		t.Errorf("empty analysis not zeroed: %+v", analysis)
	}
}

func TestExtractor_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(4)
	ex := startExtractor(t, stream)
	stream.Push(loudWindow(0))

	first := ex.Stop()
	second := ex.Stop()

	if len(first.Frames) != len(second.Frames) {
		t.Errorf("second Stop frames = %d, want %d", len(second.Frames), len(first.Frames))
	}
	if stream.ReleaseCalls != 1 {
		t.Errorf("ReleaseCalls = %d, want 1", stream.ReleaseCalls)
	}
}

func TestExtractor_DiscardDropsFrames(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(4)
	ex := startExtractor(t, stream)
	stream.Push(loudWindow(0))
	stream.Push(loudWindow(100 * time.Millisecond))

	ex.Discard()

	if stream.ReleaseCalls != 1 {
		t.Errorf("ReleaseCalls = %d, want 1", stream.ReleaseCalls)
	}
	if analysis := ex.Stop(); len(analysis.Frames) != 0 {
		t.Errorf("frames after Discard = %d, want 0", len(analysis.Frames))
	}
	if stream.ReleaseCalls != 1 {
		t.Errorf("ReleaseCalls after Stop = %d, want 1", stream.ReleaseCalls)
	}
}

func TestExtractor_AcquireError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("device busy")
	ex := frames.New()
	dev := &mock.Device{AcquireError: wantErr}

	err := ex.Start(context.Background(), dev, frames.Config{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Start() error = %v, want wrapping %v", err, wantErr)
	}
}

func TestExtractor_StartWhileSampling(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream(1)
	ex := startExtractor(t, stream)
	defer ex.Stop()

	dev := &mock.Device{AcquireResult: mock.NewStream(1)}
	if err := ex.Start(context.Background(), dev, frames.Config{}); err == nil {
		t.Fatal("second Start() succeeded, want error")
	}
	if len(dev.AcquireCalls) != 0 {
		t.Errorf("second device acquired %d times, want 0", len(dev.AcquireCalls))
	}
}
