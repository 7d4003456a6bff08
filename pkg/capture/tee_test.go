package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/capture/mock"
)

// recv reads one window, failing the test if the stream closes or stalls.
func recv(t *testing.T, ch <-chan capture.Window) capture.Window {
	t.Helper()
	select {
	case w, ok := <-ch:
		if !ok {
			t.Fatal("window channel closed")
		}
		return w
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for window")
	}
	return capture.Window{}
}

// waitClosed drains ch until it closes.
func waitClosed(t *testing.T, ch <-chan capture.Window) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("window channel never closed")
		}
	}
}

func TestTee_ForwardsToSinkAndConsumer(t *testing.T) {
	t.Parallel()
	inner := mock.NewStream(4)
	dev := &mock.Device{AcquireResult: inner}

	seen := make(chan capture.Window, 4)
	sink := capture.SinkFunc(func(w capture.Window) error {
		seen <- w
		return nil
	})

	cfg := capture.Config{SampleRate: 16000, Window: 100 * time.Millisecond}
	s, err := capture.Tee(dev, sink).Acquire(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer s.Release()

	if len(dev.AcquireCalls) != 1 || dev.AcquireCalls[0].Config != cfg {
		t.Errorf("inner Acquire calls = %+v, want one with %+v", dev.AcquireCalls, cfg)
	}

	w1 := capture.Window{Samples: []int16{1, 2}, SampleRate: 16000}
	w2 := capture.Window{Samples: []int16{3}, SampleRate: 16000, Start: 100 * time.Millisecond}
	inner.Push(w1)
	inner.Push(w2)
	inner.Finish()

	if got := recv(t, s.Windows()); got.Start != w1.Start || len(got.Samples) != 2 {
		t.Errorf("first window = %+v, want %+v", got, w1)
	}
	if got := recv(t, s.Windows()); got.Start != w2.Start || len(got.Samples) != 1 {
		t.Errorf("second window = %+v, want %+v", got, w2)
	}
	waitClosed(t, s.Windows())

	for i, want := range []capture.Window{w1, w2} {
		got := recv(t, seen)
		if got.Start != want.Start || len(got.Samples) != len(want.Samples) {
			t.Errorf("sink window %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestTee_SinkErrorDoesNotStallConsumer(t *testing.T) {
	t.Parallel()
	inner := mock.NewStream(4)
	dev := &mock.Device{AcquireResult: inner}
	sink := capture.SinkFunc(func(capture.Window) error {
		return errors.New("sink down")
	})

	s, err := capture.Tee(dev, sink).Acquire(context.Background(), capture.Config{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer s.Release()

	inner.Push(capture.Window{Samples: []int16{1}})
	inner.Push(capture.Window{Samples: []int16{2}})
	inner.Finish()

	if got := recv(t, s.Windows()); len(got.Samples) != 1 {
		t.Errorf("first window samples = %v, want one sample", got.Samples)
	}
	if got := recv(t, s.Windows()); len(got.Samples) != 1 {
		t.Errorf("second window samples = %v, want one sample", got.Samples)
	}
	waitClosed(t, s.Windows())
}

func TestTee_AcquireErrorPassesThrough(t *testing.T) {
	t.Parallel()
	boom := errors.New("device busy")
	dev := &mock.Device{AcquireError: boom}
	sink := capture.SinkFunc(func(capture.Window) error { return nil })

	if _, err := capture.Tee(dev, sink).Acquire(context.Background(), capture.Config{}); !errors.Is(err, boom) {
		t.Errorf("Acquire = %v, want %v", err, boom)
	}
}

func TestTee_ReleaseReleasesInner(t *testing.T) {
	t.Parallel()
	inner := mock.NewStream(1)
	dev := &mock.Device{AcquireResult: inner}
	sink := capture.SinkFunc(func(capture.Window) error { return nil })

	s, err := capture.Tee(dev, sink).Acquire(context.Background(), capture.Config{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !inner.Released() {
		t.Error("inner stream was not released")
	}
	waitClosed(t, s.Windows())
}
