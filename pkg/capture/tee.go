package capture

import "context"

// WindowSink receives a copy of every captured window. Used to feed audio to
// consumers outside the analysis pipeline, such as a streaming recognizer.
type WindowSink interface {
	SendWindow(w Window) error
}

// SinkFunc adapts a plain function to the [WindowSink] interface.
type SinkFunc func(w Window) error

// SendWindow calls f(w).
func (f SinkFunc) SendWindow(w Window) error { return f(w) }

// Tee wraps a [Device] so that every window delivered by its streams is also
// forwarded to sink. Sink errors are dropped; the primary consumer must never
// stall because a secondary one failed.
func Tee(dev Device, sink WindowSink) Device {
	return &teeDevice{dev: dev, sink: sink}
}

type teeDevice struct {
	dev  Device
	sink WindowSink
}

func (t *teeDevice) Acquire(ctx context.Context, cfg Config) (Stream, error) {
	inner, err := t.dev.Acquire(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out := make(chan Window, 8)
	ts := &teeStream{inner: inner, out: out}
	go func() {
		defer close(out)
		for w := range inner.Windows() {
			_ = t.sink.SendWindow(w)
			out <- w
		}
	}()
	return ts, nil
}

type teeStream struct {
	inner Stream
	out   chan Window
}

func (s *teeStream) Windows() <-chan Window { return s.out }

func (s *teeStream) Release() error { return s.inner.Release() }
