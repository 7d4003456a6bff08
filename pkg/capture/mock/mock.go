// Package mock provides in-memory mock implementations of the
// [capture.Device] and [capture.Stream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// tests can assert on call counts and arguments, and they expose exported
// fields the test sets to control behavior.
//
// Typical usage:
//
//	stream := mock.NewStream(4)
//	dev := &mock.Device{AcquireResult: stream}
//	stream.Push(capture.Window{Samples: samples, SampleRate: 16000})
//	stream.Finish()
package mock

import (
	"context"
	"sync"

	"github.com/rafizsust/elocute/pkg/capture"
)

// Compile-time interface checks.
var (
	_ capture.Device = (*Device)(nil)
	_ capture.Stream = (*Stream)(nil)
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [capture.Stream]. Feed it windows with
// [Stream.Push] and close the delivery channel with [Stream.Finish].
type Stream struct {
	mu sync.Mutex

	// ReleaseError is returned by the first Release call.
	ReleaseError error

	// ReleaseCalls records how many times Release was called.
	ReleaseCalls int

	windows  chan capture.Window
	finished bool
}

// NewStream returns a Stream whose window channel is buffered to size buf.
func NewStream(buf int) *Stream {
	return &Stream{windows: make(chan capture.Window, buf)}
}

// Push delivers one window to the consumer. Push after Finish or Release panics,
// mirroring a real stream's invariant that delivery stops at release.
func (s *Stream) Push(w capture.Window) {
	s.windows <- w
}

// Finish closes the window channel without counting as a release, simulating
// source exhaustion (e.g., end of a piped file).
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.windows)
	}
}

// Windows implements [capture.Stream].
func (s *Stream) Windows() <-chan capture.Window { return s.windows }

// Release implements [capture.Stream]. The first call closes the window
// channel and returns ReleaseError; later calls are recorded no-ops.
func (s *Stream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReleaseCalls++
	if s.ReleaseCalls > 1 {
		return nil
	}
	if !s.finished {
		s.finished = true
		close(s.windows)
	}
	return s.ReleaseError
}

// Released reports whether Release was called at least once.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReleaseCalls > 0
}

// ─── Device ───────────────────────────────────────────────────────────────────

// AcquireCall records the arguments of a single [Device.Acquire] invocation.
type AcquireCall struct {
	// Config is the capture config passed to Acquire.
	Config capture.Config
}

// Device is a mock implementation of [capture.Device].
type Device struct {
	mu sync.Mutex

	// AcquireResult is the stream returned by Acquire.
	AcquireResult capture.Stream

	// AcquireError is returned by Acquire instead of AcquireResult when set.
	AcquireError error

	// AcquireCalls records all Acquire invocations.
	AcquireCalls []AcquireCall
}

// Acquire implements [capture.Device]. Records the call and returns
// AcquireResult / AcquireError.
func (d *Device) Acquire(_ context.Context, cfg capture.Config) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AcquireCalls = append(d.AcquireCalls, AcquireCall{Config: cfg})
	if d.AcquireError != nil {
		return nil, d.AcquireError
	}
	return d.AcquireResult, nil
}
