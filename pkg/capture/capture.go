// Package capture defines the interfaces and types for live audio input.
//
// The two primary abstractions are:
//
//   - [Device] — claims an audio input and returns a [Stream].
//   - [Stream] — delivers fixed-cadence PCM windows until released.
//
// Implementations are provided by adapter packages (e.g., capture/pcm for
// seekable or piped PCM sources) and by platform-specific capture code. The
// interfaces are intentionally narrow so the analysis pipeline stays decoupled
// from how audio actually reaches the process.
//
// This package lives under pkg/ because external code (custom capture
// adapters) is expected to implement [Device] and [Stream].
package capture

import (
	"context"
	"time"
)

// DefaultSampleRate is the capture rate assumed when [Config.SampleRate] is zero.
const DefaultSampleRate = 16000

// DefaultWindow is the sampling cadence assumed when [Config.Window] is zero.
const DefaultWindow = 100 * time.Millisecond

// Window is one fixed-cadence slice of captured audio.
type Window struct {
	// Samples is mono PCM16 data covering the window.
	Samples []int16

	// SampleRate in Hz.
	SampleRate int

	// Start is the window's offset since the stream was acquired. Streams
	// deliver windows in strictly increasing Start order beginning at 0.
	Start time.Duration
}

// Config selects the capture format for [Device.Acquire].
type Config struct {
	// SampleRate in Hz. Zero means DefaultSampleRate.
	SampleRate int

	// Window is the sampling cadence. Zero means DefaultWindow.
	Window time.Duration
}

// Norm returns cfg with zero fields replaced by the package defaults.
func (cfg Config) Norm() Config {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return cfg
}

// Stream is an exclusively held audio input.
//
// A Stream is obtained from [Device.Acquire] and remains valid until
// [Stream.Release] is called. Exactly one component owns a stream at a time;
// the owner is responsible for releasing it on every exit path.
//
// Implementations must be safe for concurrent use.
type Stream interface {
	// Windows returns the channel of captured windows. The channel is closed
	// when the stream is released or the underlying source is exhausted.
	Windows() <-chan Window

	// Release gives the device back. Calling Release more than once is safe;
	// only the first call has effect.
	Release() error
}

// Device is an audio input that can be claimed for a capture session.
type Device interface {
	// Acquire claims the device and starts delivery at the configured
	// cadence. It blocks until the device is ready or ctx is done. The
	// returned stream is exclusively owned by the caller.
	Acquire(ctx context.Context, cfg Config) (Stream, error)
}
