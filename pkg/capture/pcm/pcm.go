// Package pcm implements [capture.Device] over a raw PCM16LE byte source,
// such as a recorded file, a pipe from an OS capture utility, or stdin.
//
// The device paces delivery at the configured window cadence so a recorded
// file behaves like a live microphone. Pacing can be disabled for batch
// analysis.
package pcm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rafizsust/elocute/pkg/capture"
)

// ErrClaimed is returned by Acquire while a previous stream is unreleased.
var ErrClaimed = errors.New("pcm: device already claimed")

// Compile-time interface checks.
var (
	_ capture.Device = (*Device)(nil)
	_ capture.Stream = (*stream)(nil)
)

// Option is a functional option for configuring a [Device].
type Option func(*Device)

// WithRealtime controls pacing. When enabled (the default), one window is
// delivered per cadence tick; when disabled, windows are delivered as fast as
// the source can be read.
func WithRealtime(enabled bool) Option {
	return func(d *Device) {
		d.realtime = enabled
	}
}

// Device reads mono PCM16 little-endian samples from an [io.Reader].
type Device struct {
	mu       sync.Mutex
	r        io.Reader
	realtime bool
	claimed  bool

	exhausted chan struct{}
	exhOnce   sync.Once
}

// New creates a Device reading from r. The reader is consumed once; acquiring
// again after release continues from the current position.
func New(r io.Reader, opts ...Option) *Device {
	d := &Device{
		r:         r,
		realtime:  true,
		exhausted: make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Exhausted returns a channel closed once the source reaches EOF. Callers use
// it to stop a session when a recorded input runs out.
func (d *Device) Exhausted() <-chan struct{} { return d.exhausted }

// Acquire implements [capture.Device]. It returns [ErrClaimed] while an
// earlier stream has not been released.
func (d *Device) Acquire(_ context.Context, cfg capture.Config) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed {
		return nil, ErrClaimed
	}
	d.claimed = true

	cfg = cfg.Norm()
	perWindow := int(int64(cfg.SampleRate) * int64(cfg.Window) / int64(time.Second))
	if perWindow <= 0 {
		d.claimed = false
		return nil, fmt.Errorf("pcm: invalid capture config: %d samples per window", perWindow)
	}

	s := &stream{
		dev:     d,
		windows: make(chan capture.Window, 4),
		done:    make(chan struct{}),
	}
	go s.run(cfg, perWindow)
	return s, nil
}

func (d *Device) unclaim() {
	d.mu.Lock()
	d.claimed = false
	d.mu.Unlock()
}

func (d *Device) markExhausted() {
	d.exhOnce.Do(func() { close(d.exhausted) })
}

type stream struct {
	dev     *Device
	windows chan capture.Window

	done     chan struct{}
	stopOnce sync.Once
}

// Windows implements [capture.Stream].
func (s *stream) Windows() <-chan capture.Window { return s.windows }

// Release implements [capture.Stream]. Idempotent.
func (s *stream) Release() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

// run reads one window per tick (or back-to-back when pacing is off) until
// the source is exhausted or the stream is released.
func (s *stream) run(cfg capture.Config, perWindow int) {
	defer close(s.windows)
	defer s.dev.unclaim()

	var ticker *time.Ticker
	if s.dev.realtime {
		ticker = time.NewTicker(cfg.Window)
		defer ticker.Stop()
	}

	buf := make([]byte, perWindow*2)
	for i := 0; ; i++ {
		n, err := io.ReadFull(s.dev.r, buf)
		if n > 0 {
			w := capture.Window{
				Samples:    decodeSamples(buf[:n-n%2]),
				SampleRate: cfg.SampleRate,
				Start:      time.Duration(i) * cfg.Window,
			}
			select {
			case s.windows <- w:
			case <-s.done:
				return
			}
		}
		if err != nil {
			// EOF and short reads end the stream; anything else does too,
			// the caller sees it as source exhaustion.
			s.dev.markExhausted()
			return
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-s.done:
				return
			}
		} else {
			select {
			case <-s.done:
				return
			default:
			}
		}
	}
}

// decodeSamples converts little-endian PCM16 bytes to int16 samples.
func decodeSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}
