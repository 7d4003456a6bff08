// Package frames turns raw capture windows into per-frame speech measurements.
//
// An [Extractor] owns the capture stream for the lifetime of a recording: it
// claims the device on Start, samples every delivered window into a
// [speech.Frame] (energy, pitch, silence), and on Stop releases the device and
// returns the aggregated [speech.AudioAnalysis]. Exactly one of Stop or
// Discard must be called for every successful Start.
package frames

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafizsust/elocute/internal/observe"
	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/capture/vad"
	"github.com/rafizsust/elocute/pkg/speech"
)

// Config carries the capture format and the voice-activity detector used to
// classify each window.
type Config struct {
	// Capture selects sample rate and window cadence. Zero fields take the
	// capture package defaults.
	Capture capture.Config

	// Detector classifies windows as speech or silence. Nil means an RMS
	// energy gate at the default noise floor.
	Detector vad.Detector
}

// Extractor samples a capture stream into speech frames.
//
// The zero value is not usable; call [New].
type Extractor struct {
	mu sync.Mutex

	stream   capture.Stream
	detector vad.Detector
	window   time.Duration

	frames      []speech.Frame
	lastStamp   time.Duration
	silentCount int
	pitchSum    float64
	pitchCount  int
	pitchMin    float64
	pitchMax    float64

	sampling bool
	released bool
	wg       sync.WaitGroup
}

// New returns an idle Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Start claims dev and begins sampling its windows in a background goroutine.
// It returns an error if the extractor is already sampling or the device
// cannot be acquired.
func (e *Extractor) Start(ctx context.Context, dev capture.Device, cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sampling {
		return fmt.Errorf("frames: extractor already sampling")
	}

	captureCfg := cfg.Capture.Norm()
	stream, err := dev.Acquire(ctx, captureCfg)
	if err != nil {
		return fmt.Errorf("frames: acquire device: %w", err)
	}

	detector := cfg.Detector
	if detector == nil {
		detector = vad.NewRMS(0)
	}

	e.stream = stream
	e.detector = detector
	e.window = captureCfg.Window
	e.frames = nil
	e.lastStamp = -1
	e.silentCount = 0
	e.pitchSum = 0
	e.pitchCount = 0
	e.pitchMin = 0
	e.pitchMax = 0
	e.sampling = true
	e.released = false

	e.wg.Add(1)
	go e.sample(stream)
	return nil
}

// sample consumes the stream until its window channel closes.
func (e *Extractor) sample(stream capture.Stream) {
	defer e.wg.Done()
	for w := range stream.Windows() {
		e.ingest(w)
	}
}

// ingest measures one window and appends the resulting frame, dropping
// windows whose timestamp does not advance.
func (e *Extractor) ingest(w capture.Window) {
	rms := vad.Energy(w.Samples)
	silent := !e.detector.IsSpeech(w.Samples, w.SampleRate)
	var pitch float64
	if !silent {
		pitch = estimatePitch(w.Samples, w.SampleRate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastStamp >= 0 && w.Start <= e.lastStamp {
		slog.Debug("dropping non-monotonic capture window",
			"window_start", w.Start, "last_start", e.lastStamp)
		return
	}
	e.lastStamp = w.Start

	e.frames = append(e.frames, speech.Frame{
		Timestamp: w.Start,
		RMS:       rms,
		Pitch:     pitch,
		Silent:    silent,
	})
	if silent {
		e.silentCount++
	}
	if pitch > 0 {
		if e.pitchCount == 0 || pitch < e.pitchMin {
			e.pitchMin = pitch
		}
		if pitch > e.pitchMax {
			e.pitchMax = pitch
		}
		e.pitchSum += pitch
		e.pitchCount++
	}

	observe.DefaultMetrics().RecordFrame(context.Background(), silent)
}

// releaseStream gives the device back exactly once and waits for the sampler
// goroutine to drain. Safe to call when sampling never started.
func (e *Extractor) releaseStream() {
	e.mu.Lock()
	stream := e.stream
	doRelease := e.sampling && !e.released
	if doRelease {
		e.released = true
	}
	e.mu.Unlock()

	if doRelease {
		if err := stream.Release(); err != nil {
			slog.Warn("capture stream release failed", "err", err)
		}
	}
	e.wg.Wait()
}

// Stop releases the capture stream and returns the analysis of everything
// sampled so far. A recording that produced zero frames yields an empty
// result, not an error. Stop is idempotent.
func (e *Extractor) Stop() speech.AudioAnalysis {
	e.releaseStream()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampling = false

	n := len(e.frames)
	if n == 0 {
		return speech.AudioAnalysis{Frames: []speech.Frame{}}
	}

	analysis := speech.AudioAnalysis{
		Frames:       e.frames,
		Duration:     e.frames[n-1].Timestamp + e.window,
		SilenceRatio: float64(e.silentCount) / float64(n),
	}
	if e.pitchCount > 0 {
		analysis.PitchRange = speech.PitchRange{Min: e.pitchMin, Max: e.pitchMax}
		analysis.AveragePitch = e.pitchSum / float64(e.pitchCount)
	}
	return analysis
}

// Discard releases the capture stream and drops all sampled frames. Used on
// abort, where no analysis should survive.
func (e *Extractor) Discard() {
	e.releaseStream()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampling = false
	e.frames = nil
	e.silentCount = 0
	e.pitchSum = 0
	e.pitchCount = 0
	e.pitchMin = 0
	e.pitchMax = 0
}
