// Package vad defines the silence detection boundary of the capture pipeline.
//
// The default [RMS] detector implements the fixed noise-floor rule used by
// the frame extractor: a window is silent when its RMS energy falls below the
// floor. The webrtc subpackage provides a model-based alternative.
package vad

import "math"

// DefaultNoiseFloor is the RMS energy below which a PCM16 window counts as
// silent. Tuned for typical 16-bit microphone capture.
const DefaultNoiseFloor = 500.0

// Detector classifies one window of samples as speech or silence.
//
// Implementations must tolerate windows of any length; Close releases any
// native resources and is safe to call more than once.
type Detector interface {
	IsSpeech(samples []int16, sampleRate int) bool
	Close() error
}

// Energy returns the root-mean-square energy of PCM16 samples.
// An empty window has zero energy.
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMS is the noise-floor detector. A window is speech when its energy is at
// least Floor.
type RMS struct {
	Floor float64
}

// NewRMS returns an RMS detector. A non-positive floor selects
// [DefaultNoiseFloor].
func NewRMS(floor float64) *RMS {
	if floor <= 0 {
		floor = DefaultNoiseFloor
	}
	return &RMS{Floor: floor}
}

// IsSpeech implements [Detector].
func (r *RMS) IsSpeech(samples []int16, _ int) bool {
	return Energy(samples) >= r.Floor
}

// Close implements [Detector]. No resources to release.
func (r *RMS) Close() error { return nil }
