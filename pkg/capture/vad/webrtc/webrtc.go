// Package webrtc adapts the WebRTC voice activity detector to the
// [vad.Detector] interface.
//
// The WebRTC VAD only accepts 10/20/30 ms frames at 8/16/32/48 kHz, so the
// detector slices each capture window into 20 ms sub-frames and reports
// speech if any sub-frame contains it. Windows the VAD cannot process fall
// back to the RMS noise-floor rule, so capture never stalls on an
// incompatible format.
package webrtc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/maxhawkins/go-webrtcvad"

	"github.com/rafizsust/elocute/pkg/capture/vad"
)

const subFrameMs = 20

var _ vad.Detector = (*Detector)(nil)

// Detector wraps a WebRTC VAD instance. Not safe for concurrent use of the
// underlying model, so all calls are serialized internally.
type Detector struct {
	mu       sync.Mutex
	vad      *webrtcvad.VAD
	fallback *vad.RMS
}

// New creates a Detector with the given aggressiveness mode (0 = least
// aggressive filtering, 3 = most). The fallback noise floor applies whenever
// the VAD rejects a window.
func New(mode int, noiseFloor float64) (*Detector, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("webrtc: aggressiveness mode %d out of range 0..3", mode)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create vad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtc: set mode: %w", err)
	}
	return &Detector{vad: v, fallback: vad.NewRMS(noiseFloor)}, nil
}

// IsSpeech implements [vad.Detector].
func (d *Detector) IsSpeech(samples []int16, sampleRate int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	perSub := sampleRate * subFrameMs / 1000
	if perSub <= 0 || len(samples) < perSub {
		return d.fallback.IsSpeech(samples, sampleRate)
	}

	for off := 0; off+perSub <= len(samples); off += perSub {
		ok, err := d.vad.Process(sampleRate, encodeSamples(samples[off:off+perSub]))
		if err != nil {
			return d.fallback.IsSpeech(samples, sampleRate)
		}
		if ok {
			return true
		}
	}
	return false
}

// Close implements [vad.Detector].
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vad != nil {
		// go-webrtcvad exposes no destructor; it frees the C instance via a
		// finalizer, so dropping the reference is the release.
		d.vad = nil
	}
	return nil
}

// encodeSamples converts int16 samples to the little-endian bytes the WebRTC
// VAD consumes.
func encodeSamples(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}
