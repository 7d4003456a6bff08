package prosody_test

import (
	"math"
	"testing"
	"time"

	"github.com/rafizsust/elocute/internal/analysis/prosody"
	"github.com/rafizsust/elocute/pkg/speech"
)

const period = 100 * time.Millisecond

// appendRun extends frames with count consecutive frames at the fixture's
// 100 ms cadence.
func appendRun(frames []speech.Frame, count int, silent bool, pitch, rms float64) []speech.Frame {
	for i := 0; i < count; i++ {
		frames = append(frames, speech.Frame{
			Timestamp: time.Duration(len(frames)) * period,
			RMS:       rms,
			Pitch:     pitch,
			Silent:    silent,
		})
	}
	return frames
}

func speechRun(frames []speech.Frame, count int) []speech.Frame {
	return appendRun(frames, count, false, 150, 2000)
}

func silenceRun(frames []speech.Frame, count int) []speech.Frame {
	return appendRun(frames, count, true, 0, 0)
}

func TestAnalyze_EmptyRecording(t *testing.T) {
	t.Parallel()

	m := prosody.Analyze(speech.AudioAnalysis{})

	if m.PauseCount != 0 || m.LongPauseCount != 0 || m.StressEventCount != 0 {
		t.Errorf("counts = %d/%d/%d, want all 0", m.PauseCount, m.LongPauseCount, m.StressEventCount)
	}
	if m.RhythmConsistency != 50 {
		t.Errorf("RhythmConsistency = %v, want 50", m.RhythmConsistency)
	}
	if m.SpeakingRate != speech.RateNormal {
		t.Errorf("SpeakingRate = %v, want %v", m.SpeakingRate, speech.RateNormal)
	}
	if len(m.Intonation) != 0 {
		t.Errorf("Intonation events = %d, want 0", len(m.Intonation))
	}
}

func TestAnalyze_Pauses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		silentFrames   int
		trailing       bool
		wantPauses     int
		wantLongPauses int
	}{
		{"below threshold", 4, false, 0, 0},
		{"pause", 5, false, 1, 0},
		{"just under long", 14, false, 1, 0},
		{"long pause", 16, false, 1, 1},
		{"trailing run counts", 6, true, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			frames := speechRun(nil, 3)
			frames = silenceRun(frames, tc.silentFrames)
			if !tc.trailing {
				frames = speechRun(frames, 3)
			}

			m := prosody.Analyze(speech.AudioAnalysis{Frames: frames})
			if m.PauseCount != tc.wantPauses {
				t.Errorf("PauseCount = %d, want %d", m.PauseCount, tc.wantPauses)
			}
			if m.LongPauseCount != tc.wantLongPauses {
				t.Errorf("LongPauseCount = %d, want %d", m.LongPauseCount, tc.wantLongPauses)
			}
			if m.LongPauseCount > m.PauseCount {
				t.Errorf("LongPauseCount %d exceeds PauseCount %d", m.LongPauseCount, m.PauseCount)
			}
		})
	}
}

func TestAnalyze_AveragePause(t *testing.T) {
	t.Parallel()

	frames := speechRun(nil, 2)
	frames = silenceRun(frames, 5) // 500 ms
	frames = speechRun(frames, 2)
	frames = silenceRun(frames, 15) // 1500 ms
	frames = speechRun(frames, 2)

	m := prosody.Analyze(speech.AudioAnalysis{Frames: frames})

	if m.PauseCount != 2 {
		t.Fatalf("PauseCount = %d, want 2", m.PauseCount)
	}
	if got, want := m.AveragePause, time.Second; got != want {
		t.Errorf("AveragePause = %v, want %v", got, want)
	}
}

func TestAnalyze_StressEvents(t *testing.T) {
	t.Parallel()

	energies := func(rms ...float64) []speech.Frame {
		var frames []speech.Frame
		for i, e := range rms {
			frames = append(frames, speech.Frame{
				Timestamp: time.Duration(i) * period,
				RMS:       e,
				Pitch:     150,
				Silent:    e == 0,
			})
		}
		return frames
	}

	tests := []struct {
		name   string
		frames []speech.Frame
		want   int
	}{
		{"single peak", energies(1000, 1000, 5000, 1000, 1000), 1},
		{"peak at boundary ignored", energies(5000, 1000, 1000), 0},
		{"peak below mean multiple", energies(2000, 2100, 2000), 0},
		{"silent peak ignored", func() []speech.Frame {
			f := energies(1000, 1000, 5000, 1000, 1000)
			f[2].Silent = true
			return f
		}(), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := prosody.Analyze(speech.AudioAnalysis{Frames: tc.frames})
			if m.StressEventCount != tc.want {
				t.Errorf("StressEventCount = %d, want %d", m.StressEventCount, tc.want)
			}
		})
	}
}

func TestAnalyze_Intonation(t *testing.T) {
	t.Parallel()

	voiced := func(frames []speech.Frame, pitches ...float64) []speech.Frame {
		for _, p := range pitches {
			frames = append(frames, speech.Frame{
				Timestamp: time.Duration(len(frames)) * period,
				RMS:       2000,
				Pitch:     p,
				Silent:    false,
			})
		}
		return frames
	}

	var frames []speech.Frame
	frames = voiced(frames, 100, 105, 110, 115, 120) // +20% rising
	frames = voiced(frames, 200, 190, 180, 170, 160) // -20% falling
	frames = voiced(frames, 100, 101, 102, 103, 105) // +5% level
	// Window with too few voiced frames produces no event.
	frames = voiced(frames, 100, 100)
	frames = silenceRun(frames, 3)

	m := prosody.Analyze(speech.AudioAnalysis{Frames: frames})

	if len(m.Intonation) != 3 {
		t.Fatalf("intonation events = %d, want 3", len(m.Intonation))
	}

	want := []struct {
		kind      speech.IntonationKind
		magnitude float64
		timestamp time.Duration
	}{
		{speech.IntonationRising, 20, 0},
		{speech.IntonationFalling, 20, 500 * time.Millisecond},
		{speech.IntonationLevel, 5, time.Second},
	}
	for i, w := range want {
		ev := m.Intonation[i]
		if ev.Kind != w.kind {
			t.Errorf("event %d kind = %v, want %v", i, ev.Kind, w.kind)
		}
		if math.Abs(ev.Magnitude-w.magnitude) > 1e-9 {
			t.Errorf("event %d magnitude = %v, want %v", i, ev.Magnitude, w.magnitude)
		}
		if ev.Timestamp != w.timestamp {
			t.Errorf("event %d timestamp = %v, want %v", i, ev.Timestamp, w.timestamp)
		}
	}
}

func TestAnalyze_RhythmConsistency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frames []speech.Frame
		want   float64
	}{
		{"equal runs", speechRun(silenceRun(speechRun(nil, 5), 5), 5), 100},
		{"uneven runs", speechRun(silenceRun(speechRun(nil, 2), 5), 6), 50},
		{"single run neutral", speechRun(nil, 10), 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := prosody.Analyze(speech.AudioAnalysis{Frames: tc.frames})
			if math.Abs(m.RhythmConsistency-tc.want) > 1e-9 {
				t.Errorf("RhythmConsistency = %v, want %v", m.RhythmConsistency, tc.want)
			}
		})
	}
}

func TestAnalyze_SpeakingRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		voiced, total int
		want          speech.SpeakingRate
	}{
		{"slow", 4, 10, speech.RateSlow},
		{"normal", 7, 10, speech.RateNormal},
		{"fast", 9, 10, speech.RateFast},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			frames := speechRun(nil, tc.voiced)
			frames = silenceRun(frames, tc.total-tc.voiced)

			m := prosody.Analyze(speech.AudioAnalysis{Frames: frames})
			if m.SpeakingRate != tc.want {
				t.Errorf("SpeakingRate = %v, want %v", m.SpeakingRate, tc.want)
			}
		})
	}
}

func TestAnalyze_PitchVariation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		average float64
		min     float64
		max     float64
		want    float64
	}{
		{"wide range capped", 100, 50, 150, 100},
		{"moderate range", 200, 180, 220, 20},
		{"no voiced pitch", 0, 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := prosody.Analyze(speech.AudioAnalysis{
				Frames:       speechRun(nil, 3),
				PitchRange:   speech.PitchRange{Min: tc.min, Max: tc.max},
				AveragePitch: tc.average,
			})
			if math.Abs(m.PitchVariation-tc.want) > 1e-9 {
				t.Errorf("PitchVariation = %v, want %v", m.PitchVariation, tc.want)
			}
		})
	}
}
