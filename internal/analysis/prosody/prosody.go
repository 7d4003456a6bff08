// Package prosody derives pitch, pause, stress, intonation, and rhythm
// metrics from the frame sequence of a finished recording.
//
// All computations are pure functions over [speech.AudioAnalysis]; the
// package holds no state and is safe to call from any goroutine. Frame
// cadence is inferred from the first two frame timestamps, so the analyzer
// works at any window size the capture layer was configured with.
package prosody

import (
	"math"
	"time"

	"github.com/rafizsust/elocute/pkg/speech"
)

const (
	// pauseThreshold is the minimum silent-run duration that counts as a
	// pause; longPauseThreshold the minimum that additionally counts as a
	// long pause.
	pauseThreshold     = 500 * time.Millisecond
	longPauseThreshold = 1500 * time.Millisecond

	// defaultPeriod is assumed when the cadence cannot be inferred.
	defaultPeriod = 100 * time.Millisecond

	// stressFactor is how far above mean energy a local peak must rise to
	// count as a stress event.
	stressFactor = 1.5

	// intonationWindow is the number of consecutive frames inspected per
	// intonation event; intonationMinVoiced the voiced frames a window needs
	// to produce one.
	intonationWindow    = 5
	intonationMinVoiced = 3

	// intonationSlope is the relative pitch change (percent) separating
	// rising/falling contours from level ones.
	intonationSlope = 10.0

	// Speaking-rate boundaries on the non-silent frame ratio.
	slowSpeechRatio = 0.5
	fastSpeechRatio = 0.8
)

// Analyze computes prosody metrics for one recording. A recording with no
// frames yields neutral metrics: zero counts, a rhythm consistency of 50,
// and a normal speaking rate.
func Analyze(audio speech.AudioAnalysis) speech.ProsodyMetrics {
	m := speech.ProsodyMetrics{
		SpeakingRate:      speech.RateNormal,
		RhythmConsistency: 50,
	}
	if len(audio.Frames) == 0 {
		return m
	}

	period := framePeriod(audio.Frames)

	m.PitchVariation = pitchVariation(audio)
	m.StressEventCount = countStressEvents(audio.Frames)
	m.Intonation = intonationEvents(audio.Frames)
	m.PauseCount, m.LongPauseCount, m.AveragePause = measurePauses(audio.Frames, period)
	m.RhythmConsistency = rhythmConsistency(audio.Frames, period)
	m.SpeakingRate = speakingRate(audio.Frames)
	return m
}

// framePeriod infers the capture cadence from the first two timestamps.
func framePeriod(frames []speech.Frame) time.Duration {
	if len(frames) >= 2 {
		if d := frames[1].Timestamp - frames[0].Timestamp; d > 0 {
			return d
		}
	}
	return defaultPeriod
}

// pitchVariation maps the voiced pitch spread onto [0,100]: the range as a
// percentage of the average pitch, capped at 100.
func pitchVariation(audio speech.AudioAnalysis) float64 {
	if audio.AveragePitch <= 0 {
		return 0
	}
	spread := audio.PitchRange.Max - audio.PitchRange.Min
	if spread <= 0 {
		return 0
	}
	return math.Min(100, spread/audio.AveragePitch*100)
}

// countStressEvents counts non-silent frames whose energy peaks above both
// neighbors and above stressFactor times the mean energy of the recording.
// Boundary frames have only one neighbor and never qualify.
func countStressEvents(frames []speech.Frame) int {
	if len(frames) < 3 {
		return 0
	}
	var sum float64
	for _, f := range frames {
		sum += f.RMS
	}
	mean := sum / float64(len(frames))

	count := 0
	for i := 1; i < len(frames)-1; i++ {
		f := frames[i]
		if f.Silent {
			continue
		}
		if f.RMS > frames[i-1].RMS && f.RMS > frames[i+1].RMS && f.RMS > stressFactor*mean {
			count++
		}
	}
	return count
}

// intonationEvents classifies the pitch contour of each non-overlapping
// five-frame window. Windows with fewer than three voiced frames are
// skipped. The event timestamp is the window's first frame.
func intonationEvents(frames []speech.Frame) []speech.IntonationEvent {
	var events []speech.IntonationEvent
	for start := 0; start+intonationWindow <= len(frames); start += intonationWindow {
		window := frames[start : start+intonationWindow]

		var voiced []speech.Frame
		for _, f := range window {
			if !f.Silent && f.Pitch > 0 {
				voiced = append(voiced, f)
			}
		}
		if len(voiced) < intonationMinVoiced {
			continue
		}

		first := voiced[0].Pitch
		last := voiced[len(voiced)-1].Pitch
		change := (last - first) / first * 100

		kind := speech.IntonationLevel
		switch {
		case change > intonationSlope:
			kind = speech.IntonationRising
		case change < -intonationSlope:
			kind = speech.IntonationFalling
		}
		events = append(events, speech.IntonationEvent{
			Timestamp: window[0].Timestamp,
			Kind:      kind,
			Magnitude: math.Min(100, math.Abs(change)),
		})
	}
	return events
}

// measurePauses scans maximal silent runs. A run of at least pauseThreshold
// counts as a pause, one of at least longPauseThreshold additionally as a
// long pause. A trailing silent run is judged by the same rule.
func measurePauses(frames []speech.Frame, period time.Duration) (pauses, longPauses int, average time.Duration) {
	var total time.Duration
	run := 0
	flush := func() {
		if run == 0 {
			return
		}
		d := time.Duration(run) * period
		if d >= pauseThreshold {
			pauses++
			total += d
			if d >= longPauseThreshold {
				longPauses++
			}
		}
		run = 0
	}
	for _, f := range frames {
		if f.Silent {
			run++
		} else {
			flush()
		}
	}
	flush()

	if pauses > 0 {
		average = total / time.Duration(pauses)
	}
	return pauses, longPauses, average
}

// rhythmConsistency scores how even the speech-run durations are:
// 100 - cv*100 clamped to [0,100], where cv is the coefficient of variation
// (population standard deviation over mean). Fewer than two runs score a
// neutral 50.
func rhythmConsistency(frames []speech.Frame, period time.Duration) float64 {
	var runs []float64
	run := 0
	for _, f := range frames {
		if !f.Silent {
			run++
		} else if run > 0 {
			runs = append(runs, float64(run)*period.Seconds())
			run = 0
		}
	}
	if run > 0 {
		runs = append(runs, float64(run)*period.Seconds())
	}
	if len(runs) < 2 {
		return 50
	}

	var sum float64
	for _, r := range runs {
		sum += r
	}
	mean := sum / float64(len(runs))

	var variance float64
	for _, r := range runs {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(runs))

	cv := math.Sqrt(variance) / mean
	return math.Max(0, math.Min(100, 100-cv*100))
}

// speakingRate buckets the non-silent frame ratio into slow/normal/fast.
func speakingRate(frames []speech.Frame) speech.SpeakingRate {
	voiced := 0
	for _, f := range frames {
		if !f.Silent {
			voiced++
		}
	}
	ratio := float64(voiced) / float64(len(frames))
	switch {
	case ratio < slowSpeechRatio:
		return speech.RateSlow
	case ratio > fastSpeechRatio:
		return speech.RateFast
	default:
		return speech.RateNormal
	}
}
