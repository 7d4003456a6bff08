// Package speech defines the shared result types of the analysis pipeline.
//
// These types form the lingua franca between the frame extractor, the prosody
// and fluency analyzers, the word confidence tracker, and the session
// orchestrator. Every entity here is created fresh per capture session,
// mutated only by its owning component while the session is live, and frozen
// when the session stops — nothing outlives one session.
package speech

import "time"

// Frame is one fixed-cadence sample of the live audio stream.
// Frames are produced in strictly increasing Timestamp order at a fixed
// sampling period (100 ms by default).
type Frame struct {
	// Timestamp is the frame's offset since session start.
	Timestamp time.Duration

	// RMS is the root-mean-square energy of the sampled window (≥ 0).
	RMS float64

	// Pitch is the estimated fundamental frequency in Hz. Zero when no pitch
	// was detected, which includes every silent frame.
	Pitch float64

	// Silent reports whether the window fell below the silence threshold.
	Silent bool
}

// PitchRange is the observed min/max pitch across a session, in Hz.
type PitchRange struct {
	Min float64
	Max float64
}

// AudioAnalysis is the frozen output of the frame extractor. Immutable once
// the extractor is stopped.
type AudioAnalysis struct {
	// Frames is the ordered frame sequence. Empty for a zero-length capture.
	Frames []Frame

	// PitchRange spans only frames with a detected pitch.
	PitchRange PitchRange

	// AveragePitch is the mean pitch over frames with a detected pitch (Hz).
	AveragePitch float64

	// Duration is the total captured time.
	Duration time.Duration

	// SilenceRatio is the fraction of frames flagged silent (0.0–1.0).
	SilenceRatio float64
}

// WordConfidence annotates one token of the finished transcript. The sequence
// returned by the tracker is aligned word-for-word with the raw transcript.
type WordConfidence struct {
	// Word is the token text as it appears in the transcript.
	Word string

	// Confidence scores how stable the word was across interim recognition
	// revisions (0–100). Words that never changed before being finalized
	// score near 100.
	Confidence float64

	// Filler marks tokens from the disfluency vocabulary ("um", "uh", ...).
	Filler bool

	// Repeat marks a token that exactly repeats the previous token.
	Repeat bool
}

// IntonationKind classifies the pitch trend over a short analysis window.
type IntonationKind int

const (
	// IntonationRising indicates pitch climbed more than 10% across the window.
	IntonationRising IntonationKind = iota

	// IntonationFalling indicates pitch dropped more than 10% across the window.
	IntonationFalling

	// IntonationLevel indicates pitch stayed within ±10%.
	IntonationLevel
)

// String returns the lowercase name used in reports.
func (k IntonationKind) String() string {
	switch k {
	case IntonationRising:
		return "rising"
	case IntonationFalling:
		return "falling"
	case IntonationLevel:
		return "level"
	default:
		return "unknown"
	}
}

// IntonationEvent is one classified pitch trend.
type IntonationEvent struct {
	// Timestamp of the first frame of the analysis window.
	Timestamp time.Duration

	// Kind is the trend direction.
	Kind IntonationKind

	// Magnitude is the absolute relative pitch change as a percentage (0–100).
	Magnitude float64
}

// SpeakingRate is the qualitative pace label derived from the speech/silence
// balance of a session.
type SpeakingRate int

const (
	// RateSlow: less than half of the session was speech.
	RateSlow SpeakingRate = iota

	// RateNormal: speech occupied 50–80% of the session.
	RateNormal

	// RateFast: speech occupied more than 80% of the session.
	RateFast
)

// String returns the lowercase name used in reports.
func (r SpeakingRate) String() string {
	switch r {
	case RateSlow:
		return "slow"
	case RateNormal:
		return "normal"
	case RateFast:
		return "fast"
	default:
		return "unknown"
	}
}

// ProsodyMetrics is the output of the prosody analyzer.
type ProsodyMetrics struct {
	// PitchVariation measures pitch spread relative to the average (0–100).
	PitchVariation float64

	// StressEventCount is the number of localized energy peaks interpreted
	// as spoken emphasis.
	StressEventCount int

	// AveragePause is the mean duration of qualifying pauses. Zero when no
	// pause qualified.
	AveragePause time.Duration

	// PauseCount is the number of silent runs lasting at least 500 ms.
	PauseCount int

	// LongPauseCount is the number of silent runs lasting at least 1500 ms.
	// Always ≤ PauseCount.
	LongPauseCount int

	// SpeakingRate is the qualitative pace label.
	SpeakingRate SpeakingRate

	// Intonation is the ordered sequence of classified pitch trends.
	Intonation []IntonationEvent

	// RhythmConsistency scores how even the speech run lengths were (0–100).
	// Defaults to 50 when fewer than two speech runs exist.
	RhythmConsistency float64
}

// FluencyMetrics is the output of the fluency calculator.
type FluencyMetrics struct {
	// WordsPerMinute is the rounded speaking tempo. Zero for a zero-length
	// session.
	WordsPerMinute int

	// PauseCount and LongPauseCount are carried over from prosody.
	PauseCount     int
	LongPauseCount int

	// FillerCount is the number of filler-flagged words.
	FillerCount int

	// FillerRatio is FillerCount over total words (0.0–1.0).
	FillerRatio float64

	// RepetitionCount is the number of repeat-flagged words.
	RepetitionCount int

	// HesitationScore penalizes pauses, fillers, and repetitions (0–100,
	// higher is better).
	HesitationScore float64

	// SpeechToSilenceRatio is 1 − silence ratio (0.0–1.0).
	SpeechToSilenceRatio float64

	// OverallScore is the composite fluency score (0–100).
	OverallScore float64
}

// AnalysisResult is the session output: one per completed, non-empty,
// non-aborted capture session.
type AnalysisResult struct {
	// RawTranscript is the accumulated final recognition text, falling back
	// to the last interim text when no final text arrived.
	RawTranscript string

	// CleanedTranscript is RawTranscript with filler and repeat words
	// removed, single-spaced.
	CleanedTranscript string

	// Words is the per-word annotation, aligned with RawTranscript.
	Words []WordConfidence

	// Fluency and Prosody are the derived metric blocks.
	Fluency FluencyMetrics
	Prosody ProsodyMetrics

	// Audio is the frozen frame-level analysis.
	Audio AudioAnalysis

	// Duration is the wall-clock session length.
	Duration time.Duration

	// ClarityScore blends word confidence, fluency, pitch variation, and
	// rhythm consistency into one 0–100 score.
	ClarityScore int
}

// AverageConfidence returns the mean word confidence, or 0 for no words.
func (r *AnalysisResult) AverageConfidence() float64 {
	if len(r.Words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range r.Words {
		sum += w.Confidence
	}
	return sum / float64(len(r.Words))
}
