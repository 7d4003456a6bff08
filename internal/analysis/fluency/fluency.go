// Package fluency scores how smoothly a recording was delivered and turns
// the scores into a human-readable assessment.
package fluency

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rafizsust/elocute/pkg/speech"
)

// Pace, filler, and pause boundaries used by [Assess] when naming issues.
const (
	slowPaceWPM      = 110
	fastPaceWPM      = 190
	fillerRatioMild  = 0.1
	fillerRatioHeavy = 0.15
	longPausesMild   = 2
	longPausesHeavy  = 4
)

// Compute derives fluency metrics from the scored words, the audio analysis,
// the prosody metrics, and the wall-clock duration of the recording.
func Compute(words []speech.WordConfidence, audio speech.AudioAnalysis, pros speech.ProsodyMetrics, duration time.Duration) speech.FluencyMetrics {
	m := speech.FluencyMetrics{
		PauseCount:     pros.PauseCount,
		LongPauseCount: pros.LongPauseCount,
	}

	for _, w := range words {
		if w.Filler {
			m.FillerCount++
		}
		if w.Repeat {
			m.RepetitionCount++
		}
	}
	if len(words) > 0 {
		m.FillerRatio = float64(m.FillerCount) / float64(len(words))
	}

	if minutes := duration.Minutes(); minutes > 0 {
		m.WordsPerMinute = int(math.Round(float64(len(words)) / minutes))
	}

	m.SpeechToSilenceRatio = clampUnit(1 - audio.SilenceRatio)
	m.HesitationScore = clampScore(100 -
		5*float64(m.PauseCount) -
		3*float64(m.FillerCount) -
		4*float64(m.RepetitionCount) -
		8*float64(m.LongPauseCount))

	score := 100.0
	if m.WordsPerMinute < 100 {
		score -= float64(100-m.WordsPerMinute) * 0.3
	}
	if m.WordsPerMinute > 200 {
		score -= float64(m.WordsPerMinute-200) * 0.2
	}
	score -= m.FillerRatio * 30
	score -= float64(m.LongPauseCount) * 5
	if m.SpeechToSilenceRatio < 0.4 {
		score -= (0.4 - m.SpeechToSilenceRatio) * 50
	}
	m.OverallScore = clampScore((score + m.HesitationScore) / 2)
	return m
}

// Band buckets an overall fluency score.
type Band string

// Assessment bands from best to worst.
const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandFair             Band = "fair"
	BandNeedsImprovement Band = "needs_improvement"
)

// Assessment is the qualitative reading of a [speech.FluencyMetrics].
type Assessment struct {
	Band    Band     `json:"band"`
	Issues  []string `json:"issues,omitempty"`
	Summary string   `json:"summary"`
}

// Assess names the delivery issues visible in the metrics and buckets the
// overall score into a band with a one-line summary.
func Assess(m speech.FluencyMetrics) Assessment {
	var issues []string
	if m.WordsPerMinute < slowPaceWPM {
		issues = append(issues, "slow speaking pace")
	} else if m.WordsPerMinute > fastPaceWPM {
		issues = append(issues, "rushed speaking pace")
	}
	switch {
	case m.FillerRatio > fillerRatioHeavy:
		issues = append(issues, "frequent filler words")
	case m.FillerRatio > fillerRatioMild:
		issues = append(issues, "noticeable filler words")
	}
	switch {
	case m.LongPauseCount > longPausesHeavy:
		issues = append(issues, "many long pauses")
	case m.LongPauseCount > longPausesMild:
		issues = append(issues, "several long pauses")
	}

	a := Assessment{Issues: issues}
	switch {
	case m.OverallScore >= 80:
		a.Band = BandExcellent
		a.Summary = "Excellent fluency with natural pacing and minimal hesitation."
	case m.OverallScore >= 60:
		a.Band = BandGood
		a.Summary = summarize("Good fluency overall", issues)
	case m.OverallScore >= 40:
		a.Band = BandFair
		a.Summary = summarize("Fair fluency", issues)
	default:
		a.Band = BandNeedsImprovement
		a.Summary = "Fluency needs improvement; focus on steady pacing and reducing hesitations."
	}
	return a
}

func summarize(lead string, issues []string) string {
	if len(issues) == 0 {
		return lead + "."
	}
	return fmt.Sprintf("%s; watch for %s.", lead, strings.Join(issues, ", "))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
