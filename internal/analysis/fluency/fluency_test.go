package fluency_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rafizsust/elocute/internal/analysis/fluency"
	"github.com/rafizsust/elocute/pkg/speech"
)

// wordList builds n scored words with the given counts of fillers and
// repetitions at the front.
func wordList(n, fillers, repeats int) []speech.WordConfidence {
	words := make([]speech.WordConfidence, n)
	for i := range words {
		words[i] = speech.WordConfidence{Word: "w", Confidence: 80}
		if i < fillers {
			words[i].Filler = true
		} else if i < fillers+repeats {
			words[i].Repeat = true
		}
	}
	return words
}

func TestCompute_WordsPerMinute(t *testing.T) {
	t.Parallel()

	m := fluency.Compute(wordList(30, 0, 0), speech.AudioAnalysis{}, speech.ProsodyMetrics{}, 15*time.Second)
	if got, want := m.WordsPerMinute, 120; got != want {
		t.Errorf("WordsPerMinute = %d, want %d", got, want)
	}
}

func TestCompute_ZeroDuration(t *testing.T) {
	t.Parallel()

	m := fluency.Compute(nil, speech.AudioAnalysis{}, speech.ProsodyMetrics{}, 0)
	if m.WordsPerMinute != 0 {
		t.Errorf("WordsPerMinute = %d, want 0", m.WordsPerMinute)
	}
	if m.FillerRatio != 0 {
		t.Errorf("FillerRatio = %v, want 0", m.FillerRatio)
	}
}

func TestCompute_HesitationScore(t *testing.T) {
	t.Parallel()

	pros := speech.ProsodyMetrics{PauseCount: 2, LongPauseCount: 1}
	m := fluency.Compute(wordList(20, 3, 1), speech.AudioAnalysis{}, pros, 10*time.Second)

	// 100 - 5*2 - 3*3 - 4*1 - 8*1 = 69
	if got, want := m.HesitationScore, 69.0; got != want {
		t.Errorf("HesitationScore = %v, want %v", got, want)
	}
}

func TestCompute_HesitationScoreClampsAtZero(t *testing.T) {
	t.Parallel()

	pros := speech.ProsodyMetrics{PauseCount: 30, LongPauseCount: 10}
	m := fluency.Compute(wordList(10, 5, 5), speech.AudioAnalysis{}, pros, 10*time.Second)

	if m.HesitationScore != 0 {
		t.Errorf("HesitationScore = %v, want 0", m.HesitationScore)
	}
	if m.OverallScore < 0 || m.OverallScore > 100 {
		t.Errorf("OverallScore = %v, want within [0,100]", m.OverallScore)
	}
}

func TestCompute_OverallScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		words    []speech.WordConfidence
		audio    speech.AudioAnalysis
		pros     speech.ProsodyMetrics
		duration time.Duration
		want     float64
	}{
		{
			name:     "clean delivery",
			words:    wordList(30, 0, 0),
			duration: 15 * time.Second,
			want:     100,
		},
		{
			name:     "slow pace penalty",
			words:    wordList(20, 0, 0), // 80 WPM
			duration: 15 * time.Second,
			want:     97, // (100-6 + 100) / 2
		},
		{
			name:     "sparse speech penalty",
			words:    wordList(30, 0, 0),
			audio:    speech.AudioAnalysis{SilenceRatio: 0.8},
			duration: 15 * time.Second,
			want:     95, // (100-10 + 100) / 2
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := fluency.Compute(tc.words, tc.audio, tc.pros, tc.duration)
			if math.Abs(m.OverallScore-tc.want) > 1e-9 {
				t.Errorf("OverallScore = %v, want %v", m.OverallScore, tc.want)
			}
		})
	}
}

func TestCompute_MoreFillersScoreLower(t *testing.T) {
	t.Parallel()

	var last float64 = 101
	for _, fillers := range []int{0, 3, 6} {
		m := fluency.Compute(wordList(30, fillers, 0), speech.AudioAnalysis{}, speech.ProsodyMetrics{}, 15*time.Second)
		if m.OverallScore >= last {
			t.Fatalf("OverallScore with %d fillers = %v, want below %v", fillers, m.OverallScore, last)
		}
		last = m.OverallScore
	}
}

func TestCompute_SpeechToSilenceRatio(t *testing.T) {
	t.Parallel()

	m := fluency.Compute(nil, speech.AudioAnalysis{SilenceRatio: 0.3}, speech.ProsodyMetrics{}, time.Second)
	if math.Abs(m.SpeechToSilenceRatio-0.7) > 1e-9 {
		t.Errorf("SpeechToSilenceRatio = %v, want 0.7", m.SpeechToSilenceRatio)
	}
}

func TestAssess_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  fluency.Band
	}{
		{85, fluency.BandExcellent},
		{80, fluency.BandExcellent},
		{65, fluency.BandGood},
		{45, fluency.BandFair},
		{20, fluency.BandNeedsImprovement},
	}
	for _, tc := range tests {
		m := speech.FluencyMetrics{OverallScore: tc.score, WordsPerMinute: 150}
		if got := fluency.Assess(m).Band; got != tc.want {
			t.Errorf("Assess(score %v).Band = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestAssess_Issues(t *testing.T) {
	t.Parallel()

	m := speech.FluencyMetrics{
		OverallScore:   65,
		WordsPerMinute: 95,
		FillerRatio:    0.12,
		LongPauseCount: 3,
	}
	a := fluency.Assess(m)

	want := []string{"slow speaking pace", "noticeable filler words", "several long pauses"}
	if len(a.Issues) != len(want) {
		t.Fatalf("Issues = %v, want %v", a.Issues, want)
	}
	for i := range want {
		if a.Issues[i] != want[i] {
			t.Errorf("Issues[%d] = %q, want %q", i, a.Issues[i], want[i])
		}
	}
	if !strings.Contains(a.Summary, "watch for") {
		t.Errorf("Summary = %q, want issue listing", a.Summary)
	}
}

func TestAssess_SevereIssueVariants(t *testing.T) {
	t.Parallel()

	m := speech.FluencyMetrics{
		OverallScore:   50,
		WordsPerMinute: 210,
		FillerRatio:    0.2,
		LongPauseCount: 5,
	}
	a := fluency.Assess(m)

	want := []string{"rushed speaking pace", "frequent filler words", "many long pauses"}
	for i := range want {
		if a.Issues[i] != want[i] {
			t.Errorf("Issues[%d] = %q, want %q", i, a.Issues[i], want[i])
		}
	}
}

func TestAssess_CleanDelivery(t *testing.T) {
	t.Parallel()

	m := speech.FluencyMetrics{OverallScore: 90, WordsPerMinute: 150}
	a := fluency.Assess(m)

	if len(a.Issues) != 0 {
		t.Errorf("Issues = %v, want none", a.Issues)
	}
	if a.Summary == "" {
		t.Error("Summary empty")
	}
}
