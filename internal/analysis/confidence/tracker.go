// Package confidence scores per-word recognition confidence from the revision
// history of interim transcripts.
//
// Streaming recognizers revise their hypothesis many times before committing
// a final segment. A word that survives revision after revision was heard
// clearly; a word that kept changing was not. The [Tracker] turns that
// stability signal into a 0–100 confidence per word, and also flags filler
// words and immediate repetitions for the fluency stage.
package confidence

import (
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/rafizsust/elocute/pkg/speech"
)

const (
	// DefaultNeutralConfidence is assigned to words with no revision history.
	DefaultNeutralConfidence = 70

	// nearMatchThreshold is the Jaro-Winkler similarity at which two tokens
	// count as the same word still being refined (holds the streak without
	// extending it).
	nearMatchThreshold = 0.84

	// Confidence grows from streakBase by streakStep per survived revision,
	// capped at 100.
	streakBase = 55
	streakStep = 9
)

// defaultFillers is the built-in filler vocabulary. Entries containing a
// space are matched as phrases.
var defaultFillers = []string{
	"um", "uh", "umm", "uhh", "er", "erm", "ah", "hmm", "like", "you know",
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithNeutralConfidence sets the confidence assigned to words without
// revision history.
func WithNeutralConfidence(c float64) Option {
	return func(t *Tracker) { t.neutral = c }
}

// WithFillerWords replaces the built-in filler vocabulary. Entries containing
// a space are matched as multi-word phrases.
func WithFillerWords(words []string) Option {
	return func(t *Tracker) { t.setFillers(words) }
}

// token is one word of a snapshot with its survival streak.
type token struct {
	norm       string
	streak     int
	confidence float64
}

// Tracker accumulates transcript snapshots for one recording session.
// Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	neutral float64
	fillers map[string]struct{}
	phrases [][]string

	committed []token // frozen tokens of finalized segments, in order
	interim   []token // tokens of the latest interim snapshot
}

// New returns an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{neutral: DefaultNeutralConfidence}
	t.setFillers(defaultFillers)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) setFillers(words []string) {
	t.fillers = make(map[string]struct{}, len(words))
	t.phrases = nil
	for _, w := range words {
		norm := normalizeToken(w)
		if norm == "" {
			continue
		}
		if parts := strings.Fields(norm); len(parts) > 1 {
			t.phrases = append(t.phrases, parts)
			continue
		}
		t.fillers[norm] = struct{}{}
	}
}

// Start resets all accumulated history for a fresh recording.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = nil
	t.interim = nil
}

// AddSnapshot records one transcript snapshot. Interim snapshots update the
// per-position survival streaks for the segment being refined; a final
// snapshot freezes the segment's confidences and starts the next segment.
func (t *Tracker) AddSnapshot(text string, final bool) {
	words := strings.Fields(text)

	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]token, len(words))
	for i, w := range words {
		norm := normalizeToken(w)
		streak := 0
		if i < len(t.interim) {
			prev := t.interim[i]
			switch {
			case norm == prev.norm:
				streak = prev.streak + 1
			case nearMatch(norm, prev.norm):
				streak = prev.streak
			}
		}
		next[i] = token{norm: norm, streak: streak}
	}

	if !final {
		t.interim = next
		return
	}
	for i := range next {
		next[i].confidence = streakConfidence(next[i].streak)
	}
	t.committed = append(t.committed, next...)
	t.interim = nil
}

// WordConfidences scores each word of the final transcript against the
// accumulated history. Words are aligned by position; a history token at the
// same position lends its confidence when it matches (exactly or nearly),
// otherwise the word gets the neutral confidence. Filler and repetition
// flags are set on the result.
func (t *Tracker) WordConfidences(transcript string) []speech.WordConfidence {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return nil
	}

	t.mu.Lock()
	history := make([]token, 0, len(t.committed)+len(t.interim))
	history = append(history, t.committed...)
	for _, tok := range t.interim {
		tok.confidence = streakConfidence(tok.streak)
		history = append(history, tok)
	}
	neutral := t.neutral
	t.mu.Unlock()

	out := make([]speech.WordConfidence, len(words))
	norms := make([]string, len(words))
	for i, w := range words {
		norm := normalizeToken(w)
		norms[i] = norm

		conf := neutral
		if i < len(history) {
			h := history[i]
			if norm == h.norm || nearMatch(norm, h.norm) {
				conf = h.confidence
			}
		}
		out[i] = speech.WordConfidence{Word: w, Confidence: conf}
	}

	t.flagFillers(out, norms)
	for i := 1; i < len(norms); i++ {
		if norms[i] != "" && norms[i] == norms[i-1] {
			out[i].Repeat = true
		}
	}
	return out
}

// flagFillers marks single-word fillers and filler phrases on out.
func (t *Tracker) flagFillers(out []speech.WordConfidence, norms []string) {
	for i, norm := range norms {
		if _, ok := t.fillers[norm]; ok {
			out[i].Filler = true
		}
	}
	for _, phrase := range t.phrases {
		for i := 0; i+len(phrase) <= len(norms); i++ {
			match := true
			for j, p := range phrase {
				if norms[i+j] != p {
					match = false
					break
				}
			}
			if match {
				for j := range phrase {
					out[i+j].Filler = true
				}
			}
		}
	}
}

// streakConfidence maps a survival streak onto [streakBase,100].
func streakConfidence(streak int) float64 {
	return math.Min(100, streakBase+streakStep*float64(streak))
}

// nearMatch reports whether two normalized tokens are close enough to count
// as the same word under refinement.
func nearMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= nearMatchThreshold
}

// normalizeToken lowercases a word and strips leading and trailing
// punctuation, keeping interior characters (so contractions survive).
func normalizeToken(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}
