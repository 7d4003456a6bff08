// Package grading ships finished analysis results to an external grading
// service.
//
// The wire payload is a frozen JSON shape, deliberately decoupled from the
// in-memory speech types: durations travel as integer milliseconds and the
// frame sequence is never serialized, only the aggregates derived from it.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rafizsust/elocute/internal/analysis/fluency"
	"github.com/rafizsust/elocute/internal/observe"
	"github.com/rafizsust/elocute/pkg/speech"
)

// defaultTimeout bounds one grading submission.
const defaultTimeout = 10 * time.Second

// Word is one annotated transcript word.
type Word struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
	Filler     bool    `json:"filler,omitempty"`
	Repeat     bool    `json:"repeat,omitempty"`
}

// Fluency is the fluency metric block of the payload.
type Fluency struct {
	WordsPerMinute       int     `json:"words_per_minute"`
	PauseCount           int     `json:"pause_count"`
	LongPauseCount       int     `json:"long_pause_count"`
	FillerCount          int     `json:"filler_count"`
	FillerRatio          float64 `json:"filler_ratio"`
	RepetitionCount      int     `json:"repetition_count"`
	HesitationScore      float64 `json:"hesitation_score"`
	SpeechToSilenceRatio float64 `json:"speech_to_silence_ratio"`
	OverallScore         float64 `json:"overall_score"`
}

// Intonation is one classified pitch trend.
type Intonation struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Kind        string  `json:"kind"`
	Magnitude   float64 `json:"magnitude"`
}

// Prosody is the prosody metric block of the payload. It carries aggregates
// only; raw frames stay inside the process.
type Prosody struct {
	PitchVariation    float64      `json:"pitch_variation"`
	StressEventCount  int          `json:"stress_event_count"`
	AveragePauseMs    int64        `json:"average_pause_ms"`
	PauseCount        int          `json:"pause_count"`
	LongPauseCount    int          `json:"long_pause_count"`
	SpeakingRate      string       `json:"speaking_rate"`
	RhythmConsistency float64      `json:"rhythm_consistency"`
	Intonation        []Intonation `json:"intonation,omitempty"`
}

// Assessment is the qualitative block of the payload.
type Assessment struct {
	Band    string   `json:"band"`
	Issues  []string `json:"issues,omitempty"`
	Summary string   `json:"summary"`
}

// Payload is one grading submission.
type Payload struct {
	SegmentID         string     `json:"segment_id"`
	Transcript        string     `json:"transcript"`
	CleanedTranscript string     `json:"cleaned_transcript"`
	DurationMs        int64      `json:"duration_ms"`
	ClarityScore      int        `json:"clarity_score"`
	AverageConfidence float64    `json:"average_confidence"`
	Words             []Word     `json:"words"`
	Fluency           Fluency    `json:"fluency"`
	Prosody           Prosody    `json:"prosody"`
	Assessment        Assessment `json:"assessment"`
}

// BuildPayload flattens an analysis result and its assessment into the wire
// shape.
func BuildPayload(segmentID string, result *speech.AnalysisResult, assessment fluency.Assessment) Payload {
	words := make([]Word, len(result.Words))
	for i, w := range result.Words {
		words[i] = Word{Word: w.Word, Confidence: w.Confidence, Filler: w.Filler, Repeat: w.Repeat}
	}

	var intonation []Intonation
	for _, ev := range result.Prosody.Intonation {
		intonation = append(intonation, Intonation{
			TimestampMs: ev.Timestamp.Milliseconds(),
			Kind:        ev.Kind.String(),
			Magnitude:   ev.Magnitude,
		})
	}

	return Payload{
		SegmentID:         segmentID,
		Transcript:        result.RawTranscript,
		CleanedTranscript: result.CleanedTranscript,
		DurationMs:        result.Duration.Milliseconds(),
		ClarityScore:      result.ClarityScore,
		AverageConfidence: result.AverageConfidence(),
		Words:             words,
		Fluency: Fluency{
			WordsPerMinute:       result.Fluency.WordsPerMinute,
			PauseCount:           result.Fluency.PauseCount,
			LongPauseCount:       result.Fluency.LongPauseCount,
			FillerCount:          result.Fluency.FillerCount,
			FillerRatio:          result.Fluency.FillerRatio,
			RepetitionCount:      result.Fluency.RepetitionCount,
			HesitationScore:      result.Fluency.HesitationScore,
			SpeechToSilenceRatio: result.Fluency.SpeechToSilenceRatio,
			OverallScore:         result.Fluency.OverallScore,
		},
		Prosody: Prosody{
			PitchVariation:    result.Prosody.PitchVariation,
			StressEventCount:  result.Prosody.StressEventCount,
			AveragePauseMs:    result.Prosody.AveragePause.Milliseconds(),
			PauseCount:        result.Prosody.PauseCount,
			LongPauseCount:    result.Prosody.LongPauseCount,
			SpeakingRate:      result.Prosody.SpeakingRate.String(),
			RhythmConsistency: result.Prosody.RhythmConsistency,
			Intonation:        intonation,
		},
		Assessment: Assessment{
			Band:    string(assessment.Band),
			Issues:  assessment.Issues,
			Summary: assessment.Summary,
		},
	}
}

// Submitter ships one payload to a grading backend.
type Submitter interface {
	Submit(ctx context.Context, p Payload) error
}

// Option configures an [HTTPSubmitter].
type Option func(*HTTPSubmitter)

// WithTimeout overrides the default per-submission timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSubmitter) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithClient replaces the HTTP client entirely.
func WithClient(c *http.Client) Option {
	return func(s *HTTPSubmitter) {
		if c != nil {
			s.client = c
		}
	}
}

// HTTPSubmitter posts payloads as JSON to a fixed endpoint.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

var _ Submitter = (*HTTPSubmitter)(nil)

// NewHTTPSubmitter returns a submitter for the given endpoint URL.
func NewHTTPSubmitter(endpoint string, opts ...Option) *HTTPSubmitter {
	s := &HTTPSubmitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit implements [Submitter].
func (s *HTTPSubmitter) Submit(ctx context.Context, p Payload) error {
	start := time.Now()
	err := s.post(ctx, p)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observe.DefaultMetrics().RecordGradingSubmit(ctx, time.Since(start), status)
	return err
}

func (s *HTTPSubmitter) post(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("grading: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("grading: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("grading: submit segment %s: %w", p.SegmentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("grading: submit segment %s: %s: %s", p.SegmentID, resp.Status, bytes.TrimSpace(detail))
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
