// Package session orchestrates one speech analysis session: it owns the
// device claim, the recognition event loop, engine restarts, and the final
// assembly of the analysis result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rafizsust/elocute/internal/analysis/confidence"
	"github.com/rafizsust/elocute/internal/analysis/fluency"
	"github.com/rafizsust/elocute/internal/analysis/frames"
	"github.com/rafizsust/elocute/internal/analysis/prosody"
	"github.com/rafizsust/elocute/internal/observe"
	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/capture/vad"
	"github.com/rafizsust/elocute/pkg/recognizer"
	"github.com/rafizsust/elocute/pkg/speech"
)

// Default engine restart parameters.
const (
	defaultMaxRestarts    = 10
	defaultRestartBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// Session lifecycle errors.
var (
	// ErrUnsupported: no recognition capability is available on this setup.
	ErrUnsupported = errors.New("session: no recognition capability available")

	// ErrNotCapturing: the operation requires a live capture.
	ErrNotCapturing = errors.New("session: not capturing")

	// ErrAlreadyStarted: Start was called on a session that already ran.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrSessionActive: the manager refuses a second concurrent session.
	ErrSessionActive = errors.New("session: a session is already active")
)

// CodeRestartExhausted is reported through OnError when the recognition
// engine keeps terminating and the restart budget runs out.
const CodeRestartExhausted = "restart-exhausted"

// State is the lifecycle tag of a [Session].
type State int

// Session states. Transitions: Idle → Capturing → Stopped or Aborted.
const (
	StateIdle State = iota
	StateCapturing
	StateStopped
	StateAborted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RestartPolicy bounds automatic engine restarts after spontaneous ends.
// The attempt counter resets whenever the engine produces a result event,
// and so does the backoff.
type RestartPolicy struct {
	// MaxAttempts is the number of consecutive restarts tolerated without an
	// intervening result. Defaults to 10 if zero.
	MaxAttempts int

	// Backoff is the wait before the first restart. Doubles per consecutive
	// attempt up to MaxBackoff. Defaults to 200ms if zero.
	Backoff time.Duration

	// MaxBackoff caps the doubling. Defaults to 5s if zero.
	MaxBackoff time.Duration
}

func (p RestartPolicy) norm() RestartPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxRestarts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultRestartBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	return p
}

// Config assembles the collaborators of one session.
type Config struct {
	// Device is the audio input to claim. Required.
	Device capture.Device

	// Recognizer is the speech recognition engine. Nil means recognition is
	// unavailable and Start fails with [ErrUnsupported].
	Recognizer recognizer.Capability

	// Capture selects sample rate and window cadence.
	Capture capture.Config

	// Detector classifies windows as speech or silence. Nil means the RMS
	// default.
	Detector vad.Detector

	// Tracker scores per-word confidence. Nil means a fresh tracker with
	// defaults.
	Tracker *confidence.Tracker

	// OnInterim is invoked for every interim transcript snapshot. May be nil.
	OnInterim func(text string)

	// OnError is invoked for non-benign recognition errors and for restart
	// exhaustion. The session keeps capturing either way. May be nil.
	OnError func(code string, err error)

	// Restart bounds automatic engine restarts.
	Restart RestartPolicy
}

// Session is a single-use speech analysis run. Create with [New], drive with
// Start / Stop / Abort. All methods are safe for concurrent use.
type Session struct {
	id        string
	device    capture.Device
	rec       recognizer.Capability
	capture   capture.Config
	detector  vad.Detector
	tracker   *confidence.Tracker
	onInterim func(string)
	onError   func(string, error)
	restart   RestartPolicy

	mu            sync.Mutex
	state         State
	extractor     *frames.Extractor
	finals        []string
	lastInterim   string
	nextIndex     int
	restartStreak int
	gaveUp        bool
	startedAt     time.Time

	done   chan struct{}
	loopWG sync.WaitGroup
}

// New returns an idle session with a fresh ID.
func New(cfg Config) *Session {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = confidence.New()
	}
	return &Session{
		id:        uuid.NewString(),
		device:    cfg.Device,
		rec:       cfg.Recognizer,
		capture:   cfg.Capture,
		detector:  cfg.Detector,
		tracker:   tracker,
		onInterim: cfg.OnInterim,
		onError:   cfg.OnError,
		restart:   cfg.Restart.norm(),
		extractor: frames.New(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start claims the device, starts the recognition engine, and begins
// consuming recognition events. A session can be started once.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, s.state)
	}
	if s.rec == nil {
		return ErrUnsupported
	}
	if s.device == nil {
		return errors.New("session: no capture device configured")
	}

	if err := s.extractor.Start(ctx, s.device, frames.Config{Capture: s.capture, Detector: s.detector}); err != nil {
		return fmt.Errorf("session: claim device: %w", err)
	}
	s.tracker.Start()
	if err := s.rec.Start(ctx); err != nil {
		s.extractor.Discard()
		return fmt.Errorf("session: start recognition: %w", err)
	}

	s.state = StateCapturing
	s.startedAt = time.Now()
	s.finals = nil
	s.lastInterim = ""
	s.nextIndex = 0
	s.restartStreak = 0
	s.gaveUp = false
	s.done = make(chan struct{})

	s.loopWG.Add(1)
	go s.loop(ctx)

	slog.Info("session started", "session_id", s.id)
	return nil
}

// loop is the single consumer of the recognition event stream.
func (s *Session) loop(ctx context.Context) {
	defer s.loopWG.Done()
	events := s.rec.Events()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev recognizer.Event) {
	observe.DefaultMetrics().RecordRecognitionEvent(ctx, ev.Type.String())

	switch ev.Type {
	case recognizer.EventResult:
		s.applyResult(ev)
	case recognizer.EventError:
		if recognizer.Benign(ev.Code) {
			slog.Debug("benign recognition error", "session_id", s.id, "code", ev.Code)
			return
		}
		slog.Warn("recognition error", "session_id", s.id, "code", ev.Code, "err", ev.Err)
		if s.onError != nil {
			s.onError(ev.Code, ev.Err)
		}
	case recognizer.EventEnd:
		s.restartEngine(ctx)
	}
}

// applyResult folds one result event into the transcript state. Items whose
// index falls below the committed watermark are stale echoes from an engine
// restart and are dropped.
func (s *Session) applyResult(ev recognizer.Event) {
	s.mu.Lock()
	s.restartStreak = 0
	s.gaveUp = false
	capturing := s.state == StateCapturing

	var interims []string
	for i, item := range ev.Items {
		idx := ev.Index + i
		if idx < s.nextIndex {
			slog.Debug("dropping stale recognition result",
				"session_id", s.id, "result_index", idx, "next_index", s.nextIndex)
			continue
		}
		text := strings.TrimSpace(item.Text)
		if item.Final {
			if text != "" {
				s.finals = append(s.finals, text)
				s.tracker.AddSnapshot(text, true)
			}
			s.nextIndex = idx + 1
			continue
		}
		if text != "" {
			s.lastInterim = text
			s.tracker.AddSnapshot(text, false)
			interims = append(interims, text)
		}
	}
	s.mu.Unlock()

	if s.onInterim != nil && capturing {
		for _, text := range interims {
			s.onInterim(text)
		}
	}
}

// restartEngine brings the recognition engine back after a spontaneous end,
// with exponential backoff. The attempt budget spans consecutive ends and is
// replenished only by result events. When the budget is gone the session
// keeps capturing audio without recognition.
func (s *Session) restartEngine(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.state != StateCapturing || s.gaveUp {
			s.mu.Unlock()
			return
		}
		s.restartStreak++
		attempt := s.restartStreak
		if attempt > s.restart.MaxAttempts {
			s.gaveUp = true
			s.mu.Unlock()
			slog.Error("recognition restart budget exhausted, capturing audio only",
				"session_id", s.id, "max_restarts", s.restart.MaxAttempts)
			if s.onError != nil {
				s.onError(CodeRestartExhausted,
					fmt.Errorf("session: recognition engine terminated %d times in a row", s.restart.MaxAttempts))
			}
			return
		}
		s.mu.Unlock()

		backoff := s.restartBackoff(attempt)
		slog.Info("restarting recognition engine",
			"session_id", s.id, "attempt", attempt,
			"max_restarts", s.restart.MaxAttempts, "backoff", backoff)

		select {
		case <-s.done:
			return
		case <-time.After(backoff):
		}

		// Re-check liveness right before starting: an abort or stop that
		// landed during the backoff wins.
		if s.State() != StateCapturing {
			return
		}
		err := s.rec.Start(ctx)
		switch {
		case err == nil:
			observe.DefaultMetrics().RecordRestart(ctx)
			slog.Info("recognition engine restarted", "session_id", s.id, "attempt", attempt)
			return
		case errors.Is(err, recognizer.ErrAlreadyStarted), errors.Is(err, recognizer.ErrReleased):
			// Already running again, or the capability is gone. Either way
			// there is nothing further to do.
			return
		default:
			slog.Warn("recognition restart failed",
				"session_id", s.id, "attempt", attempt, "err", err)
		}
	}
}

// restartBackoff returns the wait before the given consecutive attempt.
func (s *Session) restartBackoff(attempt int) time.Duration {
	d := s.restart.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.restart.MaxBackoff {
			return s.restart.MaxBackoff
		}
	}
	return d
}

// Stop ends the session and assembles the analysis result. A session that
// captured no usable speech returns (nil, nil). Stop fails with
// [ErrNotCapturing] unless the session is live.
func (s *Session) Stop() (*speech.AnalysisResult, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return nil, ErrNotCapturing
	}
	s.state = StateStopped
	close(s.done)
	s.mu.Unlock()

	s.loopWG.Wait()
	if err := s.rec.Stop(); err != nil && !errors.Is(err, recognizer.ErrReleased) {
		slog.Warn("recognition stop failed", "session_id", s.id, "err", err)
	}
	s.drainEvents()

	audio := s.extractor.Stop()
	pros := prosody.Analyze(audio)

	s.mu.Lock()
	transcript := strings.TrimSpace(strings.Join(s.finals, " "))
	if transcript == "" {
		transcript = strings.TrimSpace(s.lastInterim)
	}
	duration := time.Since(s.startedAt)
	s.mu.Unlock()

	observe.DefaultMetrics().RecordSessionDuration(context.Background(), duration)
	slog.Info("session stopped",
		"session_id", s.id, "duration", duration,
		"frames", len(audio.Frames), "transcript_words", len(strings.Fields(transcript)))

	if transcript == "" {
		return nil, nil
	}

	ctx, span := observe.StartSpan(context.Background(), "session.analyze")
	defer span.End()
	analyzeStart := time.Now()

	words := s.tracker.WordConfidences(transcript)
	flu := fluency.Compute(words, audio, pros, duration)
	result := &speech.AnalysisResult{
		RawTranscript:     transcript,
		CleanedTranscript: cleanedTranscript(words),
		Words:             words,
		Fluency:           flu,
		Prosody:           pros,
		Audio:             audio,
		Duration:          duration,
	}
	result.ClarityScore = clarityScore(result)

	observe.DefaultMetrics().RecordAnalysis(ctx, time.Since(analyzeStart), result.ClarityScore, flu.OverallScore)
	observe.Logger(ctx).Debug("analysis complete",
		"session_id", s.id, "clarity_score", result.ClarityScore,
		"fluency_score", flu.OverallScore, "analyze_time", time.Since(analyzeStart))
	return result, nil
}

// drainEvents consumes result events the engine had already buffered when
// Stop was called, so finals flushed at the last moment still reach the
// transcript. Non-blocking; stops at the first end event or an empty buffer.
func (s *Session) drainEvents() {
	for {
		select {
		case ev, ok := <-s.rec.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case recognizer.EventResult:
				s.applyResult(ev)
			case recognizer.EventEnd:
				return
			}
		default:
			return
		}
	}
}

// Abort ends the session and discards everything sampled so far. Aborting an
// already-aborted session is a no-op; aborting one that never captured fails
// with [ErrNotCapturing].
func (s *Session) Abort() error {
	s.mu.Lock()
	switch s.state {
	case StateAborted:
		s.mu.Unlock()
		return nil
	case StateCapturing:
	default:
		s.mu.Unlock()
		return ErrNotCapturing
	}
	s.state = StateAborted
	close(s.done)
	s.mu.Unlock()

	s.loopWG.Wait()
	if err := s.rec.Abort(); err != nil && !errors.Is(err, recognizer.ErrReleased) {
		slog.Warn("recognition abort failed", "session_id", s.id, "err", err)
	}
	s.extractor.Discard()

	slog.Info("session aborted", "session_id", s.id)
	return nil
}

// cleanedTranscript joins the non-filler, non-repeat words single-spaced.
func cleanedTranscript(words []speech.WordConfidence) string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if w.Filler || w.Repeat {
			continue
		}
		kept = append(kept, w.Word)
	}
	return strings.Join(kept, " ")
}

// clarityScore blends confidence, fluency, and prosody into one 0–100 score.
func clarityScore(r *speech.AnalysisResult) int {
	score := 0.4*r.AverageConfidence() +
		0.3*r.Fluency.OverallScore +
		0.15*r.Prosody.PitchVariation +
		0.15*r.Prosody.RhythmConsistency
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
