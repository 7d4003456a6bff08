package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rafizsust/elocute/internal/observe"
	"github.com/rafizsust/elocute/pkg/speech"
)

// Info holds metadata about an active session.
type Info struct {
	// SessionID is the unique identifier of the session.
	SessionID string

	// StartedAt is when the session began capturing.
	StartedAt time.Time
}

// Manager owns the single session slot. Only one session can be live at a
// time; starting a second one fails with [ErrSessionActive]. All methods are
// safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	active *Session
	info   Info
}

// NewManager returns a Manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

// Begin creates a session from cfg and starts it. It fails with
// [ErrSessionActive] while a previous session is still capturing.
func (m *Manager) Begin(ctx context.Context, cfg Config) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.State() == StateCapturing {
		return nil, fmt.Errorf("%w (id=%s)", ErrSessionActive, m.info.SessionID)
	}

	sess := New(cfg)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	m.active = sess
	m.info = Info{SessionID: sess.ID(), StartedAt: time.Now()}
	observe.DefaultMetrics().SessionsActive.Add(ctx, 1)
	return sess, nil
}

// Stop ends the active session and returns its analysis result. Fails with
// [ErrNotCapturing] when no session is live.
func (m *Manager) Stop() (*speech.AnalysisResult, error) {
	sess := m.takeActive()
	if sess == nil {
		return nil, ErrNotCapturing
	}
	return sess.Stop()
}

// Abort ends the active session and discards its data. Fails with
// [ErrNotCapturing] when no session is live.
func (m *Manager) Abort() error {
	sess := m.takeActive()
	if sess == nil {
		return ErrNotCapturing
	}
	return sess.Abort()
}

// takeActive clears the slot and returns the session that held it, if any.
func (m *Manager) takeActive() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.active
	if sess == nil {
		return nil
	}
	m.active = nil
	m.info = Info{}
	observe.DefaultMetrics().SessionsActive.Add(context.Background(), -1)
	return sess
}

// IsActive reports whether a session currently holds the slot.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.active.State() == StateCapturing
}

// Info returns metadata about the active session, or the zero value when the
// slot is empty.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}
