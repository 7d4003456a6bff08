// Package gateway provides a [recognizer.Capability] backed by a speech
// recognition gateway speaking a small JSON protocol over WebSocket.
//
// The client opens a connection per engine run and sends text control frames:
//
//	{"type":"start","language":"en-US","sample_rate":16000,"interim":true}
//	{"type":"stop"}   — flush pending finals, then end
//	{"type":"abort"}  — discard in-flight audio and end
//
// Audio travels as binary frames of little-endian PCM16 samples. The gateway
// answers with text frames:
//
//	{"type":"result","index":0,"items":[{"text":"hello","final":false}]}
//	{"type":"error","code":"no-speech","message":"..."}
//	{"type":"end"}
//
// The engine can be started again after it ends; each run dials a fresh
// connection. Close releases the engine for good.
package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/recognizer"
)

const (
	defaultLanguage    = "en-US"
	defaultSampleRate  = 16000
	defaultDialTimeout = 10 * time.Second

	eventQueueSize = 64
	audioQueueSize = 256
)

// ErrNotRunning is returned by SendAudio and SendWindow between engine runs.
var ErrNotRunning = errors.New("gateway: recognition is not running")

// Option is a functional option for configuring the gateway [Engine].
type Option func(*Engine)

// WithLanguage sets the BCP-47 recognition language tag (e.g., "en-US", "de-DE").
func WithLanguage(language string) Option {
	return func(e *Engine) {
		e.language = language
	}
}

// WithSampleRate sets the PCM sample rate in Hz announced in the start frame.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		e.sampleRate = rate
	}
}

// WithDialTimeout bounds the WebSocket dial on each engine run.
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dialTimeout = d
		}
	}
}

// WithHeader adds an HTTP header to the WebSocket handshake (e.g., an
// Authorization token).
func WithHeader(key, value string) Option {
	return func(e *Engine) {
		e.header.Set(key, value)
	}
}

// Engine streams audio to a recognition gateway and delivers its responses as
// tagged [recognizer.Event] values. It implements [recognizer.Capability] and
// [capture.WindowSink].
type Engine struct {
	url         string
	language    string
	sampleRate  int
	dialTimeout time.Duration
	header      http.Header

	events chan recognizer.Event

	// closed is closed by Close; emit selects against it so run goroutines
	// never block on a consumer that has gone away.
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	released bool
	running  bool
	conn     *websocket.Conn
	audio    chan []byte
	runDone  chan struct{}
}

var (
	_ recognizer.Capability = (*Engine)(nil)
	_ capture.WindowSink    = (*Engine)(nil)
)

// New creates an engine that connects to the gateway at rawURL (ws:// or
// wss://). The connection is not dialed until Start.
func New(rawURL string, opts ...Option) (*Engine, error) {
	if rawURL == "" {
		return nil, errors.New("gateway: url must not be empty")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("gateway: parse url: %w", err)
	}
	e := &Engine{
		url:         rawURL,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		dialTimeout: defaultDialTimeout,
		header:      http.Header{},
		events:      make(chan recognizer.Event, eventQueueSize),
		closed:      make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Events returns the engine's event channel. The channel stays open across
// runs and closes only when the engine is closed.
func (e *Engine) Events() <-chan recognizer.Event { return e.events }

// Start dials the gateway, announces the stream format, and begins a run.
// It returns [recognizer.ErrAlreadyStarted] while a run is active and
// [recognizer.ErrReleased] after Close.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return recognizer.ErrReleased
	}
	if e.running {
		e.mu.Unlock()
		return recognizer.ErrAlreadyStarted
	}
	// Claim the running slot before dialing so a concurrent Start fails fast
	// instead of opening a second connection.
	e.running = true
	e.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, e.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, e.url, &websocket.DialOptions{
		HTTPHeader: e.header,
	})
	if err != nil {
		e.abandonStart()
		return fmt.Errorf("gateway: dial %s: %w", e.url, err)
	}

	start, err := e.buildStartFrame()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "bad start frame")
		e.abandonStart()
		return fmt.Errorf("gateway: encode start frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, start); err != nil {
		conn.Close(websocket.StatusInternalError, "start frame not sent")
		e.abandonStart()
		return fmt.Errorf("gateway: send start frame: %w", err)
	}

	e.mu.Lock()
	if e.released {
		// Closed while dialing.
		e.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "capability released")
		return recognizer.ErrReleased
	}
	e.conn = conn
	e.audio = make(chan []byte, audioQueueSize)
	e.runDone = make(chan struct{})
	audio, runDone := e.audio, e.runDone
	// Register the run goroutines before releasing the lock so a concurrent
	// Close waits for them.
	e.wg.Add(2)
	e.mu.Unlock()

	go e.writeLoop(conn, audio, runDone)
	go e.readLoop(conn, runDone)
	return nil
}

// abandonStart gives the running slot back after a failed Start.
func (e *Engine) abandonStart() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Stop asks the gateway to flush pending finals and end the run. The end
// itself arrives as an [recognizer.EventEnd] event once the gateway confirms.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return recognizer.ErrReleased
	}
	conn := e.conn
	running := e.running
	e.mu.Unlock()
	if !running || conn == nil {
		return nil
	}

	if err := conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"stop"}`)); err != nil {
		// The connection is already failing; closing it makes the read loop
		// finish the run so the end event still arrives.
		conn.Close(websocket.StatusNormalClosure, "stop")
		return fmt.Errorf("gateway: send stop frame: %w", err)
	}
	return nil
}

// Abort discards in-flight audio and ends the run immediately.
func (e *Engine) Abort() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return recognizer.ErrReleased
	}
	conn := e.conn
	running := e.running
	e.mu.Unlock()
	if !running || conn == nil {
		return nil
	}

	_ = conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"abort"}`))
	conn.Close(websocket.StatusNormalClosure, "recognition aborted")
	return nil
}

// Close releases the engine: any active run is torn down, the event channel
// closes, and every later call returns [recognizer.ErrReleased].
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.released = true
		conn := e.conn
		e.mu.Unlock()

		close(e.closed)
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "capability released")
		}
		e.wg.Wait()
		close(e.events)
	})
	return nil
}

// SendAudio queues a chunk of little-endian PCM16 bytes for delivery to the
// gateway. Between runs it returns [ErrNotRunning]; such chunks are simply
// not recognized.
func (e *Engine) SendAudio(chunk []byte) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return recognizer.ErrReleased
	}
	if !e.running || e.audio == nil {
		e.mu.Unlock()
		return ErrNotRunning
	}
	audio, runDone := e.audio, e.runDone
	e.mu.Unlock()

	select {
	case audio <- chunk:
		return nil
	case <-runDone:
		return ErrNotRunning
	}
}

// SendWindow encodes a captured window as PCM16 bytes and queues it. It
// implements [capture.WindowSink] so an engine can be attached to a capture
// device with [capture.Tee].
func (e *Engine) SendWindow(w capture.Window) error {
	return e.SendAudio(pcmBytes(w.Samples))
}

// writeLoop forwards queued audio chunks as binary frames until the run ends,
// then drains whatever is still queued.
func (e *Engine) writeLoop(conn *websocket.Conn, audio chan []byte, runDone chan struct{}) {
	defer e.wg.Done()
	for {
		select {
		case chunk := <-audio:
			if err := conn.Write(context.Background(), websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-runDone:
			for {
				select {
				case chunk := <-audio:
					_ = conn.Write(context.Background(), websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives gateway frames and emits them as events. It owns run
// teardown: when the connection ends, for any reason, the run is marked
// finished and a single end event is emitted.
func (e *Engine) readLoop(conn *websocket.Conn, runDone chan struct{}) {
	defer e.wg.Done()
	defer e.finishRun(conn, runDone)

	for {
		_, msg, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		ev, ok := parseServerFrame(msg)
		if !ok {
			continue
		}
		if ev.Type == recognizer.EventEnd {
			// finishRun emits the end event exactly once.
			return
		}
		e.emit(ev)
	}
}

// finishRun tears down a run and emits its end event.
func (e *Engine) finishRun(conn *websocket.Conn, runDone chan struct{}) {
	close(runDone)
	conn.Close(websocket.StatusNormalClosure, "run ended")

	e.mu.Lock()
	e.running = false
	e.conn = nil
	e.audio = nil
	e.mu.Unlock()

	e.emit(recognizer.Event{Type: recognizer.EventEnd})
}

// emit delivers an event unless the engine has been closed.
func (e *Engine) emit(ev recognizer.Event) {
	select {
	case e.events <- ev:
	case <-e.closed:
	}
}

// startFrame is the JSON control frame announcing a new stream. Interim is
// always requested; the word confidence heuristics depend on seeing results
// revise while the speaker is still talking.
type startFrame struct {
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Interim    bool   `json:"interim"`
}

// buildStartFrame encodes the start control frame for this engine's settings.
func (e *Engine) buildStartFrame() ([]byte, error) {
	return json.Marshal(startFrame{
		Type:       "start",
		Language:   e.language,
		SampleRate: e.sampleRate,
		Interim:    true,
	})
}

// serverFrame is the JSON structure of every frame the gateway sends.
type serverFrame struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Items []struct {
		Text  string `json:"text"`
		Final bool   `json:"final"`
	} `json:"items"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseServerFrame parses a raw gateway message into a recognition event.
// Returns (event, true) on success, or (zero, false) if the message should be
// ignored.
func parseServerFrame(data []byte) (recognizer.Event, bool) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return recognizer.Event{}, false
	}

	switch frame.Type {
	case "result":
		if len(frame.Items) == 0 {
			return recognizer.Event{}, false
		}
		items := make([]recognizer.Item, 0, len(frame.Items))
		for _, it := range frame.Items {
			items = append(items, recognizer.Item{Text: it.Text, Final: it.Final})
		}
		return recognizer.Event{
			Type:  recognizer.EventResult,
			Index: frame.Index,
			Items: items,
		}, true

	case "error":
		code := frame.Code
		if code == "" {
			code = "engine-error"
		}
		var detail error
		if frame.Message != "" {
			detail = errors.New(frame.Message)
		}
		return recognizer.Event{
			Type: recognizer.EventError,
			Code: code,
			Err:  detail,
		}, true

	case "end":
		return recognizer.Event{Type: recognizer.EventEnd}, true

	default:
		return recognizer.Event{}, false
	}
}

// pcmBytes encodes samples as little-endian PCM16.
func pcmBytes(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}
