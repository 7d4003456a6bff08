// Package recognizer defines the speech recognition capability boundary.
//
// The analysis pipeline never performs speech-to-text itself; it consumes an
// engine through the [Capability] interface. Engines deliver everything over
// one tagged event stream, so the session orchestrator drains a single
// channel instead of juggling racing callbacks:
//
//   - [EventResult] carries recognized items with a monotonically increasing
//     result index and a final/interim flag per item.
//   - [EventError] carries a machine-readable code. Codes listed as benign
//     ("no-speech", "aborted") are expected during normal operation.
//   - [EventEnd] signals engine termination, graceful or spontaneous. The
//     capability may be started again afterwards.
//
// This package lives under pkg/ because external code (platform engine
// adapters) is expected to implement [Capability].
package recognizer

import (
	"context"
	"errors"
)

// ErrAlreadyStarted is returned by Start while the engine is running.
// Restart logic treats it as a no-op, not a failure.
var ErrAlreadyStarted = errors.New("recognizer: already started")

// ErrReleased is returned by every method once Close has been called.
// Restart logic treats it as already-stopped, not a failure.
var ErrReleased = errors.New("recognizer: capability released")

// Well-known error codes carried by [EventError] events.
const (
	// CodeNoSpeech: the engine heard nothing it could recognize.
	CodeNoSpeech = "no-speech"

	// CodeAborted: recognition was cancelled on purpose.
	CodeAborted = "aborted"
)

// Benign reports whether an error code is expected during normal operation
// and must not surface as a session failure.
func Benign(code string) bool {
	return code == CodeNoSpeech || code == CodeAborted
}

// EventType classifies recognition events.
type EventType int

const (
	// EventResult delivers recognized items.
	EventResult EventType = iota

	// EventError delivers an engine error code.
	EventError

	// EventEnd signals that the engine terminated.
	EventEnd
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventResult:
		return "RESULT"
	case EventError:
		return "ERROR"
	case EventEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Item is one recognized chunk within a result event.
type Item struct {
	// Text is the recognized text for this item.
	Text string

	// Final marks the item as committed; interim items may still be revised
	// by later events at the same index.
	Final bool
}

// Event is one tagged recognition event.
type Event struct {
	// Type selects which of the remaining fields are meaningful.
	Type EventType

	// Index is the result index of the first entry in Items. Engines emit
	// result events with non-decreasing indices; consumers drop stale ones.
	Index int

	// Items holds the result entries starting at Index. Result events only.
	Items []Item

	// Code is the machine-readable error code. Error events only.
	Code string

	// Err optionally carries error detail for logging. Error events only.
	Err error
}

// Capability is a speech recognition engine attached to the platform's audio
// input.
//
// Start begins recognition; while the engine is running it returns
// [ErrAlreadyStarted]. Stop ends recognition gracefully (the engine flushes
// pending finals, then emits [EventEnd]); Abort discards in-flight audio and
// ends immediately. Close releases the capability: the event channel closes
// and every later call returns [ErrReleased].
//
// Events returns the same channel for the capability's whole lifetime; engine
// termination is signaled by an [EventEnd] value, never by closing the
// channel, so a consumer survives engine restarts.
//
// Implementations must be safe for concurrent use.
type Capability interface {
	Start(ctx context.Context) error
	Stop() error
	Abort() error
	Events() <-chan Event
	Close() error
}
