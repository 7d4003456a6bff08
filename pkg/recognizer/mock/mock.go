// Package mock provides a deterministic in-memory implementation of the
// [recognizer.Capability] interface for use in unit tests.
//
// The mock records every lifecycle call and lets tests script the event
// stream exactly:
//
//	cap := mock.New(16)
//	cap.EmitResult(0, recognizer.Item{Text: "hello", Final: false})
//	cap.EmitResult(0, recognizer.Item{Text: "hello world", Final: true})
//	cap.EmitEnd()
package mock

import (
	"context"
	"sync"

	"github.com/rafizsust/elocute/pkg/recognizer"
)

var _ recognizer.Capability = (*Capability)(nil)

// Capability is a scripted mock recognition engine.
type Capability struct {
	mu sync.Mutex

	// StartErrs is consumed one entry per Start call; a nil entry means that
	// call succeeds. Once exhausted, Start succeeds.
	StartErrs []error

	// StopError is returned by Stop.
	StopError error

	// AbortError is returned by Abort.
	AbortError error

	// StartCalls, StopCalls, AbortCalls, CloseCalls count invocations.
	StartCalls int
	StopCalls  int
	AbortCalls int
	CloseCalls int

	events   chan recognizer.Event
	running  bool
	released bool
}

// New returns a mock whose event channel is buffered to size buf.
func New(buf int) *Capability {
	return &Capability{events: make(chan recognizer.Event, buf)}
}

// Start implements [recognizer.Capability].
func (c *Capability) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if c.released {
		return recognizer.ErrReleased
	}
	if len(c.StartErrs) > 0 {
		err := c.StartErrs[0]
		c.StartErrs = c.StartErrs[1:]
		if err != nil {
			return err
		}
	}
	if c.running {
		return recognizer.ErrAlreadyStarted
	}
	c.running = true
	return nil
}

// Stop implements [recognizer.Capability].
func (c *Capability) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	if c.released {
		return recognizer.ErrReleased
	}
	c.running = false
	return c.StopError
}

// Abort implements [recognizer.Capability].
func (c *Capability) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AbortCalls++
	if c.released {
		return recognizer.ErrReleased
	}
	c.running = false
	return c.AbortError
}

// Events implements [recognizer.Capability].
func (c *Capability) Events() <-chan recognizer.Event { return c.events }

// Close implements [recognizer.Capability]. The first call closes the event
// channel.
func (c *Capability) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	if !c.released {
		c.released = true
		close(c.events)
	}
	return nil
}

// Running reports whether the mock engine is currently started.
func (c *Capability) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// EmitResult delivers a result event starting at the given index.
func (c *Capability) EmitResult(index int, items ...recognizer.Item) {
	c.events <- recognizer.Event{Type: recognizer.EventResult, Index: index, Items: items}
}

// EmitError delivers an error event with the given code.
func (c *Capability) EmitError(code string) {
	c.events <- recognizer.Event{Type: recognizer.EventError, Code: code}
}

// EmitEnd delivers an end event and marks the engine stopped, so a later
// Start is accepted (restart path).
func (c *Capability) EmitEnd() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.events <- recognizer.Event{Type: recognizer.EventEnd}
}
