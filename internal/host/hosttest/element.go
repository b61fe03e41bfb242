// Package hosttest provides a recording host.Element for tests.
package hosttest

import (
	"sync"
	"time"

	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/media"
)

// Signal is one recorded signal emission.
type Signal struct {
	Name string
	Args []any
}

// Element records bus messages and signals. Parent properties and contexts
// are served from the exported maps, which must be filled before use.
type Element struct {
	ElementName string
	Key         any
	Properties  map[string]any
	Contexts    map[string]*media.Structure

	mu       sync.Mutex
	messages []host.Message
	signals  []Signal
}

// NewElement returns an element named name whose parent key is parent.
func NewElement(name string, parent any) *Element {
	return &Element{
		ElementName: name,
		Key:         parent,
		Properties:  make(map[string]any),
		Contexts:    make(map[string]*media.Structure),
	}
}

func (e *Element) Name() string { return e.ElementName }

func (e *Element) PostMessage(msg host.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *Element) EmitSignal(name string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals = append(e.signals, Signal{Name: name, Args: args})
}

func (e *Element) ParentKey() any { return e.Key }

func (e *Element) ParentProperty(name string) (any, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

func (e *Element) QueryContext(contextType string) (*media.Structure, bool) {
	st, ok := e.Contexts[contextType]
	return st, ok
}

// Messages returns a copy of the posted messages.
func (e *Element) Messages() []host.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]host.Message(nil), e.messages...)
}

// MessageTypes returns the types of the posted messages in order.
func (e *Element) MessageTypes() []host.MessageType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]host.MessageType, len(e.messages))
	for i, m := range e.messages {
		types[i] = m.Type
	}
	return types
}

// Count returns how many messages of type t were posted.
func (e *Element) Count(t host.MessageType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.messages {
		if m.Type == t {
			n++
		}
	}
	return n
}

// WaitFor polls until at least n messages of type t were posted or the
// timeout expires.
func (e *Element) WaitFor(t host.MessageType, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if e.Count(t) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Signals returns a copy of the emitted signals.
func (e *Element) Signals() []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Signal(nil), e.signals...)
}

// Reset drops everything recorded so far.
func (e *Element) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = nil
	e.signals = nil
}

var _ host.Element = (*Element)(nil)
