// Package host models the surface a media pipeline framework exposes to a
// sink element: state transitions, upstream events, queries, bus messages
// and the element services a sink needs from its container.
package host

import (
	"fmt"

	"github.com/zsiec/rialtosink/media"
)

// State is a pipeline element state.
type State int

const (
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

var stateNames = [...]string{"VOID_PENDING", "NULL", "READY", "PAUSED", "PLAYING"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateChange is a single-step transition between adjacent states.
type StateChange struct {
	From State
	To   State
}

// Transitions driven by the host, one step at a time.
var (
	NullToReady     = StateChange{From: StateNull, To: StateReady}
	ReadyToPaused   = StateChange{From: StateReady, To: StatePaused}
	PausedToPlaying = StateChange{From: StatePaused, To: StatePlaying}
	PlayingToPaused = StateChange{From: StatePlaying, To: StatePaused}
	PausedToReady   = StateChange{From: StatePaused, To: StateReady}
	ReadyToNull     = StateChange{From: StateReady, To: StateNull}
)

func (c StateChange) String() string { return c.From.String() + "->" + c.To.String() }

// StateChangeReturn is the result of a state change request.
type StateChangeReturn int

const (
	StateChangeFailure StateChangeReturn = iota
	StateChangeSuccess
	StateChangeAsync
	StateChangeNoPreroll
)

func (r StateChangeReturn) String() string {
	switch r {
	case StateChangeFailure:
		return "FAILURE"
	case StateChangeSuccess:
		return "SUCCESS"
	case StateChangeAsync:
		return "ASYNC"
	case StateChangeNoPreroll:
		return "NO_PREROLL"
	}
	return fmt.Sprintf("StateChangeReturn(%d)", int(r))
}

// FlowReturn is the result of handing a buffer to a sink.
type FlowReturn int

const (
	FlowOK FlowReturn = iota
	FlowFlushing
	FlowEOS
	FlowNotNegotiated
	FlowError
)

func (f FlowReturn) String() string {
	switch f {
	case FlowOK:
		return "OK"
	case FlowFlushing:
		return "FLUSHING"
	case FlowEOS:
		return "EOS"
	case FlowNotNegotiated:
		return "NOT_NEGOTIATED"
	case FlowError:
		return "ERROR"
	}
	return fmt.Sprintf("FlowReturn(%d)", int(f))
}

// Element is the set of services a sink needs from the framework object it
// is embedded in.
type Element interface {
	// Name identifies the element in logs and bus messages.
	Name() string
	// PostMessage posts a message on the pipeline bus.
	PostMessage(msg Message)
	// EmitSignal emits a named element signal.
	EmitSignal(name string, args ...any)
	// ParentKey returns the identity of the oldest parent container. Sinks
	// sharing a key share a coordinator.
	ParentKey() any
	// ParentProperty reads a property of the oldest parent container.
	ParentProperty(name string) (any, bool)
	// QueryContext runs a context query upstream and returns the context
	// structure when one is provided.
	QueryContext(contextType string) (*media.Structure, bool)
}

// SignalBufferUnderflow is emitted with (uint32(0), nil) when the renderer
// runs out of data for a source.
const SignalBufferUnderflow = "buffer-underflow-callback"

// ContextStreamsInfo is the context type carrying the expected number of
// streams per type.
const ContextStreamsInfo = "streams-info"
