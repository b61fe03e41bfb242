package host

import (
	"fmt"

	"github.com/zsiec/rialtosink/media"
)

// MessageType identifies a bus message.
type MessageType int

const (
	MessageStateChanged MessageType = iota
	MessageAsyncDone
	MessageEOS
	MessageError
	MessageWarning
	MessageQos
	MessageFlushCompleted
	MessageResetTime
	MessageElement
)

var messageNames = [...]string{
	"STATE_CHANGED", "ASYNC_DONE", "EOS", "ERROR", "WARNING", "QOS",
	"FLUSH_COMPLETED", "RESET_TIME", "ELEMENT",
}

func (t MessageType) String() string {
	if t >= 0 && int(t) < len(messageNames) {
		return messageNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message is a bus message posted by a sink. Only the fields relevant to
// Type are set.
type Message struct {
	Type   MessageType
	Source string

	// StateChanged
	OldState     State
	NewState     State
	PendingState State

	// Error, Warning
	Err error

	// Qos
	Qos    media.QosInfo
	Format media.Format

	// AsyncDone, ResetTime
	RunningTime int64

	// Element: a signal relayed by a bridge without native signals.
	Signal string
	Args   []any
}

func (m Message) String() string {
	switch m.Type {
	case MessageStateChanged:
		return fmt.Sprintf("%s %s: %s->%s (pending %s)", m.Type, m.Source, m.OldState, m.NewState, m.PendingState)
	case MessageError, MessageWarning:
		return fmt.Sprintf("%s %s: %v", m.Type, m.Source, m.Err)
	case MessageQos:
		return fmt.Sprintf("%s %s: processed=%d dropped=%d", m.Type, m.Source, m.Qos.Processed, m.Qos.Dropped)
	case MessageElement:
		return fmt.Sprintf("%s %s: %s%v", m.Type, m.Source, m.Signal, m.Args)
	}
	return fmt.Sprintf("%s %s", m.Type, m.Source)
}

// NewStateChanged builds a STATE_CHANGED message.
func NewStateChanged(src string, oldState, newState, pending State) Message {
	return Message{Type: MessageStateChanged, Source: src, OldState: oldState, NewState: newState, PendingState: pending}
}

// NewAsyncDone builds an ASYNC_DONE message with no running time.
func NewAsyncDone(src string) Message {
	return Message{Type: MessageAsyncDone, Source: src, RunningTime: media.ClockTimeNone}
}

// NewEOS builds an EOS message.
func NewEOS(src string) Message {
	return Message{Type: MessageEOS, Source: src}
}

// NewError builds an ERROR message.
func NewError(src string, err error) Message {
	return Message{Type: MessageError, Source: src, Err: err}
}

// NewWarning builds a WARNING message.
func NewWarning(src string, err error) Message {
	return Message{Type: MessageWarning, Source: src, Err: err}
}

// NewQos builds a QOS message in buffer units.
func NewQos(src string, qos media.QosInfo) Message {
	return Message{Type: MessageQos, Source: src, Qos: qos, Format: media.FormatBuffers}
}

// NewFlushCompleted builds the message announcing that a flush handshake
// with the renderer finished.
func NewFlushCompleted(src string) Message {
	return Message{Type: MessageFlushCompleted, Source: src}
}

// NewResetTime builds a RESET_TIME message with running time zero.
func NewResetTime(src string) Message {
	return Message{Type: MessageResetTime, Source: src}
}

// NewSignal builds an ELEMENT message carrying an emitted signal.
func NewSignal(src, name string, args ...any) Message {
	return Message{Type: MessageElement, Source: src, Signal: name, Args: args}
}
