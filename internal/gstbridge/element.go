// Package gstbridge connects a sink delegate to a GStreamer pipeline through
// an appsink, so the coordination engine can be driven by a real host.
package gstbridge

import (
	"log/slog"

	"github.com/go-gst/go-gst/gst"

	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/media"
)

// Element is the host.Element for one appsink. Bus messages posted by the
// delegate are forwarded on a shared channel; the channel is never closed
// by the element.
type Element struct {
	name     string
	pipeline *gst.Pipeline
	bus      chan<- host.Message
	log      *slog.Logger
}

// NewElement returns an element named name living in pipeline.
func NewElement(name string, pipeline *gst.Pipeline, bus chan<- host.Message, log *slog.Logger) *Element {
	if log == nil {
		log = slog.Default()
	}
	return &Element{
		name:     name,
		pipeline: pipeline,
		bus:      bus,
		log:      log.With("component", "gst-element", "element", name),
	}
}

func (e *Element) Name() string { return e.name }

// PostMessage forwards msg without blocking. Messages are dropped when the
// consumer falls behind.
func (e *Element) PostMessage(msg host.Message) {
	e.log.Debug("bus message", "message", msg.String())
	select {
	case e.bus <- msg:
	default:
		e.log.Warn("bus channel full, dropping message", "type", msg.Type.String())
	}
}

// EmitSignal relays the signal on the bus as an ELEMENT message; appsink
// has no matching GObject signal to emit.
func (e *Element) EmitSignal(name string, args ...any) {
	e.PostMessage(host.NewSignal(e.name, name, args...))
}

// ParentKey is the pipeline itself; every appsink of one pipeline shares a
// coordinator.
func (e *Element) ParentKey() any { return e.pipeline }

func (e *Element) ParentProperty(name string) (any, bool) {
	v, err := e.pipeline.GetProperty(name)
	if err != nil {
		return nil, false
	}
	return v, true
}

// QueryContext is not bridged; callers fall back to their defaults.
func (e *Element) QueryContext(contextType string) (*media.Structure, bool) {
	return nil, false
}

var _ host.Element = (*Element)(nil)
