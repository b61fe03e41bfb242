package gstbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/sink"
	"github.com/zsiec/rialtosink/media"
)

// Constructor builds a sink delegate for an element; sink.NewVideo,
// sink.NewAudio and sink.NewSubtitle partially applied to their options.
type Constructor func(elem host.Element) *sink.Delegate

// Sink feeds the samples of one appsink into a delegate. The first sample
// and every caps change produce a CAPS event; a default SEGMENT precedes
// the first buffer.
type Sink struct {
	Delegate *sink.Delegate

	ctx context.Context
	log *slog.Logger

	mu        sync.Mutex
	caps      string
	segmented bool
}

// Attach looks up the appsink called name in pipeline, wraps it in a
// delegate built by newSink and installs the appsink callbacks. ctx bounds
// every call the callbacks make into the delegate.
func Attach(ctx context.Context, pipeline *gst.Pipeline, name string, newSink Constructor, bus chan<- host.Message, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	elem, err := pipeline.GetElementByName(name)
	if err != nil {
		return nil, fmt.Errorf("appsink %s: %w", name, err)
	}

	s := &Sink{
		Delegate: newSink(NewElement(name, pipeline, bus, log)),
		ctx:      ctx,
		log:      log.With("component", "gst-bridge", "element", name),
	}
	app.SinkFromElement(elem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onSample,
		EOSFunc: func(*app.Sink) {
			s.log.Debug("upstream EOS")
			s.Delegate.HandleEvent(s.ctx, host.NewEOSEvent())
		},
	})
	return s, nil
}

// Flush runs the FLUSH_START/FLUSH_STOP pair on the delegate and forces a
// fresh SEGMENT before the next buffer.
func (s *Sink) Flush(resetTime bool) {
	s.Delegate.HandleEvent(s.ctx, host.NewFlushStartEvent())
	s.Delegate.HandleEvent(s.ctx, host.NewFlushStopEvent(resetTime))
	s.mu.Lock()
	s.segmented = false
	s.mu.Unlock()
}

func (s *Sink) onSample(appSink *app.Sink) gst.FlowReturn {
	sample := appSink.PullSample()
	if sample == nil {
		return gst.FlowEOS
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowError
	}

	if caps := sample.GetCaps(); caps != nil {
		if !s.updateCaps(caps.String()) {
			return gst.FlowNotNegotiated
		}
	}
	s.ensureSegment()

	data := buffer.Map(gst.MapRead).Bytes()
	ms := &media.Sample{
		Data:     append([]byte(nil), data...),
		PTS:      clockTime(buffer.PresentationTimestamp()),
		Duration: clockTime(buffer.Duration()),
	}
	buffer.Unmap()

	return flowReturn(s.Delegate.HandleBuffer(s.ctx, ms))
}

func (s *Sink) updateCaps(str string) bool {
	s.mu.Lock()
	same := str == s.caps
	s.mu.Unlock()
	if same {
		return true
	}

	caps, err := media.ParseCaps(str)
	if err != nil {
		s.log.Error("unparseable caps", "caps", str, "error", err)
		return false
	}
	if !s.Delegate.HandleEvent(s.ctx, host.NewCapsEvent(caps)) {
		s.log.Warn("caps rejected", "caps", caps.Describe())
		return false
	}
	s.log.Info("caps", "caps", caps.Describe())

	s.mu.Lock()
	s.caps = str
	s.mu.Unlock()
	return true
}

func (s *Sink) ensureSegment() {
	s.mu.Lock()
	done := s.segmented
	s.segmented = true
	s.mu.Unlock()
	if done {
		return
	}
	seg := media.DefaultSegment()
	s.Delegate.HandleEvent(s.ctx, host.NewSegmentEvent(&seg))
}

func clockTime(t gst.ClockTime) int64 {
	if t == gst.ClockTimeNone {
		return media.ClockTimeNone
	}
	return int64(t)
}

func flowReturn(r host.FlowReturn) gst.FlowReturn {
	switch r {
	case host.FlowOK:
		return gst.FlowOK
	case host.FlowFlushing:
		return gst.FlowFlushing
	case host.FlowEOS:
		return gst.FlowEOS
	case host.FlowNotNegotiated:
		return gst.FlowNotNegotiated
	}
	return gst.FlowError
}
