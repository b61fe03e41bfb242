package sink

import (
	"context"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/media"
)

// HandleEvent processes an upstream event and reports whether it was
// handled.
func (d *Delegate) HandleEvent(ctx context.Context, ev *host.Event) bool {
	d.log.Debug("event", "type", ev.Type)

	switch ev.Type {
	case host.EventCaps:
		return d.handleCaps(ctx, ev.Caps)
	case host.EventSegment:
		return d.handleSegment(ctx, ev.Segment)
	case host.EventEOS:
		d.buf.SetEOS(true)
		return true
	case host.EventFlushStart:
		d.buf.Flush()
		d.mu.Lock()
		d.eosPosted = false
		d.mu.Unlock()
		return true
	case host.EventFlushStop:
		return d.handleFlushStop(ctx, ev.ResetTime)
	case host.EventStreamCollection:
		c := d.coordinator()
		if c == nil || ev.Collection == nil {
			return false
		}
		audio, video, text := ev.Collection.Counts()
		c.HandleStreamCollection(ctx, audio, video, text)
		return true
	case host.EventInstantRateChange:
		// The rate takes effect with the following sync-time event.
		return true
	case host.EventInstantRateSyncTime:
		d.setPlaybackRate(ctx, ev.Rate)
		return true
	case host.EventCustomDownstream:
		return d.handleCustom(ctx, ev.Structure)
	}
	return false
}

func (d *Delegate) handleCaps(ctx context.Context, caps *media.Caps) bool {
	if caps == nil || caps.First() == nil {
		return false
	}
	d.log.Debug("caps", "caps", caps.Describe())
	d.buf.SetCaps(caps)

	if _, attached := d.SourceID(); attached {
		return true
	}
	return d.attachSource(ctx, caps)
}

func (d *Delegate) handleSegment(ctx context.Context, seg *media.Segment) bool {
	if seg == nil {
		return false
	}
	d.buf.SetSegment(*seg)

	c, id, attached := d.session()
	if attached {
		d.setSourcePosition(ctx, c, id, seg)
	}
	if seg.Rate != 0 {
		d.setPlaybackRate(ctx, seg.Rate)
	}
	return true
}

func (d *Delegate) setSourcePosition(ctx context.Context, c *coordinator.Coordinator, id int32, seg *media.Segment) {
	position := seg.Start
	if seg.Rate < 0 && seg.Stop != media.ClockTimeNone {
		position = seg.Stop
	}
	if err := c.SetSourcePosition(ctx, id, position, false, seg.AppliedRate, seg.Stop); err != nil {
		d.HandleWarning(err)
	}
}

// setPlaybackRate changes the renderer rate when this sink controls the
// session and the rate differs from the last one applied.
func (d *Delegate) setPlaybackRate(ctx context.Context, rate float64) {
	if !d.isController() {
		return
	}
	d.mu.Lock()
	same := d.rate == rate
	d.rate = rate
	d.mu.Unlock()
	if same {
		return
	}

	c := d.coordinator()
	if c == nil {
		return
	}
	if err := c.SetPlaybackRate(ctx, rate); err != nil {
		d.log.Warn("failed to set playback rate", "rate", rate, "error", err)
		d.elem.PostMessage(host.NewWarning(d.Name(), err))
	}
}

func (d *Delegate) handleFlushStop(ctx context.Context, resetTime bool) bool {
	d.buf.ResumeAfterFlush()
	d.buf.SetEOS(false)

	c, id, attached := d.session()
	if !attached {
		return true
	}
	d.buf.SetServerFlushing(true)
	if err := c.Flush(ctx, id, resetTime); err != nil {
		d.buf.SetServerFlushing(false)
		d.HandleWarning(err)
	}
	return true
}

func (d *Delegate) handleCustom(ctx context.Context, st *media.Structure) bool {
	if st == nil {
		return false
	}
	if st.Name == host.CustomInstantRateChange {
		rate, ok := st.Float("rate")
		if !ok {
			return false
		}
		d.setPlaybackRate(ctx, rate)
		return true
	}
	return d.variant.handleCustom(ctx, d, st)
}
