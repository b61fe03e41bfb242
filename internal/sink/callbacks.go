package sink

import (
	"context"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/media"
)

// The methods below implement coordinator.Sink. They run on the
// coordinator's worker.

// Peek returns the next queued sample.
func (d *Delegate) Peek() (*media.Sample, bool) { return d.buf.Peek() }

// PopIf removes s if it is still the head of the queue.
func (d *Delegate) PopIf(s *media.Sample) bool { return d.buf.PopIf(s) }

// IsEOS reports whether upstream signalled end of stream.
func (d *Delegate) IsEOS() bool { return d.buf.IsEOS() }

// HandleStateChanged completes a pending asynchronous transition once the
// renderer has reached a committed state.
func (d *Delegate) HandleStateChanged(_ context.Context, state coordinator.ClientState) {
	switch state {
	case coordinator.StatePaused:
		d.completeCommit(host.StatePaused)
	case coordinator.StatePlaying:
		d.completeCommit(host.StatePlaying)
	}
}

// HandleFlushCompleted ends server-side flushing and reports the flush on
// the bus.
func (d *Delegate) HandleFlushCompleted(_ context.Context, resetTime bool) {
	d.buf.SetServerFlushing(false)
	d.elem.PostMessage(host.NewFlushCompleted(d.Name()))
	if resetTime {
		d.elem.PostMessage(host.NewResetTime(d.Name()))
	}
}

// HandleEOS posts EOS once per stream.
func (d *Delegate) HandleEOS() {
	d.mu.Lock()
	posted := d.eosPosted
	d.eosPosted = true
	d.mu.Unlock()
	if !posted {
		d.elem.PostMessage(host.NewEOS(d.Name()))
	}
}

func (d *Delegate) HandleQos(qos media.QosInfo) {
	d.elem.PostMessage(host.NewQos(d.Name(), qos))
}

func (d *Delegate) HandleBufferUnderflow() {
	d.elem.EmitSignal(host.SignalBufferUnderflow, uint32(0), nil)
}

func (d *Delegate) HandleError(err error) {
	d.postError(err)
}

func (d *Delegate) HandleWarning(err error) {
	d.log.Warn("sink warning", "error", err)
	d.elem.PostMessage(host.NewWarning(d.Name(), err))
}

var _ coordinator.Sink = (*Delegate)(nil)
