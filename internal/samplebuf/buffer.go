// Package samplebuf implements the bounded per-sink sample FIFO that sits
// between the host's streaming thread and the pull worker.
package samplebuf

import (
	"context"
	"errors"
	"sync"

	"github.com/zsiec/rialtosink/media"
)

// DefaultCapacity is the maximum number of queued samples.
const DefaultCapacity = 24

var (
	// ErrFlushing is returned by Push while the sink is flushing.
	ErrFlushing = errors.New("samplebuf: flushing")
	// ErrStopped is returned by Push after Stop.
	ErrStopped = errors.New("samplebuf: stopped")
)

// Buffer is a bounded FIFO of samples plus the stream metadata the sink
// shares with its puller: current caps, segment, EOS and the two flush
// flags. Push blocks while the FIFO is full; the consumer never blocks.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	samples  []*media.Sample

	caps       *media.Caps
	segment    media.Segment
	hasSegment bool
	eos        bool

	// sinkFlushing is set between FLUSH_START and FLUSH_STOP; pushes fail.
	sinkFlushing bool
	// serverFlushing is set until the renderer acknowledges a flush; peeks
	// return nothing.
	serverFlushing bool
	stopped        bool
}

// New returns an empty buffer. Capacities outside 1..DefaultCapacity are
// clamped to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 || capacity > DefaultCapacity {
		capacity = DefaultCapacity
	}
	b := &Buffer{capacity: capacity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Capacity returns the high-water mark.
func (b *Buffer) Capacity() int { return b.capacity }

// Push appends s, blocking while the buffer is full. It is woken by Pop,
// Clear, Flush, Stop or ctx cancellation.
func (b *Buffer) Push(ctx context.Context, s *media.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pushErr(ctx); err != nil {
		return err
	}
	if len(b.samples) >= b.capacity {
		wake := context.AfterFunc(ctx, func() {
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		})
		defer wake()
		for len(b.samples) >= b.capacity {
			if err := b.pushErr(ctx); err != nil {
				return err
			}
			b.cond.Wait()
		}
		if err := b.pushErr(ctx); err != nil {
			return err
		}
	}
	b.samples = append(b.samples, s)
	return nil
}

func (b *Buffer) pushErr(ctx context.Context) error {
	switch {
	case b.stopped:
		return ErrStopped
	case b.sinkFlushing:
		return ErrFlushing
	}
	return ctx.Err()
}

// Peek returns the oldest sample without removing it. Nothing is returned
// while the renderer has not acknowledged a flush.
func (b *Buffer) Peek() (*media.Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.serverFlushing || len(b.samples) == 0 {
		return nil, false
	}
	return b.samples[0], true
}

// Pop removes the oldest sample and wakes a blocked producer.
func (b *Buffer) Pop() (*media.Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return nil, false
	}
	s := b.samples[0]
	b.samples[0] = nil
	b.samples = b.samples[1:]
	b.cond.Broadcast()
	return s, true
}

// PopIf removes the oldest sample only if it is s. A flush between a Peek
// and the matching pop leaves a newer sample at the front, which must not
// be consumed.
func (b *Buffer) PopIf(s *media.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 || b.samples[0] != s {
		return false
	}
	b.samples[0] = nil
	b.samples = b.samples[1:]
	b.cond.Broadcast()
	return true
}

// Len returns the number of queued samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Clear drops every queued sample and wakes blocked producers.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainLocked()
}

func (b *Buffer) drainLocked() {
	clear(b.samples)
	b.samples = b.samples[:0]
	b.cond.Broadcast()
}

// Flush enters sink-flushing: the FIFO is drained, EOS is cleared and
// pushes fail until ResumeAfterFlush.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinkFlushing = true
	b.eos = false
	b.drainLocked()
}

// ResumeAfterFlush leaves sink-flushing so pushes are accepted again.
func (b *Buffer) ResumeAfterFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinkFlushing = false
}

// IsFlushing reports whether the sink is between FLUSH_START and FLUSH_STOP.
func (b *Buffer) IsFlushing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sinkFlushing
}

// SetServerFlushing marks whether a renderer flush is outstanding.
func (b *Buffer) SetServerFlushing(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serverFlushing = v
}

// IsServerFlushing reports whether a renderer flush is outstanding.
func (b *Buffer) IsServerFlushing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serverFlushing
}

// SetEOS records whether upstream signalled end of stream.
func (b *Buffer) SetEOS(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eos = v
}

// IsEOS reports whether upstream signalled end of stream.
func (b *Buffer) IsEOS() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eos
}

// SetCaps stores the most recent caps.
func (b *Buffer) SetCaps(c *media.Caps) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caps = c
}

// Caps returns the most recent caps.
func (b *Buffer) Caps() *media.Caps {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps
}

// SetSegment stores a copy of the most recent segment.
func (b *Buffer) SetSegment(seg media.Segment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segment = seg
	b.hasSegment = true
}

// Segment returns a copy of the most recent segment.
func (b *Buffer) Segment() (media.Segment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.segment, b.hasSegment
}

// Stop drops every sample and fails current and future pushes until Reset.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.drainLocked()
}

// Reset returns the buffer to its initial state.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainLocked()
	b.stopped = false
	b.sinkFlushing = false
	b.serverFlushing = false
	b.eos = false
	b.caps = nil
	b.segment = media.Segment{}
	b.hasSegment = false
}
