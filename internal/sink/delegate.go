// Package sink implements the per-stream sink delegates that sit between a
// host media pipeline and a shared coordinator. A delegate follows host
// state transitions, turns upstream events into coordinator calls, queues
// samples for the pull worker and translates coordinator callbacks into
// bus messages.
//
// Delegates never hold their own lock while calling into the coordinator,
// since the coordinator calls back into them from its worker.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/parser"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/internal/samplebuf"
	"github.com/zsiec/rialtosink/media"
)

// Options configures a delegate.
type Options struct {
	// Registry shares coordinators between sinks. Nil uses registry.Default().
	Registry *registry.Registry
	// Capacity is the sample buffer high-water mark.
	Capacity int
	// SinglePath marks pipelines carrying only this sink's stream type.
	SinglePath bool
	// MaxVideoWidth and MaxVideoHeight seed the video sink's size hint.
	MaxVideoWidth  uint32
	MaxVideoHeight uint32
	Log            *slog.Logger
}

// Delegate is the behaviour shared by the audio, video and subtitle sinks.
type Delegate struct {
	log        *slog.Logger
	elem       host.Element
	variant    variant
	mediaType  media.MediaType
	reg        *registry.Registry
	buf        *samplebuf.Buffer
	translator *parser.Translator

	mu            sync.Mutex
	handle        *registry.Handle
	sourceID      int32
	attached      bool
	current       host.State
	target        host.State
	commitPending bool
	commitFrom    host.State
	eosPosted     bool
	rate          float64
	async         bool
	singlePath    bool
	hasDrm        bool
	pending       []pendingChange
}

func newDelegate(elem host.Element, t media.MediaType, opts Options, newVariant func(*slog.Logger) variant) *Delegate {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sink", "sink", elem.Name(), "type", t)
	v := newVariant(log)
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	return &Delegate{
		log:        log,
		elem:       elem,
		variant:    v,
		mediaType:  t,
		reg:        reg,
		buf:        samplebuf.New(opts.Capacity),
		translator: parser.NewTranslator(log),
		current:    host.StateNull,
		target:     host.StateNull,
		rate:       1.0,
		async:      v.defaultAsync(),
		singlePath: opts.SinglePath,
		hasDrm:     true,
	}
}

// NewAudio returns an audio sink delegate.
func NewAudio(elem host.Element, opts Options) *Delegate {
	return newDelegate(elem, media.MediaTypeAudio, opts, func(log *slog.Logger) variant {
		return newAudio(log)
	})
}

// NewVideo returns a video sink delegate.
func NewVideo(elem host.Element, opts Options) *Delegate {
	return newDelegate(elem, media.MediaTypeVideo, opts, func(log *slog.Logger) variant {
		return newVideo(log, opts.MaxVideoWidth, opts.MaxVideoHeight)
	})
}

// NewSubtitle returns a subtitle sink delegate. Subtitle sinks commit state
// changes synchronously unless the async property is set.
func NewSubtitle(elem host.Element, opts Options) *Delegate {
	return newDelegate(elem, media.MediaTypeSubtitle, opts, func(log *slog.Logger) variant {
		return newSubtitle(log)
	})
}

// Name returns the element name.
func (d *Delegate) Name() string { return d.elem.Name() }

// MediaType returns the stream type handled by this sink.
func (d *Delegate) MediaType() media.MediaType { return d.mediaType }

// SourceID returns the renderer source id and whether the source is attached.
func (d *Delegate) SourceID() (int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sourceID, d.attached
}

// State returns the committed host state.
func (d *Delegate) State() host.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// session returns the coordinator, source id and attachment flag.
func (d *Delegate) session() (*coordinator.Coordinator, int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionLocked()
}

func (d *Delegate) coordinator() *coordinator.Coordinator {
	c, _, _ := d.session()
	return c
}

func (d *Delegate) isController() bool {
	d.mu.Lock()
	h := d.handle
	d.mu.Unlock()
	return h != nil && h.IsController()
}

// ChangeState performs one host state transition.
func (d *Delegate) ChangeState(ctx context.Context, change host.StateChange) host.StateChangeReturn {
	d.log.Debug("state change", "transition", change)

	var ret host.StateChangeReturn
	switch change {
	case host.NullToReady:
		ret = d.toReady(ctx)
	case host.ReadyToPaused:
		ret = d.readyToPaused(ctx)
	case host.PausedToPlaying:
		ret = d.request(ctx, change, host.StatePlaying)
	case host.PlayingToPaused:
		ret = d.request(ctx, change, host.StatePaused)
	case host.PausedToReady:
		ret = d.pausedToReady(ctx)
	case host.ReadyToNull:
		ret = d.toNull(ctx)
	default:
		ret = host.StateChangeSuccess
	}

	if ret == host.StateChangeSuccess {
		d.mu.Lock()
		d.current = change.To
		d.mu.Unlock()
	}
	return ret
}

func (d *Delegate) toReady(ctx context.Context) host.StateChangeReturn {
	if d.reg == nil {
		d.postError(ErrNoRegistry)
		return host.StateChangeFailure
	}
	h, err := d.reg.Attach(ctx, d.elem.ParentKey(), d.variant.hint())
	if err != nil {
		d.postError(err)
		return host.StateChangeFailure
	}
	d.buf.Reset()

	d.mu.Lock()
	d.handle = h
	d.target = host.StateReady
	d.mu.Unlock()
	return host.StateChangeSuccess
}

func (d *Delegate) readyToPaused(ctx context.Context) host.StateChangeReturn {
	d.mu.Lock()
	h := d.handle
	singlePath := d.singlePath
	attached := d.attached
	d.mu.Unlock()
	if h == nil {
		return host.StateChangeFailure
	}

	counts := coordinator.ResolveStreamCounts(d.elem, d.mediaType, singlePath)
	h.Coordinator.SetStreamCounts(ctx, counts)

	if attached {
		return d.request(ctx, host.ReadyToPaused, host.StatePaused)
	}
	ret := d.pendingCommit(host.ReadyToPaused, host.StatePaused)
	// A source removed on PAUSED->READY is re-attached from the last caps.
	if caps := d.buf.Caps(); caps != nil && !d.attachSource(ctx, caps) {
		d.cancelCommit()
		return host.StateChangeFailure
	}
	return ret
}

// request asks the coordinator for state and reports whether the host must
// wait for the renderer.
func (d *Delegate) request(ctx context.Context, change host.StateChange, state host.State) host.StateChangeReturn {
	ret := d.pendingCommit(change, state)
	c, id, attached := d.session()
	if c == nil {
		d.cancelCommit()
		return host.StateChangeFailure
	}
	if !attached {
		return ret
	}

	var r coordinator.Result
	if state == host.StatePlaying {
		r = c.Play(ctx, id)
	} else {
		r = c.Pause(ctx, id)
	}
	if r == coordinator.SuccessSync {
		d.cancelCommit()
		return host.StateChangeSuccess
	}
	return ret
}

// pendingCommit records that change completes when the renderer reports
// the target state. Synchronous sinks complete immediately.
func (d *Delegate) pendingCommit(change host.StateChange, target host.State) host.StateChangeReturn {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
	if !d.async {
		return host.StateChangeSuccess
	}
	d.commitPending = true
	d.commitFrom = change.From
	return host.StateChangeAsync
}

func (d *Delegate) cancelCommit() {
	d.mu.Lock()
	d.commitPending = false
	d.mu.Unlock()
}

func (d *Delegate) pausedToReady(ctx context.Context) host.StateChangeReturn {
	d.buf.Stop()

	c, id, attached := d.session()
	if attached {
		// A renderer failure already detached every source.
		if err := c.RemoveSource(ctx, id); err != nil && !errors.Is(err, coordinator.ErrNotAttached) {
			d.HandleWarning(err)
		}
	}
	// The caps survive so READY->PAUSED can re-attach without a new CAPS
	// event.
	caps := d.buf.Caps()
	d.buf.Reset()
	d.buf.SetCaps(caps)

	d.mu.Lock()
	d.attached = false
	d.eosPosted = false
	d.target = host.StateReady
	pending := d.commitPending
	d.commitPending = false
	d.mu.Unlock()

	if pending {
		d.elem.PostMessage(host.NewAsyncDone(d.Name()))
	}
	return host.StateChangeSuccess
}

func (d *Delegate) toNull(ctx context.Context) host.StateChangeReturn {
	d.mu.Lock()
	h := d.handle
	d.handle = nil
	d.target = host.StateNull
	d.pending = nil
	d.mu.Unlock()

	if h != nil {
		h.Release(ctx)
	}
	return host.StateChangeSuccess
}

// attachSource builds the source descriptor for caps and attaches it.
func (d *Delegate) attachSource(ctx context.Context, caps *media.Caps) bool {
	c := d.coordinator()
	if c == nil {
		d.log.Warn("caps before the sink reached READY")
		return false
	}

	src, err := d.translator.Source(d.mediaType, caps)
	if err != nil {
		d.postError(err)
		return false
	}
	d.mu.Lock()
	src.IsAsync = d.async
	src.HasDrm = src.HasDrm || d.hasDrm
	d.mu.Unlock()

	if err := c.AttachSource(ctx, src, d); err != nil {
		d.postError(err)
		return false
	}

	d.mu.Lock()
	d.sourceID = src.ID
	d.attached = true
	pending := d.pending
	d.pending = nil
	target := d.target
	d.mu.Unlock()
	d.log.Info("source attached", "source", src.ID, "mime", src.MimeType)

	for _, p := range pending {
		if err := p.apply(ctx, c, src.ID); err != nil {
			d.HandleWarning(&PropertyError{Name: p.name, Err: err})
		}
	}
	if seg, ok := d.buf.Segment(); ok {
		d.setSourcePosition(ctx, c, src.ID, &seg)
	}

	switch target {
	case host.StatePaused:
		d.commitIfSync(c.Pause(ctx, src.ID), host.StatePaused)
	case host.StatePlaying:
		c.Pause(ctx, src.ID)
		d.commitIfSync(c.Play(ctx, src.ID), host.StatePlaying)
	}
	return true
}

func (d *Delegate) commitIfSync(r coordinator.Result, state host.State) {
	if r == coordinator.SuccessSync {
		d.completeCommit(state)
	}
}

// completeCommit finishes a pending asynchronous transition.
func (d *Delegate) completeCommit(state host.State) {
	d.mu.Lock()
	if !d.commitPending || state < d.target {
		d.mu.Unlock()
		return
	}
	d.commitPending = false
	from := d.commitFrom
	// A source that was asked to play before its preroll committed reports
	// PLAYING; the host only waits for PAUSED.
	state = d.target
	d.current = state
	d.mu.Unlock()

	name := d.Name()
	d.elem.PostMessage(host.NewStateChanged(name, from, state, host.StateVoidPending))
	d.elem.PostMessage(host.NewAsyncDone(name))
}

func (d *Delegate) postError(err error) {
	d.log.Error("sink error", "error", err)
	d.elem.PostMessage(host.NewError(d.Name(), err))
}

// HandleBuffer queues a sample for the pull worker. It blocks while the
// buffer is full.
func (d *Delegate) HandleBuffer(ctx context.Context, s *media.Sample) host.FlowReturn {
	caps := d.buf.Caps()
	if caps == nil {
		return host.FlowNotNegotiated
	}
	if s.Caps == nil {
		s.Caps = caps
	}
	if s.Segment == nil {
		if seg, ok := d.buf.Segment(); ok {
			s.Segment = &seg
		}
	}

	err := d.buf.Push(ctx, s)
	switch {
	case err == nil:
		return host.FlowOK
	case errors.Is(err, samplebuf.ErrFlushing), errors.Is(err, samplebuf.ErrStopped):
		return host.FlowFlushing
	}
	d.log.Debug("push aborted", "error", err)
	return host.FlowError
}

// HandleQuery answers SEEKING, POSITION and SEGMENT queries.
func (d *Delegate) HandleQuery(ctx context.Context, q *host.Query) bool {
	switch q.Type {
	case host.QuerySeeking:
		q.Seekable = false
		q.SegmentStart = 0
		q.SegmentEnd = media.ClockTimeNone
		return true
	case host.QueryPosition:
		c, id, attached := d.session()
		if !attached {
			return false
		}
		pos, err := c.Position(ctx, id)
		if err != nil {
			return false
		}
		q.Position = pos
		return true
	case host.QuerySegment:
		seg, ok := d.buf.Segment()
		if !ok {
			return false
		}
		q.Rate = seg.Rate
		q.Start = seg.Start
		q.Stop = seg.Stop
		return true
	}
	return false
}
