// Package coordinator aggregates the sinks of one host pipeline into a
// single renderer session. It attaches sources, tracks per-source and
// pipeline state, decides when pause, play and allSourcesAttached reach the
// renderer, and routes renderer notifications back to the right sink.
//
// All coordinator state is owned by a message queue worker. Public methods
// marshal onto it with CallInLoop; renderer notifications are posted as
// tasks and never block the renderer.
package coordinator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/rialtosink/internal/msgqueue"
	"github.com/zsiec/rialtosink/internal/puller"
	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

// Sink is the coordinator's view of a sink delegate. The Handle methods
// are called on the coordinator's worker and must not block on it; ctx
// lets them call back into the coordinator inline.
type Sink interface {
	puller.Source

	Name() string
	HandleStateChanged(ctx context.Context, state ClientState)
	HandleFlushCompleted(ctx context.Context, resetTime bool)
	HandleEOS()
	HandleQos(qos media.QosInfo)
	HandleBufferUnderflow()
	HandleError(err error)
	HandleWarning(err error)
}

// AttachedSource is the coordinator's record of one attached stream.
type AttachedSource struct {
	ID   int32
	Type media.MediaType

	sink      Sink
	puller    *puller.Puller
	state     ClientState
	position  int64
	flushing  bool
	resetTime bool
}

// Coordinator drives one renderer session for every sink of a pipeline.
type Coordinator struct {
	log     *slog.Logger
	session string
	queue   *msgqueue.Queue
	backend renderer.Backend

	// Owned by the queue worker.
	sources       map[int32]*AttachedSource
	pipelineState ClientState
	serverState   media.PlaybackState
	counts        StreamCounts
	countsKnown   bool
	allAttached   bool
	position      int64
	duration      int64
}

// New creates a coordinator around backend and starts its queue. The
// backend is not created until CreateBackend. If log is nil, slog.Default()
// is used.
func New(backend renderer.Backend, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	session := uuid.NewString()
	log = log.With("component", "coordinator", "session", session)

	c := &Coordinator{
		log:           log,
		session:       session,
		queue:         msgqueue.New("coordinator", log),
		backend:       backend,
		sources:       make(map[int32]*AttachedSource),
		pipelineState: StateIdle,
		serverState:   media.PlaybackStateUnknown,
		position:      media.ClockTimeNone,
		duration:      media.ClockTimeNone,
	}
	c.queue.Start()
	return c
}

// Session returns the identifier used to correlate this coordinator's logs.
func (c *Coordinator) Session() string { return c.session }

// do runs fn on the loop and returns its error, or ErrStopped when fn
// could not run.
func (c *Coordinator) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	if !c.queue.CallInLoop(ctx, func(ctx context.Context) { err = fn(ctx) }) {
		return ErrStopped
	}
	return err
}

// CreateBackend creates the renderer session and loads the pull-mode URL.
// Failure leaves the coordinator unusable.
func (c *Coordinator) CreateBackend(ctx context.Context, maxWidth, maxHeight uint32) error {
	return c.do(ctx, func(context.Context) error {
		if err := c.backend.Create(c, maxWidth, maxHeight); err != nil {
			return backendErr("create", err)
		}
		if err := c.backend.Load(renderer.LoadMimeType, renderer.MSEURL); err != nil {
			return backendErr("load", err)
		}
		c.log.Info("renderer session created", "max_width", maxWidth, "max_height", maxHeight)
		return nil
	})
}

// IsCreated reports whether CreateBackend succeeded.
func (c *Coordinator) IsCreated(ctx context.Context) bool {
	created, _ := msgqueue.Call(ctx, c.queue, func(context.Context) bool {
		return c.backend.IsCreated()
	})
	return created
}

// AttachSource registers src with the renderer, assigning src.ID, and
// starts a puller reading from sink.
func (c *Coordinator) AttachSource(ctx context.Context, src *media.MediaSource, sink Sink) error {
	return c.do(ctx, func(ctx context.Context) error {
		if !c.backend.IsCreated() {
			return ErrNotCreated
		}
		if err := c.backend.AttachSource(src); err != nil {
			return backendErr("attach source", err)
		}

		p := puller.New(sink.Name(), sink, src.Type, c.log)
		p.Start()
		c.sources[src.ID] = &AttachedSource{
			ID:       src.ID,
			Type:     src.Type,
			sink:     sink,
			puller:   p,
			state:    StateReady,
			position: 0,
		}
		c.log.Info("source attached", "source", src.ID, "type", src.Type, "mime", src.MimeType, "sink", sink.Name())
		c.checkAllAttached(ctx)
		return nil
	})
}

// RemoveSource detaches a source from the renderer and stops its puller.
func (c *Coordinator) RemoveSource(ctx context.Context, id int32) error {
	return c.do(ctx, func(ctx context.Context) error {
		src, ok := c.sources[id]
		if !ok {
			return ErrNotAttached
		}
		delete(c.sources, id)
		src.puller.Stop(ctx)

		if err := c.backend.RemoveSource(id); err != nil {
			return backendErr("remove source", err)
		}
		c.log.Info("source removed", "source", id, "type", src.Type)
		return nil
	})
}

// SetStreamCounts records the expected number of streams unless counts are
// already known.
func (c *Coordinator) SetStreamCounts(ctx context.Context, counts StreamCounts) {
	c.queue.CallInLoop(ctx, func(ctx context.Context) {
		if c.countsKnown {
			return
		}
		c.counts = counts
		c.countsKnown = true
		c.log.Debug("stream counts", "audio", counts.Audio, "video", counts.Video, "text", counts.Text)
		c.checkAllAttached(ctx)
	})
}

// HandleStreamCollection replaces the expected counts with those announced
// upstream and re-evaluates attachment completeness.
func (c *Coordinator) HandleStreamCollection(ctx context.Context, audio, video, text int) {
	c.queue.CallInLoop(ctx, func(ctx context.Context) {
		c.counts = StreamCounts{Audio: audio, Video: video, Text: text}
		c.countsKnown = true
		c.log.Debug("stream collection", "audio", audio, "video", video, "text", text)
		c.checkAllAttached(ctx)
	})
}

func (c *Coordinator) attachedCount(t media.MediaType) int {
	n := 0
	for _, s := range c.sources {
		if s.Type == t {
			n++
		}
	}
	return n
}

func (c *Coordinator) allStreamsAttached() bool {
	if !c.countsKnown || len(c.sources) == 0 {
		return false
	}
	return c.attachedCount(media.MediaTypeAudio) >= c.counts.Audio &&
		c.attachedCount(media.MediaTypeVideo) >= c.counts.Video &&
		c.attachedCount(media.MediaTypeSubtitle) >= c.counts.Text
}

func (c *Coordinator) checkAllAttached(ctx context.Context) {
	if c.allAttached || !c.allStreamsAttached() {
		return
	}
	if err := c.backend.AllSourcesAttached(); err != nil {
		c.fatal(ctx, "all sources attached", err)
		return
	}
	c.allAttached = true
	c.log.Info("all sources attached", "sources", len(c.sources))
	c.setPipelineState(StateReady)
	c.maybeSendPause(ctx)
}

// Play requests PLAYING for one source.
func (c *Coordinator) Play(ctx context.Context, id int32) Result {
	r, ok := msgqueue.Call(ctx, c.queue, func(ctx context.Context) Result { return c.play(ctx, id) })
	if !ok {
		return NotAttached
	}
	return r
}

// Pause requests PAUSED for one source.
func (c *Coordinator) Pause(ctx context.Context, id int32) Result {
	r, ok := msgqueue.Call(ctx, c.queue, func(ctx context.Context) Result { return c.pause(ctx, id) })
	if !ok {
		return NotAttached
	}
	return r
}

// SourceState returns the state of one source.
func (c *Coordinator) SourceState(ctx context.Context, id int32) (ClientState, bool) {
	var (
		state ClientState
		found bool
	)
	c.queue.CallInLoop(ctx, func(context.Context) {
		if s, ok := c.sources[id]; ok {
			state, found = s.state, true
		}
	})
	return state, found
}

// PipelineState returns the aggregated state.
func (c *Coordinator) PipelineState(ctx context.Context) ClientState {
	s, _ := msgqueue.Call(ctx, c.queue, func(context.Context) ClientState { return c.pipelineState })
	return s
}

// Flush forwards a flush to the renderer, marks the source flushing and
// stops its puller until the renderer reports the source flushed. A flush
// for an unknown source is logged and ignored.
func (c *Coordinator) Flush(ctx context.Context, id int32, resetTime bool) error {
	return c.do(ctx, func(ctx context.Context) error {
		src, ok := c.sources[id]
		if !ok {
			c.log.Warn("flush for unknown source ignored", "source", id)
			return nil
		}
		if err := c.backend.Flush(id, resetTime); err != nil {
			return backendErr("flush", err)
		}
		src.flushing = true
		src.resetTime = resetTime
		src.puller.Stop(ctx)
		c.log.Debug("source flushing", "source", id, "reset_time", resetTime)
		return nil
	})
}

// SetSourcePosition forwards a new segment position and records it.
func (c *Coordinator) SetSourcePosition(ctx context.Context, id int32, position int64, resetTime bool, appliedRate float64, stopPosition int64) error {
	return c.do(ctx, func(context.Context) error {
		src, ok := c.sources[id]
		if !ok {
			return ErrNotAttached
		}
		if err := c.backend.SetSourcePosition(id, position, resetTime, appliedRate, stopPosition); err != nil {
			return backendErr("set source position", err)
		}
		src.position = position
		return nil
	})
}

// RequestPullBuffer hands a need-data request to the source's puller.
func (c *Coordinator) RequestPullBuffer(ctx context.Context, id int32, frameCount int, requestID uint32) {
	c.queue.CallInLoop(ctx, func(context.Context) {
		c.requestPull(id, frameCount, requestID)
	})
}

func (c *Coordinator) requestPull(id int32, frameCount int, requestID uint32) {
	src, ok := c.sources[id]
	if !ok {
		c.log.Warn("need data for unknown source", "source", id, "request", requestID)
		c.haveData(media.SourceStatusError, requestID)
		return
	}
	if src.flushing || !src.puller.RequestPull(id, frameCount, requestID, c) {
		c.haveData(media.SourceStatusNoAvailableSamples, requestID)
	}
}

func (c *Coordinator) haveData(status media.MediaSourceStatus, requestID uint32) {
	if err := c.backend.HaveData(status, requestID); err != nil {
		c.log.Warn("have data rejected", "request", requestID, "status", status, "error", err)
	}
}

// AddSegment hands one segment to the renderer. It is called from puller
// goroutines and bypasses the queue.
func (c *Coordinator) AddSegment(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus {
	return c.backend.AddSegment(requestID, seg)
}

// HaveData posts the acknowledgement of a pull request onto the queue.
func (c *Coordinator) HaveData(status media.MediaSourceStatus, requestID uint32) {
	c.post(&haveDataTask{c: c, status: status, requestID: requestID})
}

// fatal reports a backend failure that prevents forward progress.
func (c *Coordinator) fatal(ctx context.Context, op string, err error) {
	err = backendErr(op, err)
	c.log.Error("renderer call failed", "op", op, "error", err)
	c.failAll(ctx, err)
}

// failAll detaches every source from the renderer, resets positions and
// delivers err to each sink. Sinks see ErrNotAttached on a later
// RemoveSource.
func (c *Coordinator) failAll(ctx context.Context, err error) {
	failed := make([]*AttachedSource, 0, len(c.sources))
	for _, s := range c.sources {
		failed = append(failed, s)
	}
	clear(c.sources)

	var g errgroup.Group
	for _, s := range failed {
		p := s.puller
		g.Go(func() error {
			p.Stop(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range failed {
		if rerr := c.backend.RemoveSource(s.ID); rerr != nil {
			c.log.Warn("remove source after failure", "source", s.ID, "error", rerr)
		}
		s.position = 0
	}
	c.position = 0

	for _, s := range failed {
		s.sink.HandleError(err)
	}
}

// Destroy stops every puller, tears down the renderer session and stops
// the queue. The coordinator cannot be used afterwards.
func (c *Coordinator) Destroy(ctx context.Context) {
	c.queue.CallInLoop(ctx, func(ctx context.Context) {
		var g errgroup.Group
		for _, s := range c.sources {
			p := s.puller
			g.Go(func() error {
				p.Stop(ctx)
				return nil
			})
		}
		_ = g.Wait()

		if c.backend.IsCreated() {
			if err := c.backend.Stop(); err != nil {
				c.log.Warn("renderer stop failed", "error", err)
			}
			c.backend.Destroy()
		}
		clear(c.sources)
		c.log.Info("coordinator destroyed")
	})
	c.queue.Stop(ctx)
}

func (c *Coordinator) post(t msgqueue.Task) {
	if !c.queue.Post(t) {
		c.log.Debug("dropping notification after stop", "task", t)
	}
}

var (
	_ renderer.Client    = (*Coordinator)(nil)
	_ puller.Coordinator = (*Coordinator)(nil)
)
