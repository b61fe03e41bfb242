// Package loopback provides an in-process renderer that consumes segments
// without decoding them. It acknowledges state changes and flushes the way
// a remote renderer does and issues need-data requests on a timer, which
// makes it suitable for dry runs of a pipeline when no renderer is
// reachable.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

var (
	ErrUnsupportedLoad = errors.New("loopback: unsupported load")
	ErrUnknownRequest  = errors.New("loopback: unknown request")
)

const (
	defaultFrameCount = 3
	defaultInterval   = 40 * time.Millisecond
	notifyQueueSize   = 64
)

// Options configures a Renderer.
type Options struct {
	// FrameCount is the number of frames asked for per need-data request.
	FrameCount int
	// Interval is the need-data polling period.
	Interval time.Duration
	Log      *slog.Logger
}

type source struct {
	src       *media.MediaSource
	request   uint32 // outstanding need-data request, 0 if none
	delivered int    // segments added for the outstanding request
	eos       bool
	rendered  uint64
	dropped   uint64
	mute      bool
	immediate bool
}

// Renderer is a renderer.Backend that discards media.
type Renderer struct {
	log        *slog.Logger
	frameCount int
	interval   time.Duration

	mu          sync.Mutex
	client      renderer.Client
	created     bool
	loaded      bool
	allAttached bool
	state       media.PlaybackState
	nextID      int32
	nextRequest uint32
	sources     map[int32]*source
	position    int64
	rate        float64
	window      media.Rectangle
	segments    uint64

	volume         float64
	sync           bool
	syncOff        bool
	streamSyncMode int32
	bufferingLimit uint32
	useBuffering   bool
	textTrack      string

	notify chan func(renderer.Client)
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an uncreated loopback renderer.
func New(opts Options) *Renderer {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.FrameCount <= 0 {
		opts.FrameCount = defaultFrameCount
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Renderer{
		log:            log.With("component", "loopback"),
		frameCount:     opts.FrameCount,
		interval:       opts.Interval,
		state:          media.PlaybackStateUnknown,
		nextID:         1,
		sources:        make(map[int32]*source),
		rate:           1.0,
		volume:         1.0,
		bufferingLimit: ^uint32(0),
	}
}

// Factory returns a renderer.Factory producing loopback renderers.
func Factory(opts Options) renderer.Factory {
	return func() renderer.Backend { return New(opts) }
}

func (r *Renderer) Create(client renderer.Client, maxWidth, maxHeight uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created {
		return errors.New("loopback: already created")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.client = client
	r.created = true
	r.state = media.PlaybackStateIdle
	r.notify = make(chan func(renderer.Client), notifyQueueSize)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)

	r.log.Info("loopback renderer created", "max_width", maxWidth, "max_height", maxHeight)
	return nil
}

func (r *Renderer) IsCreated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

func (r *Renderer) Load(mimeType, url string) error {
	if mimeType != renderer.LoadMimeType || url != renderer.MSEURL {
		return fmt.Errorf("%w: %s %s", ErrUnsupportedLoad, mimeType, url)
	}
	r.mu.Lock()
	r.loaded = true
	r.mu.Unlock()
	r.post(func(c renderer.Client) { c.NotifyNetworkState(media.NetworkStateBuffered) })
	return nil
}

func (r *Renderer) AttachSource(src *media.MediaSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return errors.New("loopback: attach before load")
	}
	src.ID = r.nextID
	r.nextID++
	cp := *src
	r.sources[src.ID] = &source{src: &cp}
	r.log.Debug("source attached", "source", src.ID, "mime", src.MimeType)
	return nil
}

func (r *Renderer) RemoveSource(id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; !ok {
		return renderer.ErrUnknownSource
	}
	delete(r.sources, id)
	return nil
}

func (r *Renderer) AllSourcesAttached() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allAttached = true
	return nil
}

func (r *Renderer) SwitchSource(src *media.MediaSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[src.ID]
	if !ok {
		return renderer.ErrUnknownSource
	}
	cp := *src
	s.src = &cp
	return nil
}

// Destroy stops the request loop. Queued notifications are discarded.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	if !r.created {
		r.mu.Unlock()
		return
	}
	r.created = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info("loopback renderer destroyed")
}

func (r *Renderer) setState(state media.PlaybackState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	r.post(func(c renderer.Client) { c.NotifyPlaybackState(state) })
}

func (r *Renderer) Play() error {
	r.setState(media.PlaybackStatePlaying)
	return nil
}

func (r *Renderer) Pause() error {
	r.setState(media.PlaybackStatePaused)
	return nil
}

func (r *Renderer) Stop() error {
	r.setState(media.PlaybackStateStopped)
	return nil
}

func (r *Renderer) SetPlaybackRate(rate float64) error {
	if rate == 0 {
		return errors.New("loopback: zero playback rate")
	}
	r.mu.Lock()
	r.rate = rate
	r.mu.Unlock()
	return nil
}

func (r *Renderer) SetVideoWindow(rect media.Rectangle) error {
	r.mu.Lock()
	r.window = rect
	r.mu.Unlock()
	return nil
}

// Flush drops the outstanding request of a source and acknowledges the
// flush asynchronously.
func (r *Renderer) Flush(id int32, resetTime bool) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return renderer.ErrUnknownSource
	}
	s.request = 0
	s.delivered = 0
	s.eos = false
	if resetTime {
		r.position = 0
	}
	r.mu.Unlock()

	r.post(func(c renderer.Client) { c.NotifySourceFlushed(id) })
	return nil
}

func (r *Renderer) SetSourcePosition(id int32, position int64, _ bool, _ float64, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; !ok {
		return renderer.ErrUnknownSource
	}
	r.position = position
	return nil
}

func (r *Renderer) RenderFrame() error { return nil }

// HaveData completes a need-data request.
func (r *Renderer) HaveData(status media.MediaSourceStatus, requestID uint32) error {
	r.mu.Lock()
	s := r.sourceForRequest(requestID)
	if s == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}
	s.request = 0
	s.delivered = 0
	if status == media.SourceStatusEOS {
		s.eos = true
	}
	ended := r.state == media.PlaybackStatePlaying && r.allEOS()
	r.mu.Unlock()

	if ended {
		r.setState(media.PlaybackStateEndOfStream)
	}
	return nil
}

func (r *Renderer) allEOS() bool {
	if len(r.sources) == 0 {
		return false
	}
	for _, s := range r.sources {
		if !s.eos {
			return false
		}
	}
	return true
}

func (r *Renderer) sourceForRequest(requestID uint32) *source {
	if requestID == 0 {
		return nil
	}
	for _, s := range r.sources {
		if s.request == requestID {
			return s
		}
	}
	return nil
}

// AddSegment consumes a segment for an outstanding request.
func (r *Renderer) AddSegment(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sourceForRequest(requestID)
	if s == nil || s.src.ID != seg.SourceID {
		return media.AddSegmentError
	}
	if s.delivered >= r.frameCount {
		return media.AddSegmentNoSpace
	}
	s.delivered++
	s.rendered++
	r.segments++
	if end := seg.Timestamp + max(seg.Duration, 0); end > r.position {
		r.position = end
	}
	return media.AddSegmentOK
}

func (r *Renderer) Position() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position, nil
}

func (r *Renderer) Stats(id int32) (uint64, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return 0, 0, renderer.ErrUnknownSource
	}
	return s.rendered, s.dropped, nil
}

// Segments returns the number of segments consumed so far.
func (r *Renderer) Segments() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments
}

// post queues a client notification. Notifications are delivered in order
// on the renderer's goroutine.
func (r *Renderer) post(fn func(renderer.Client)) {
	r.mu.Lock()
	ch, done := r.notify, r.done
	r.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- fn:
	case <-done:
	}
}

func (r *Renderer) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.notify:
			fn(r.client)
		case <-ticker.C:
			r.requestData()
		}
	}
}

type needData struct {
	id      int32
	request uint32
}

// requestData issues a need-data request for every idle source once all
// sources are attached and the session is prerolling or playing.
func (r *Renderer) requestData() {
	r.mu.Lock()
	if !r.allAttached || (r.state != media.PlaybackStatePaused && r.state != media.PlaybackStatePlaying) {
		r.mu.Unlock()
		return
	}
	var reqs []needData
	for id, s := range r.sources {
		if s.request != 0 || s.eos {
			continue
		}
		r.nextRequest++
		s.request = r.nextRequest
		reqs = append(reqs, needData{id: id, request: s.request})
	}
	playing := r.state == media.PlaybackStatePlaying
	position := r.position
	client := r.client
	r.mu.Unlock()

	for _, req := range reqs {
		client.NotifyNeedMediaData(req.id, r.frameCount, req.request, nil)
	}
	if playing {
		client.NotifyPosition(position)
	}
}
