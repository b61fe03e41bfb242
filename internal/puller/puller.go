// Package puller services renderer need-data requests for one source. Each
// Puller owns a message queue so that parsing and segment hand-off never
// stall the coordinator.
package puller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/rialtosink/internal/msgqueue"
	"github.com/zsiec/rialtosink/internal/parser"
	"github.com/zsiec/rialtosink/media"
)

// Source is the consumer side of a sink's sample buffer.
type Source interface {
	Peek() (*media.Sample, bool)
	// PopIf removes the front sample if it is s.
	PopIf(s *media.Sample) bool
	IsEOS() bool
}

// Coordinator receives the segments produced for a request and its final
// acknowledgement. AddSegment is called on the puller goroutine; HaveData
// must not block.
type Coordinator interface {
	AddSegment(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus
	HaveData(status media.MediaSourceStatus, requestID uint32)
}

// Stats holds a puller's counters.
type Stats struct {
	Requests int64
	Segments int64
	Dropped  int64
}

// Puller drains a Source into the renderer on request.
type Puller struct {
	log       *slog.Logger
	name      string
	src       Source
	mediaType media.MediaType
	parser    *parser.Parser
	dropLog   *rate.Limiter

	mu    sync.Mutex
	queue *msgqueue.Queue

	requests atomic.Int64
	segments atomic.Int64
	dropped  atomic.Int64
}

// New creates a stopped puller for src. If log is nil, slog.Default() is used.
func New(name string, src Source, mediaType media.MediaType, log *slog.Logger) *Puller {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "puller", "sink", name)
	return &Puller{
		log:       log,
		name:      name,
		src:       src,
		mediaType: mediaType,
		parser:    parser.New(log),
		dropLog:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Start launches a fresh worker. It is a no-op while running.
func (p *Puller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue != nil && p.queue.Running() {
		return
	}
	p.queue = msgqueue.New(p.name+"-puller", p.log)
	p.queue.Start()
}

// Stop drops pending requests and waits for the one in progress.
func (p *Puller) Stop(ctx context.Context) {
	p.mu.Lock()
	q := p.queue
	p.queue = nil
	p.mu.Unlock()

	if q != nil {
		q.Stop(ctx)
	}
}

// Running reports whether the puller accepts requests.
func (p *Puller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue != nil && p.queue.Running()
}

// Stats returns a snapshot of the counters.
func (p *Puller) Stats() Stats {
	return Stats{
		Requests: p.requests.Load(),
		Segments: p.segments.Load(),
		Dropped:  p.dropped.Load(),
	}
}

// RequestPull schedules a pull of up to frameCount samples. It reports
// false when the puller is stopped.
func (p *Puller) RequestPull(sourceID int32, frameCount int, requestID uint32, coord Coordinator) bool {
	p.mu.Lock()
	q := p.queue
	p.mu.Unlock()
	if q == nil {
		return false
	}
	return q.ScheduleInLoop(func(ctx context.Context) {
		p.pull(ctx, sourceID, frameCount, requestID, coord)
	})
}

func (p *Puller) pull(ctx context.Context, sourceID int32, frameCount int, requestID uint32, coord Coordinator) {
	p.requests.Add(1)

	var (
		added   int
		eos     bool
		noSpace bool
		failed  bool
	)
loop:
	for range frameCount {
		if ctx.Err() != nil {
			break
		}
		s, ok := p.src.Peek()
		if !ok {
			eos = p.src.IsEOS()
			break
		}

		seg, err := p.parser.Parse(s, sourceID, p.mediaType)
		if err != nil {
			p.drop(s, "parse failed", err)
			continue
		}

		switch coord.AddSegment(requestID, seg) {
		case media.AddSegmentOK:
			p.src.PopIf(s)
			added++
			p.segments.Add(1)
		case media.AddSegmentNoSpace:
			noSpace = true
			break loop
		default:
			p.drop(s, "renderer rejected segment", nil)
			failed = true
			break loop
		}
	}

	status := media.SourceStatusOK
	switch {
	case failed:
		status = media.SourceStatusError
	case eos:
		status = media.SourceStatusEOS
	case added == 0 && !noSpace:
		status = media.SourceStatusNoAvailableSamples
	}
	p.log.Debug("pull finished", "request", requestID, "frames", frameCount, "added", added, "status", status)
	coord.HaveData(status, requestID)
}

func (p *Puller) drop(s *media.Sample, reason string, err error) {
	p.src.PopIf(s)
	p.dropped.Add(1)
	if p.dropLog.Allow() {
		p.log.Warn("dropping sample", "reason", reason, "pts", s.PTS, "error", err)
	}
}
