package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/rialtosink/internal/config"
	"github.com/zsiec/rialtosink/internal/gstbridge"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/loopback"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/internal/sink"
	"github.com/zsiec/rialtosink/media"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(envOr("RIALTO_CONFIG", "rialtosink.yaml"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rank, enabled := config.RankFromEnv(slog.Default())
	if !enabled {
		slog.Info("sinks disabled by rank, nothing to do", "env", config.EnvSinksRank)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	// SIGHUP rewinds playback to the start.
	restart := make(chan os.Signal, 1)
	signal.Notify(restart, syscall.SIGHUP)

	reg := registry.New(loopback.Factory(loopback.Options{
		FrameCount: cfg.Loopback.FrameCount,
		Interval:   cfg.Loopback.Interval,
	}), nil)
	registry.SetDefault(reg)

	slog.Info("rialtosink starting",
		"version", version,
		"rank", rank,
		"max_video", fmt.Sprintf("%dx%d", cfg.Renderer.MaxVideoWidth, cfg.Renderer.MaxVideoHeight),
	)

	gst.Init(nil)
	pipeline, err := gst.NewPipelineFromString(cfg.Pipeline.Description)
	if err != nil {
		slog.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	p := &player{
		pipeline: pipeline,
		reg:      reg,
		bus:      make(chan host.Message, 256),
		gstErr:   make(chan error, 1),
		restart:  restart,
		log:      slog.Default().With("component", "player"),
	}
	if err := p.attachSinks(ctx, cfg); err != nil {
		slog.Error("failed to attach sinks", "error", err)
		os.Exit(1)
	}

	loop := glib.NewMainLoop(nil, false)
	p.watchBus()

	g.Go(func() error {
		loop.Run()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		loop.Quit()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return p.run(ctx)
	})

	g.Go(func() error {
		p.statsLoop(ctx, 5*time.Second)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("playback error", "error", err)
		os.Exit(1)
	}
}

type player struct {
	pipeline *gst.Pipeline
	reg      *registry.Registry
	sinks    []*gstbridge.Sink
	bus      chan host.Message
	gstErr   chan error
	restart  <-chan os.Signal
	log      *slog.Logger

	underflows int
}

// attachSinks bridges every appsink the pipeline description names.
// Missing appsinks are skipped.
func (p *player) attachSinks(ctx context.Context, cfg *config.Config) error {
	opts := sink.Options{
		Registry:       p.reg,
		Capacity:       cfg.Sink.BufferCapacity,
		SinglePath:     cfg.Sink.SinglePathStream,
		MaxVideoWidth:  cfg.Renderer.MaxVideoWidth,
		MaxVideoHeight: cfg.Renderer.MaxVideoHeight,
	}
	constructors := []struct {
		name  string
		build gstbridge.Constructor
	}{
		{"videosink", func(e host.Element) *sink.Delegate { return sink.NewVideo(e, opts) }},
		{"audiosink", func(e host.Element) *sink.Delegate { return sink.NewAudio(e, opts) }},
		{"textsink", func(e host.Element) *sink.Delegate { return sink.NewSubtitle(e, opts) }},
	}

	for _, c := range constructors {
		s, err := gstbridge.Attach(ctx, p.pipeline, c.name, c.build, p.bus, nil)
		if err != nil {
			p.log.Debug("appsink not present", "name", c.name, "error", err)
			continue
		}
		p.sinks = append(p.sinks, s)
	}
	if len(p.sinks) == 0 {
		return errors.New("pipeline has no appsink named videosink, audiosink or textsink")
	}
	return nil
}

func (p *player) watchBus() {
	p.pipeline.GetPipelineBus().AddWatch(func(msg *gst.Message) bool {
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			p.log.Error("gstreamer error", "error", gerr.Error(), "debug", gerr.DebugString())
			select {
			case p.gstErr <- gerr:
			default:
			}
			return false
		case gst.MessageWarning:
			p.log.Warn("gstreamer warning", "warning", msg.ParseWarning().Error())
		case gst.MessageEOS:
			p.log.Info("gstreamer EOS")
		}
		return true
	})
}

// run walks the sinks from NULL to PLAYING, waits for every sink to reach
// end of stream and walks them back down.
func (p *player) run(ctx context.Context) error {
	defer p.teardown()

	if _, err := p.step(ctx, host.NullToReady); err != nil {
		return err
	}
	p.announceStreams(ctx)

	pending, err := p.step(ctx, host.ReadyToPaused)
	if err != nil {
		return err
	}
	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	if err := p.await(ctx, host.MessageAsyncDone, pending); err != nil {
		return fmt.Errorf("preroll: %w", err)
	}
	p.log.Info("prerolled")

	pending, err = p.step(ctx, host.PausedToPlaying)
	if err != nil {
		return err
	}
	if err := p.await(ctx, host.MessageAsyncDone, pending); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	p.log.Info("playing")

	if err := p.await(ctx, host.MessageEOS, len(p.sinks)); err != nil {
		return err
	}
	p.log.Info("end of stream")
	return nil
}

// step applies change to every sink and returns how many went async.
func (p *player) step(ctx context.Context, change host.StateChange) (int, error) {
	pending := 0
	for _, s := range p.sinks {
		switch ret := s.Delegate.ChangeState(ctx, change); ret {
		case host.StateChangeFailure:
			return 0, fmt.Errorf("%s: %s failed", s.Delegate.Name(), change)
		case host.StateChangeAsync:
			pending++
		}
	}
	return pending, nil
}

func (p *player) announceStreams(ctx context.Context) {
	types := make([]media.MediaType, len(p.sinks))
	for i, s := range p.sinks {
		types[i] = s.Delegate.MediaType()
	}
	ev := host.NewStreamCollectionEvent(types...)
	for _, s := range p.sinks {
		s.Delegate.HandleEvent(ctx, ev)
	}
}

// await consumes sink bus messages until n messages of type t arrived. A
// sink error or a pipeline error aborts the wait. While waiting for end of
// stream a restart request rewinds playback and the count starts over.
func (p *player) await(ctx context.Context, t host.MessageType, n int) error {
	var restart <-chan os.Signal
	if t == host.MessageEOS {
		restart = p.restart
	}
	want := n
	for n > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.gstErr:
			return fmt.Errorf("pipeline: %w", err)
		case <-restart:
			if err := p.rewind(); err != nil {
				return err
			}
			n = want
		case msg := <-p.bus:
			switch msg.Type {
			case t:
				n--
			case host.MessageError:
				return fmt.Errorf("%s: %w", msg.Source, msg.Err)
			case host.MessageWarning:
				p.log.Warn("sink warning", "sink", msg.Source, "error", msg.Err)
			case host.MessageQos:
				p.log.Debug("qos", "sink", msg.Source, "processed", msg.Qos.Processed, "dropped", msg.Qos.Dropped)
			case host.MessageFlushCompleted:
				p.log.Info("flush completed", "sink", msg.Source)
			case host.MessageElement:
				if msg.Signal == host.SignalBufferUnderflow {
					p.underflows++
					p.log.Warn("buffer underflow", "sink", msg.Source, "total", p.underflows)
					continue
				}
				p.log.Debug("sink signal", "sink", msg.Source, "signal", msg.Signal, "args", msg.Args)
			}
		}
	}
	return nil
}

// rewind seeks the pipeline back to zero and runs the flush handshake on
// every sink so the renderer drops what it already queued.
func (p *player) rewind() error {
	if !p.pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return errors.New("rewind: seek rejected")
	}
	for _, s := range p.sinks {
		s.Flush(true)
	}
	p.log.Info("rewound to start")
	return nil
}

// teardown walks every sink back to NULL. It runs on its own context so a
// cancelled run still releases the renderer session.
func (p *player) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, change := range []host.StateChange{host.PlayingToPaused, host.PausedToReady, host.ReadyToNull} {
		for _, s := range p.sinks {
			if s.Delegate.State() < change.From {
				continue
			}
			s.Delegate.ChangeState(ctx, change)
		}
	}
	if err := p.pipeline.SetState(gst.StateNull); err != nil {
		p.log.Warn("stopping pipeline", "error", err)
	}
}

func (p *player) statsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range p.reg.Snapshots(ctx) {
				p.log.Info("session",
					"session", snap.Session,
					"state", snap.PipelineState,
					"server", snap.ServerState,
					"position_ms", snap.Position/int64(time.Millisecond),
					"sources", len(snap.Sources),
				)
				for _, src := range snap.Sources {
					p.log.Debug("source",
						"id", src.ID,
						"type", src.Type,
						"sink", src.Sink,
						"state", src.State,
						"pulling", src.Pulling,
					)
				}
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
