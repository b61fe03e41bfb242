package coordinator

import (
	"context"
	"fmt"

	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

// Renderer notifications are posted as tasks so the renderer's event
// thread never waits for the coordinator. Each task runs on the worker.

type playbackStateTask struct {
	c     *Coordinator
	state media.PlaybackState
}

func (t *playbackStateTask) Execute(ctx context.Context) { t.c.handlePlaybackState(ctx, t.state) }
func (t *playbackStateTask) String() string             { return "playback-state " + t.state.String() }

type needDataTask struct {
	c          *Coordinator
	sourceID   int32
	frameCount int
	requestID  uint32
}

func (t *needDataTask) Execute(context.Context) {
	t.c.requestPull(t.sourceID, t.frameCount, t.requestID)
}
func (t *needDataTask) String() string { return fmt.Sprintf("need-data %d/%d", t.sourceID, t.requestID) }

type haveDataTask struct {
	c         *Coordinator
	status    media.MediaSourceStatus
	requestID uint32
}

func (t *haveDataTask) Execute(context.Context) { t.c.haveData(t.status, t.requestID) }
func (t *haveDataTask) String() string           { return fmt.Sprintf("have-data %d", t.requestID) }

type qosTask struct {
	c        *Coordinator
	sourceID int32
	qos      media.QosInfo
}

func (t *qosTask) Execute(context.Context) {
	if s := t.c.source(t.sourceID, "qos"); s != nil {
		s.sink.HandleQos(t.qos)
	}
}
func (t *qosTask) String() string { return fmt.Sprintf("qos %d", t.sourceID) }

type underflowTask struct {
	c        *Coordinator
	sourceID int32
}

func (t *underflowTask) Execute(context.Context) {
	if s := t.c.source(t.sourceID, "buffer underflow"); s != nil {
		s.sink.HandleBufferUnderflow()
	}
}
func (t *underflowTask) String() string { return fmt.Sprintf("underflow %d", t.sourceID) }

type playbackErrorTask struct {
	c        *Coordinator
	sourceID int32
	err      media.PlaybackError
}

func (t *playbackErrorTask) Execute(context.Context) {
	s := t.c.source(t.sourceID, "playback error")
	if s == nil {
		return
	}
	err := ErrPlayback
	if t.err == media.PlaybackErrorDecryption {
		err = ErrDecryption
	}
	t.c.log.Error("renderer playback error", "source", t.sourceID, "error", err)
	s.sink.HandleError(err)
}
func (t *playbackErrorTask) String() string { return fmt.Sprintf("playback-error %d", t.sourceID) }

type sourceFlushedTask struct {
	c        *Coordinator
	sourceID int32
}

func (t *sourceFlushedTask) Execute(ctx context.Context) {
	s := t.c.source(t.sourceID, "source flushed")
	if s == nil {
		return
	}
	s.flushing = false
	s.puller.Start()
	t.c.log.Debug("source flushed", "source", t.sourceID)
	s.sink.HandleFlushCompleted(ctx, s.resetTime)
	s.resetTime = false
}
func (t *sourceFlushedTask) String() string { return fmt.Sprintf("source-flushed %d", t.sourceID) }

type positionTask struct {
	c        *Coordinator
	position int64
}

func (t *positionTask) Execute(context.Context) { t.c.position = t.position }
func (t *positionTask) String() string           { return "position" }

type durationTask struct {
	c        *Coordinator
	duration int64
}

func (t *durationTask) Execute(context.Context) { t.c.duration = t.duration }
func (t *durationTask) String() string           { return "duration" }

func (c *Coordinator) source(id int32, what string) *AttachedSource {
	s, ok := c.sources[id]
	if !ok {
		c.log.Warn("notification for unknown source", "notification", what, "source", id)
		return nil
	}
	return s
}

func (c *Coordinator) handlePlaybackState(ctx context.Context, state media.PlaybackState) {
	c.log.Debug("renderer state", "state", state, "pipeline", c.pipelineState)
	c.serverState = state

	switch state {
	case media.PlaybackStatePaused:
		for _, s := range c.sources {
			if s.state == StateAwaitingPaused {
				s.state = StatePaused
				s.sink.HandleStateChanged(ctx, StatePaused)
			}
		}
		if c.pipelineState == StateAwaitingPaused {
			c.setPipelineState(StatePaused)
		}
		// Every sink may have asked for PLAYING before the pause committed.
		c.maybeSendPlay(ctx)
	case media.PlaybackStatePlaying:
		for _, s := range c.sources {
			if s.state == StateAwaitingPlaying {
				s.state = StatePlaying
				s.sink.HandleStateChanged(ctx, StatePlaying)
			}
		}
		if c.pipelineState == StateAwaitingPlaying {
			c.setPipelineState(StatePlaying)
		}
	case media.PlaybackStateEndOfStream:
		for _, s := range c.sources {
			s.sink.HandleEOS()
		}
	case media.PlaybackStateFailure:
		c.log.Error("renderer playback failure", "sources", len(c.sources))
		c.failAll(ctx, ErrPlaybackFailure)
	}
}

// NotifyDuration implements renderer.Client.
func (c *Coordinator) NotifyDuration(duration int64) {
	c.post(&durationTask{c: c, duration: duration})
}

// NotifyPosition implements renderer.Client.
func (c *Coordinator) NotifyPosition(position int64) {
	c.post(&positionTask{c: c, position: position})
}

// NotifyPlaybackState implements renderer.Client.
func (c *Coordinator) NotifyPlaybackState(state media.PlaybackState) {
	c.post(&playbackStateTask{c: c, state: state})
}

// NotifyNetworkState implements renderer.Client.
func (c *Coordinator) NotifyNetworkState(state media.NetworkState) {
	c.log.Debug("renderer network state", "state", int(state))
}

// NotifyVideoData implements renderer.Client.
func (c *Coordinator) NotifyVideoData(hasData bool) {
	c.log.Debug("renderer video data", "has_data", hasData)
}

// NotifyAudioData implements renderer.Client.
func (c *Coordinator) NotifyAudioData(hasData bool) {
	c.log.Debug("renderer audio data", "has_data", hasData)
}

// NotifyNeedMediaData implements renderer.Client.
func (c *Coordinator) NotifyNeedMediaData(sourceID int32, frameCount int, requestID uint32, shm *renderer.ShmInfo) {
	c.post(&needDataTask{c: c, sourceID: sourceID, frameCount: frameCount, requestID: requestID})
}

// NotifyCancelNeedMediaData implements renderer.Client.
func (c *Coordinator) NotifyCancelNeedMediaData(sourceID int32) {
	c.log.Debug("renderer cancelled need data", "source", sourceID)
}

// NotifyQos implements renderer.Client.
func (c *Coordinator) NotifyQos(sourceID int32, qos media.QosInfo) {
	c.post(&qosTask{c: c, sourceID: sourceID, qos: qos})
}

// NotifyBufferUnderflow implements renderer.Client.
func (c *Coordinator) NotifyBufferUnderflow(sourceID int32) {
	c.post(&underflowTask{c: c, sourceID: sourceID})
}

// NotifyPlaybackError implements renderer.Client.
func (c *Coordinator) NotifyPlaybackError(sourceID int32, err media.PlaybackError) {
	c.post(&playbackErrorTask{c: c, sourceID: sourceID, err: err})
}

// NotifySourceFlushed implements renderer.Client.
func (c *Coordinator) NotifySourceFlushed(sourceID int32) {
	c.post(&sourceFlushedTask{c: c, sourceID: sourceID})
}
