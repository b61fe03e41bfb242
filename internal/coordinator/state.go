package coordinator

import (
	"context"
	"fmt"
)

// ClientState is the per-source and aggregated pipeline state. The
// AWAITING states mark an outstanding asynchronous commit to the renderer.
type ClientState int

const (
	StateIdle ClientState = iota
	StateReady
	StateAwaitingPaused
	StatePaused
	StateAwaitingPlaying
	StatePlaying
)

var clientStateNames = [...]string{
	"IDLE", "READY", "AWAITING_PAUSED", "PAUSED", "AWAITING_PLAYING", "PLAYING",
}

func (s ClientState) String() string {
	if s >= 0 && int(s) < len(clientStateNames) {
		return clientStateNames[s]
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

// IsAwaiting reports whether s is an uncommitted transition.
func (s ClientState) IsAwaiting() bool {
	return s == StateAwaitingPaused || s == StateAwaitingPlaying
}

// Result is the outcome of a per-source play or pause request.
type Result int

const (
	SuccessSync Result = iota
	SuccessAsync
	NotAttached
)

func (r Result) String() string {
	switch r {
	case SuccessSync:
		return "SUCCESS_SYNC"
	case SuccessAsync:
		return "SUCCESS_ASYNC"
	case NotAttached:
		return "NOT_ATTACHED"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

func (c *Coordinator) allSourcesIn(state ClientState) bool {
	if len(c.sources) == 0 {
		return false
	}
	for _, s := range c.sources {
		if s.state != state {
			return false
		}
	}
	return true
}

func (c *Coordinator) setPipelineState(s ClientState) {
	if c.pipelineState == s {
		return
	}
	c.log.Debug("pipeline state", "from", c.pipelineState, "to", s)
	c.pipelineState = s
}

// play implements the per-source PLAYING request on the loop.
func (c *Coordinator) play(ctx context.Context, id int32) Result {
	src, ok := c.sources[id]
	if !ok {
		return NotAttached
	}
	if c.pipelineState == StatePlaying {
		src.state = StatePlaying
		return SuccessSync
	}
	src.state = StateAwaitingPlaying
	c.maybeSendPlay(ctx)
	return c.pending(id)
}

func (c *Coordinator) maybeSendPlay(ctx context.Context) {
	if c.pipelineState != StatePaused || !c.allSourcesIn(StateAwaitingPlaying) {
		return
	}
	if err := c.backend.Play(); err != nil {
		c.fatal(ctx, "play", err)
		return
	}
	c.setPipelineState(StateAwaitingPlaying)
}

// pause implements the per-source PAUSED request on the loop.
func (c *Coordinator) pause(ctx context.Context, id int32) Result {
	src, ok := c.sources[id]
	if !ok {
		return NotAttached
	}
	if c.pipelineState == StatePaused {
		src.state = StatePaused
		return SuccessSync
	}
	src.state = StateAwaitingPaused

	switch c.pipelineState {
	case StateReady:
		c.maybeSendPause(ctx)
	case StatePlaying, StateAwaitingPlaying:
		c.sendPause(ctx)
	}
	return c.pending(id)
}

func (c *Coordinator) maybeSendPause(ctx context.Context) {
	if c.pipelineState == StateReady && c.allSourcesIn(StateAwaitingPaused) {
		c.sendPause(ctx)
	}
}

func (c *Coordinator) sendPause(ctx context.Context) {
	if err := c.backend.Pause(); err != nil {
		c.fatal(ctx, "pause", err)
		return
	}
	c.setPipelineState(StateAwaitingPaused)
}

// pending reports SuccessAsync unless a failed renderer call detached id.
func (c *Coordinator) pending(id int32) Result {
	if _, ok := c.sources[id]; !ok {
		return NotAttached
	}
	return SuccessAsync
}
