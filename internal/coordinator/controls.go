package coordinator

import (
	"context"

	"github.com/zsiec/rialtosink/internal/msgqueue"
	"github.com/zsiec/rialtosink/media"
)

// Backend-wide and per-source controls. Each call is serialised on the
// coordinator's queue and proxied to the renderer.

func (c *Coordinator) call(ctx context.Context, op string, fn func() error) error {
	return c.do(ctx, func(context.Context) error {
		if !c.backend.IsCreated() {
			return ErrNotCreated
		}
		return backendErr(op, fn())
	})
}

func query[T any](ctx context.Context, c *Coordinator, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	r, ok := msgqueue.Call(ctx, c.queue, func(context.Context) result {
		if !c.backend.IsCreated() {
			return result{err: ErrNotCreated}
		}
		v, err := fn()
		return result{v: v, err: backendErr(op, err)}
	})
	if !ok {
		var zero T
		return zero, ErrStopped
	}
	return r.v, r.err
}

// SetPlaybackRate changes the renderer playback rate.
func (c *Coordinator) SetPlaybackRate(ctx context.Context, rate float64) error {
	return c.call(ctx, "set playback rate", func() error { return c.backend.SetPlaybackRate(rate) })
}

// SetVideoWindow moves the video window.
func (c *Coordinator) SetVideoWindow(ctx context.Context, rect media.Rectangle) error {
	return c.call(ctx, "set video window", func() error { return c.backend.SetVideoWindow(rect) })
}

// RenderFrame renders the current frame while paused.
func (c *Coordinator) RenderFrame(ctx context.Context) error {
	return c.call(ctx, "render frame", c.backend.RenderFrame)
}

// Position returns the renderer playback position.
func (c *Coordinator) Position(ctx context.Context, id int32) (int64, error) {
	return query(ctx, c, "get position", func() (int64, error) {
		if _, ok := c.sources[id]; !ok {
			return 0, ErrNotAttached
		}
		return c.backend.Position()
	})
}

// Stats returns rendered and dropped frame counters for a source.
func (c *Coordinator) Stats(ctx context.Context, id int32) (rendered, dropped uint64, err error) {
	type counters struct{ rendered, dropped uint64 }
	r, err := query(ctx, c, "get stats", func() (counters, error) {
		rendered, dropped, err := c.backend.Stats(id)
		return counters{rendered, dropped}, err
	})
	return r.rendered, r.dropped, err
}

// SetVolume ramps the volume to target over durationMs.
func (c *Coordinator) SetVolume(ctx context.Context, target float64, durationMs uint32, ease media.EaseType) error {
	return c.call(ctx, "set volume", func() error { return c.backend.SetVolume(target, durationMs, ease) })
}

// Volume returns the current volume.
func (c *Coordinator) Volume(ctx context.Context) (float64, error) {
	return query(ctx, c, "get volume", c.backend.Volume)
}

// SetMute mutes or unmutes a source.
func (c *Coordinator) SetMute(ctx context.Context, id int32, mute bool) error {
	return c.call(ctx, "set mute", func() error { return c.backend.SetMute(id, mute) })
}

// Mute returns the mute state of a source.
func (c *Coordinator) Mute(ctx context.Context, id int32) (bool, error) {
	return query(ctx, c, "get mute", func() (bool, error) { return c.backend.Mute(id) })
}

// SetLowLatency toggles low-latency audio.
func (c *Coordinator) SetLowLatency(ctx context.Context, enabled bool) error {
	return c.call(ctx, "set low latency", func() error { return c.backend.SetLowLatency(enabled) })
}

// SetSync toggles audio clock sync.
func (c *Coordinator) SetSync(ctx context.Context, enabled bool) error {
	return c.call(ctx, "set sync", func() error { return c.backend.SetSync(enabled) })
}

// Sync returns the audio clock sync setting.
func (c *Coordinator) Sync(ctx context.Context) (bool, error) {
	return query(ctx, c, "get sync", c.backend.Sync)
}

// SetSyncOff toggles sync-off mode.
func (c *Coordinator) SetSyncOff(ctx context.Context, enabled bool) error {
	return c.call(ctx, "set sync off", func() error { return c.backend.SetSyncOff(enabled) })
}

// SetStreamSyncMode sets the stream sync mode of a source.
func (c *Coordinator) SetStreamSyncMode(ctx context.Context, id int32, mode int32) error {
	return c.call(ctx, "set stream sync mode", func() error { return c.backend.SetStreamSyncMode(id, mode) })
}

// StreamSyncMode returns the stream sync mode.
func (c *Coordinator) StreamSyncMode(ctx context.Context) (int32, error) {
	return query(ctx, c, "get stream sync mode", c.backend.StreamSyncMode)
}

// SetBufferingLimit sets the audio buffering limit in milliseconds.
func (c *Coordinator) SetBufferingLimit(ctx context.Context, ms uint32) error {
	return c.call(ctx, "set buffering limit", func() error { return c.backend.SetBufferingLimit(ms) })
}

// BufferingLimit returns the audio buffering limit.
func (c *Coordinator) BufferingLimit(ctx context.Context) (uint32, error) {
	return query(ctx, c, "get buffering limit", c.backend.BufferingLimit)
}

// SetUseBuffering toggles audio buffering.
func (c *Coordinator) SetUseBuffering(ctx context.Context, enabled bool) error {
	return c.call(ctx, "set use buffering", func() error { return c.backend.SetUseBuffering(enabled) })
}

// UseBuffering returns the audio buffering setting.
func (c *Coordinator) UseBuffering(ctx context.Context) (bool, error) {
	return query(ctx, c, "get use buffering", c.backend.UseBuffering)
}

// SetImmediateOutput toggles immediate output for a video source.
func (c *Coordinator) SetImmediateOutput(ctx context.Context, id int32, enabled bool) error {
	return c.call(ctx, "set immediate output", func() error { return c.backend.SetImmediateOutput(id, enabled) })
}

// ImmediateOutput returns the immediate output setting of a source.
func (c *Coordinator) ImmediateOutput(ctx context.Context, id int32) (bool, error) {
	return query(ctx, c, "get immediate output", func() (bool, error) { return c.backend.ImmediateOutput(id) })
}

// SetTextTrackIdentifier selects the subtitle track.
func (c *Coordinator) SetTextTrackIdentifier(ctx context.Context, track string) error {
	return c.call(ctx, "set text track identifier", func() error { return c.backend.SetTextTrackIdentifier(track) })
}

// TextTrackIdentifier returns the selected subtitle track.
func (c *Coordinator) TextTrackIdentifier(ctx context.Context) (string, error) {
	return query(ctx, c, "get text track identifier", c.backend.TextTrackIdentifier)
}

// SetSubtitleOffset shifts subtitle presentation for a source.
func (c *Coordinator) SetSubtitleOffset(ctx context.Context, id int32, position int64) error {
	return c.call(ctx, "set subtitle offset", func() error { return c.backend.SetSubtitleOffset(id, position) })
}

// ProcessAudioGap tells the renderer about a gap in the audio stream.
func (c *Coordinator) ProcessAudioGap(ctx context.Context, position int64, duration uint32, discontinuityGap int64, audioAac bool) error {
	return c.call(ctx, "process audio gap", func() error {
		return c.backend.ProcessAudioGap(position, duration, discontinuityGap, audioAac)
	})
}

// SwitchSource replaces the codec configuration of an attached source.
func (c *Coordinator) SwitchSource(ctx context.Context, src *media.MediaSource) error {
	return c.call(ctx, "switch source", func() error { return c.backend.SwitchSource(src) })
}
