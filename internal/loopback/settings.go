package loopback

import (
	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

func (r *Renderer) Volume() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume, nil
}

// SetVolume jumps straight to target; fades are not simulated.
func (r *Renderer) SetVolume(target float64, _ uint32, _ media.EaseType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = target
	return nil
}

func (r *Renderer) Mute(id int32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return false, renderer.ErrUnknownSource
	}
	return s.mute, nil
}

func (r *Renderer) SetMute(id int32, mute bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return renderer.ErrUnknownSource
	}
	s.mute = mute
	return nil
}

func (r *Renderer) SetLowLatency(bool) error { return nil }

func (r *Renderer) Sync() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sync, nil
}

func (r *Renderer) SetSync(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sync = enabled
	return nil
}

func (r *Renderer) SyncOff() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncOff, nil
}

func (r *Renderer) SetSyncOff(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncOff = enabled
	return nil
}

func (r *Renderer) StreamSyncMode() (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamSyncMode, nil
}

func (r *Renderer) SetStreamSyncMode(_ int32, mode int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamSyncMode = mode
	return nil
}

func (r *Renderer) BufferingLimit() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bufferingLimit, nil
}

func (r *Renderer) SetBufferingLimit(ms uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferingLimit = ms
	return nil
}

func (r *Renderer) UseBuffering() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.useBuffering, nil
}

func (r *Renderer) SetUseBuffering(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.useBuffering = enabled
	return nil
}

func (r *Renderer) ImmediateOutput(id int32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return false, renderer.ErrUnknownSource
	}
	return s.immediate, nil
}

func (r *Renderer) SetImmediateOutput(id int32, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return renderer.ErrUnknownSource
	}
	s.immediate = enabled
	return nil
}

func (r *Renderer) TextTrackIdentifier() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.textTrack, nil
}

func (r *Renderer) SetTextTrackIdentifier(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textTrack = id
	return nil
}

func (r *Renderer) SetSubtitleOffset(id int32, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; !ok {
		return renderer.ErrUnknownSource
	}
	return nil
}

func (r *Renderer) ProcessAudioGap(int64, uint32, int64, bool) error { return nil }

var _ renderer.Backend = (*Renderer)(nil)
