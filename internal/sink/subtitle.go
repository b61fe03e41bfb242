package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/media"
)

type subtitle struct {
	log *slog.Logger

	mu        sync.Mutex
	mute      bool
	textTrack string
}

func newSubtitle(log *slog.Logger) *subtitle {
	return &subtitle{log: log}
}

func (s *subtitle) defaultAsync() bool  { return false }
func (s *subtitle) hint() registry.Hint { return registry.Hint{} }

func (s *subtitle) set(name string, value any, _ host.State) (propChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case "mute":
		m, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		s.mute = m
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetMute(ctx, id, m)
		}}, nil
	case "text-track-identifier":
		track, err := stringValue(value)
		if err != nil {
			return propChange{}, err
		}
		s.textTrack = track
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetTextTrackIdentifier(ctx, track)
		}}, nil
	}
	return propChange{}, ErrUnknownProperty
}

func (s *subtitle) get(ctx context.Context, c *coordinator.Coordinator, id int32, name string) (any, error) {
	if c != nil {
		switch name {
		case "mute":
			return c.Mute(ctx, id)
		case "text-track-identifier":
			return c.TextTrackIdentifier(ctx)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case "mute":
		return s.mute, nil
	case "text-track-identifier":
		return s.textTrack, nil
	}
	return nil, ErrUnknownProperty
}

// handleCustom applies set-pts-offset{pts-offset:u64}.
func (s *subtitle) handleCustom(ctx context.Context, d *Delegate, st *media.Structure) bool {
	if st.Name != host.CustomSetPtsOffset {
		return false
	}
	offset, ok := st.Uint64("pts-offset")
	if !ok {
		s.log.Warn("set-pts-offset without pts-offset")
		return false
	}
	c, id, attached := d.session()
	if !attached {
		return false
	}
	if err := c.SetSubtitleOffset(ctx, id, int64(offset)); err != nil {
		d.HandleWarning(err)
		return false
	}
	return true
}
