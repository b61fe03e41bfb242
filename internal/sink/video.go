package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/media"
)

// DefaultRectangle is the video window used until one is set.
var DefaultRectangle = media.Rectangle{Width: 1920, Height: 1080}

type video struct {
	log *slog.Logger

	mu                sync.Mutex
	rectangle         media.Rectangle
	maxWidth          uint32
	maxHeight         uint32
	frameStep         bool
	immediateOutput   bool
	syncModeStreaming bool
	showWindow        bool
}

func newVideo(log *slog.Logger, maxWidth, maxHeight uint32) *video {
	return &video{
		log:        log,
		rectangle:  DefaultRectangle,
		maxWidth:   maxWidth,
		maxHeight:  maxHeight,
		showWindow: true,
	}
}

func (v *video) defaultAsync() bool { return true }

func (v *video) hint() registry.Hint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return registry.Hint{MaxVideoWidth: v.maxWidth, MaxVideoHeight: v.maxHeight}
}

func (v *video) set(name string, value any, state host.State) (propChange, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch name {
	case "rectangle":
		s, err := stringValue(value)
		if err != nil {
			return propChange{}, err
		}
		rect, err := media.ParseRectangle(s)
		if err != nil {
			return propChange{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		v.rectangle = rect
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetVideoWindow(ctx, rect)
		}}, nil

	case "max-video-width", "max-video-height":
		n, err := uint32Value(value)
		if err != nil {
			return propChange{}, err
		}
		if name == "max-video-width" {
			v.maxWidth = n
		} else {
			v.maxHeight = n
		}
		return propChange{}, nil

	case "frame-step-on-preroll":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		stepped := !v.frameStep && b && state == host.StatePaused
		v.frameStep = b
		if !stepped {
			return propChange{}, nil
		}
		return propChange{transient: true, apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.RenderFrame(ctx)
		}}, nil

	case "immediate-output":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		v.immediateOutput = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetImmediateOutput(ctx, id, b)
		}}, nil

	case "syncmode-streaming":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		v.syncModeStreaming = b
		var mode int32
		if b {
			mode = 1
		}
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetStreamSyncMode(ctx, id, mode)
		}}, nil

	case "show-video-window":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		v.showWindow = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetMute(ctx, id, !b)
		}}, nil
	}
	return propChange{}, ErrUnknownProperty
}

func (v *video) get(ctx context.Context, c *coordinator.Coordinator, id int32, name string) (any, error) {
	if c != nil && name == "immediate-output" {
		return c.ImmediateOutput(ctx, id)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	switch name {
	case "rectangle":
		return v.rectangle.String(), nil
	case "max-video-width":
		return v.maxWidth, nil
	case "max-video-height":
		return v.maxHeight, nil
	case "frame-step-on-preroll":
		return v.frameStep, nil
	case "immediate-output":
		return v.immediateOutput, nil
	case "syncmode-streaming":
		return v.syncModeStreaming, nil
	case "show-video-window":
		return v.showWindow, nil
	}
	return nil, ErrUnknownProperty
}

func (v *video) handleCustom(context.Context, *Delegate, *media.Structure) bool {
	return false
}
