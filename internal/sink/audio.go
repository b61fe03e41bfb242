package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/media"
)

// maxFadeVolume is the upper bound of the audio-fade target, in percent.
const maxFadeVolume = 100

// Fade is a parsed audio-fade request.
type Fade struct {
	Volume   uint32 // percent
	Duration uint32 // milliseconds
	Ease     media.EaseType
}

// ParseFade parses the audio-fade property "V,D,E" where V is the target
// volume in percent, D the duration in milliseconds and E one of L
// (linear), I (in-cubic) or O (out-cubic). E is optional and defaults to
// linear. Volumes above 100 are clamped and reported through clamped.
func ParseFade(s string) (f Fade, clamped bool, err error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Fade{}, false, fmt.Errorf("audio-fade %q: want \"volume,duration[,ease]\"", s)
	}
	vol, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return Fade{}, false, fmt.Errorf("audio-fade volume: %w", err)
	}
	dur, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return Fade{}, false, fmt.Errorf("audio-fade duration: %w", err)
	}
	f = Fade{Volume: uint32(vol), Duration: uint32(dur), Ease: media.EaseLinear}
	if f.Volume > maxFadeVolume {
		f.Volume = maxFadeVolume
		clamped = true
	}
	if len(parts) == 3 {
		switch strings.TrimSpace(parts[2]) {
		case "L", "":
		case "I":
			f.Ease = media.EaseInCubic
		case "O":
			f.Ease = media.EaseOutCubic
		default:
			return Fade{}, false, fmt.Errorf("audio-fade ease %q", parts[2])
		}
	}
	return f, clamped, nil
}

type audio struct {
	log *slog.Logger

	mu             sync.Mutex
	volume         float64
	mute           bool
	lowLatency     bool
	sync           bool
	syncOff        bool
	streamSyncMode int32
	fade           string
	bufferingLimit uint32
	useBuffering   bool
}

func newAudio(log *slog.Logger) *audio {
	return &audio{log: log, volume: 1.0, bufferingLimit: ^uint32(0)}
}

func (a *audio) defaultAsync() bool  { return true }
func (a *audio) hint() registry.Hint { return registry.Hint{} }

func (a *audio) set(name string, value any, _ host.State) (propChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch name {
	case "volume":
		v, ok := value.(float64)
		if !ok || v < 0 || v > 1 {
			return propChange{}, invalidValue(value)
		}
		a.volume = v
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetVolume(ctx, v, 0, media.EaseLinear)
		}}, nil

	case "mute":
		m, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		a.mute = m
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetMute(ctx, id, m)
		}}, nil

	case "low-latency":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		a.lowLatency = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetLowLatency(ctx, b)
		}}, nil

	case "sync":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		a.sync = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetSync(ctx, b)
		}}, nil

	case "sync-off":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		a.syncOff = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetSyncOff(ctx, b)
		}}, nil

	case "stream-sync-mode":
		mode, err := int32Value(value)
		if err != nil {
			return propChange{}, err
		}
		a.streamSyncMode = mode
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, id int32) error {
			return c.SetStreamSyncMode(ctx, id, mode)
		}}, nil

	case "audio-fade":
		s, err := stringValue(value)
		if err != nil {
			return propChange{}, err
		}
		f, clamped, err := ParseFade(s)
		if err != nil {
			return propChange{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		if clamped {
			a.log.Warn("audio-fade volume clamped", "value", s, "volume", f.Volume)
		}
		a.fade = s
		target := float64(f.Volume) / maxFadeVolume
		a.volume = target
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetVolume(ctx, target, f.Duration, f.Ease)
		}}, nil

	case "fade-volume":
		return propChange{}, ErrReadOnly

	case "buffering-limit-ms":
		ms, err := uint32Value(value)
		if err != nil {
			return propChange{}, err
		}
		a.bufferingLimit = ms
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetBufferingLimit(ctx, ms)
		}}, nil

	case "use-buffering":
		b, err := boolValue(value)
		if err != nil {
			return propChange{}, err
		}
		a.useBuffering = b
		return propChange{apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.SetUseBuffering(ctx, b)
		}}, nil

	case "gap":
		g, err := parseGap(value)
		if err != nil {
			return propChange{}, err
		}
		return propChange{transient: true, apply: func(ctx context.Context, c *coordinator.Coordinator, _ int32) error {
			return c.ProcessAudioGap(ctx, g.position, g.duration, g.discontinuityGap, g.aac)
		}}, nil
	}
	return propChange{}, ErrUnknownProperty
}

type gap struct {
	position         int64
	duration         uint32
	discontinuityGap int64
	aac              bool
}

func parseGap(value any) (gap, error) {
	st, ok := value.(*media.Structure)
	if !ok || st == nil {
		return gap{}, invalidValue(value)
	}
	var g gap
	var hasPos, hasDur bool
	g.position, hasPos = st.Int64("position")
	if d, ok := st.Uint64("duration"); ok {
		g.duration, hasDur = uint32(d), true
	}
	if !hasPos || !hasDur {
		return gap{}, fmt.Errorf("%w: gap needs position and duration", ErrInvalidValue)
	}
	g.discontinuityGap, _ = st.Int64("discontinuity-gap")
	g.aac, _ = st.Bool("audio-aac")
	return g, nil
}

func (a *audio) get(ctx context.Context, c *coordinator.Coordinator, id int32, name string) (any, error) {
	if c != nil {
		switch name {
		case "volume":
			return c.Volume(ctx)
		case "fade-volume":
			v, err := c.Volume(ctx)
			if err != nil {
				return nil, err
			}
			return uint32(v*maxFadeVolume + 0.5), nil
		case "mute":
			return c.Mute(ctx, id)
		case "sync":
			return c.Sync(ctx)
		case "stream-sync-mode":
			return c.StreamSyncMode(ctx)
		case "buffering-limit-ms":
			return c.BufferingLimit(ctx)
		case "use-buffering":
			return c.UseBuffering(ctx)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch name {
	case "volume":
		return a.volume, nil
	case "fade-volume":
		return uint32(a.volume*maxFadeVolume + 0.5), nil
	case "mute":
		return a.mute, nil
	case "low-latency":
		return a.lowLatency, nil
	case "sync":
		return a.sync, nil
	case "sync-off":
		return a.syncOff, nil
	case "stream-sync-mode":
		return a.streamSyncMode, nil
	case "audio-fade":
		return a.fade, nil
	case "buffering-limit-ms":
		return a.bufferingLimit, nil
	case "use-buffering":
		return a.useBuffering, nil
	case "gap":
		return nil, ErrWriteOnly
	}
	return nil, ErrUnknownProperty
}

// handleCustom switches the audio codec in place.
func (a *audio) handleCustom(ctx context.Context, d *Delegate, st *media.Structure) bool {
	if st.Name != host.CustomSwitchSource {
		return false
	}
	caps, ok := st.Caps("caps")
	if !ok {
		s, ok := st.String("caps")
		if !ok {
			a.log.Warn("switch-source without caps")
			return false
		}
		parsed, err := media.ParseCaps(s)
		if err != nil {
			a.log.Warn("switch-source caps", "error", err)
			return false
		}
		caps = parsed
	}

	c, id, attached := d.session()
	if !attached {
		return false
	}
	src, err := d.translator.AudioSource(caps)
	if err != nil {
		d.HandleWarning(err)
		return false
	}
	src.ID = id
	if err := c.SwitchSource(ctx, src); err != nil {
		d.HandleWarning(err)
		return false
	}
	d.buf.SetCaps(caps)
	a.log.Info("audio source switched", "source", id, "mime", src.MimeType)
	return true
}
