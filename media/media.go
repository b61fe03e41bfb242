// Package media defines the types that flow between the host pipeline, the
// sink elements and the remote renderer: caps, samples, source descriptors
// and the renderer-facing media segments.
package media

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType identifies the kind of elementary stream a sink handles.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeAudio
	MediaTypeVideo
	MediaTypeSubtitle
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	case MediaTypeSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// PlaybackState is the renderer-side playback state reported through
// NotifyPlaybackState.
type PlaybackState int

const (
	PlaybackStateUnknown PlaybackState = iota
	PlaybackStateIdle
	PlaybackStatePlaying
	PlaybackStatePaused
	PlaybackStateSeeking
	PlaybackStateSeekDone
	PlaybackStateStopped
	PlaybackStateEndOfStream
	PlaybackStateFailure
	PlaybackStateFlushed
)

var playbackStateNames = [...]string{
	"UNKNOWN", "IDLE", "PLAYING", "PAUSED", "SEEKING", "SEEK_DONE",
	"STOPPED", "END_OF_STREAM", "FAILURE", "FLUSHED",
}

func (s PlaybackState) String() string {
	if s < 0 || int(s) >= len(playbackStateNames) {
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
	return playbackStateNames[s]
}

// NetworkState is the renderer-side buffering/network state.
type NetworkState int

const (
	NetworkStateUnknown NetworkState = iota
	NetworkStateIdle
	NetworkStateBuffering
	NetworkStateBufferingProgress
	NetworkStateBuffered
	NetworkStateStalled
	NetworkStateFormatError
	NetworkStateNetworkError
	NetworkStateDecodeError
)

// MediaSourceStatus is the status reported back with HaveData.
type MediaSourceStatus int

const (
	SourceStatusOK MediaSourceStatus = iota
	SourceStatusEOS
	SourceStatusError
	SourceStatusCodecChanged
	SourceStatusNoAvailableSamples
)

func (s MediaSourceStatus) String() string {
	switch s {
	case SourceStatusOK:
		return "OK"
	case SourceStatusEOS:
		return "EOS"
	case SourceStatusError:
		return "ERROR"
	case SourceStatusCodecChanged:
		return "CODEC_CHANGED"
	case SourceStatusNoAvailableSamples:
		return "NO_AVAILABLE_SAMPLES"
	default:
		return fmt.Sprintf("MediaSourceStatus(%d)", int(s))
	}
}

// AddSegmentStatus is the renderer's answer to AddSegment.
type AddSegmentStatus int

const (
	AddSegmentOK AddSegmentStatus = iota
	AddSegmentNoSpace
	AddSegmentError
)

func (s AddSegmentStatus) String() string {
	switch s {
	case AddSegmentOK:
		return "OK"
	case AddSegmentNoSpace:
		return "NO_SPACE"
	default:
		return "ERROR"
	}
}

// PlaybackError classifies errors reported by NotifyPlaybackError.
type PlaybackError int

const (
	PlaybackErrorUnknown PlaybackError = iota
	PlaybackErrorDecryption
)

// EaseType selects the volume ramp curve.
type EaseType int

const (
	EaseLinear EaseType = iota
	EaseInCubic
	EaseOutCubic
)

// QosInfo carries the renderer's processed/dropped frame counters.
type QosInfo struct {
	Processed uint64
	Dropped   uint64
}

// Rectangle is a video window in display coordinates.
type Rectangle struct {
	X, Y          uint32
	Width, Height uint32
}

func (r Rectangle) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRectangle parses the "x,y,w,h" form produced by Rectangle.String.
func ParseRectangle(s string) (Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rectangle{}, fmt.Errorf("media: rectangle %q: want \"x,y,w,h\"", s)
	}
	var v [4]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Rectangle{}, fmt.Errorf("media: rectangle %q: %w", s, err)
		}
		v[i] = uint32(n)
	}
	return Rectangle{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
