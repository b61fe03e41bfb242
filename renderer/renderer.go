// Package renderer defines the boundary between the sinks and the remote
// media-rendering service. The transport behind a Backend is out of scope;
// the sinks only see these two interfaces.
package renderer

import (
	"errors"

	"github.com/zsiec/rialtosink/media"
)

// MSEURL is the fixed URL loaded into every backend. The renderer is always
// driven in pull mode, so the URL only selects that mode.
const MSEURL = "mse://1"

// LoadMimeType is the container mime passed with MSEURL.
const LoadMimeType = "video/mp4"

// Sentinel errors returned by Backend implementations.
var (
	ErrNotCreated    = errors.New("renderer: backend not created")
	ErrUnknownSource = errors.New("renderer: unknown source")
	ErrRejected      = errors.New("renderer: request rejected")
)

// ShmInfo locates the shared-memory partition a need-data request should be
// written into. Backends that copy segments may leave it nil.
type ShmInfo struct {
	MaxMetadataBytes uint32
	MetadataOffset   uint32
	MediaDataOffset  uint32
	MaxMediaBytes    uint32
}

// Client receives renderer notifications. Implementations must not block:
// notifications arrive on the renderer's event thread.
type Client interface {
	NotifyDuration(duration int64)
	NotifyPosition(position int64)
	NotifyPlaybackState(state media.PlaybackState)
	NotifyNetworkState(state media.NetworkState)
	NotifyVideoData(hasData bool)
	NotifyAudioData(hasData bool)
	NotifyNeedMediaData(sourceID int32, frameCount int, requestID uint32, shm *ShmInfo)
	NotifyCancelNeedMediaData(sourceID int32)
	NotifyQos(sourceID int32, qos media.QosInfo)
	NotifyBufferUnderflow(sourceID int32)
	NotifyPlaybackError(sourceID int32, err media.PlaybackError)
	NotifySourceFlushed(sourceID int32)
}

// Backend is the control surface of a remote renderer session.
//
// AddSegment is called concurrently from puller goroutines; every other
// method is serialised by the caller.
type Backend interface {
	Create(client Client, maxWidth, maxHeight uint32) error
	IsCreated() bool
	Load(mimeType, url string) error
	// AttachSource registers src and stores the assigned id in src.ID.
	AttachSource(src *media.MediaSource) error
	RemoveSource(id int32) error
	AllSourcesAttached() error
	SwitchSource(src *media.MediaSource) error
	Destroy()

	Play() error
	Pause() error
	Stop() error
	SetPlaybackRate(rate float64) error
	SetVideoWindow(rect media.Rectangle) error
	Flush(id int32, resetTime bool) error
	SetSourcePosition(id int32, position int64, resetTime bool, appliedRate float64, stopPosition int64) error
	RenderFrame() error

	HaveData(status media.MediaSourceStatus, requestID uint32) error
	AddSegment(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus

	Position() (int64, error)
	Stats(id int32) (rendered, dropped uint64, err error)

	Volume() (float64, error)
	SetVolume(target float64, durationMs uint32, ease media.EaseType) error
	Mute(id int32) (bool, error)
	SetMute(id int32, mute bool) error
	SetLowLatency(enabled bool) error
	Sync() (bool, error)
	SetSync(enabled bool) error
	SyncOff() (bool, error)
	SetSyncOff(enabled bool) error
	StreamSyncMode() (int32, error)
	SetStreamSyncMode(id int32, mode int32) error
	BufferingLimit() (uint32, error)
	SetBufferingLimit(ms uint32) error
	UseBuffering() (bool, error)
	SetUseBuffering(enabled bool) error
	ImmediateOutput(id int32) (bool, error)
	SetImmediateOutput(id int32, enabled bool) error
	TextTrackIdentifier() (string, error)
	SetTextTrackIdentifier(id string) error
	SetSubtitleOffset(id int32, position int64) error
	ProcessAudioGap(position int64, duration uint32, discontinuityGap int64, audioAac bool) error
}

// Factory creates a fresh, uncreated Backend.
type Factory func() Backend
