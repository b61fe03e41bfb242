// Package renderertest provides a recording renderer.Backend for tests.
package renderertest

import (
	"sync"
	"time"

	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

// Call is one recorded backend invocation.
type Call struct {
	Name string
	Args []any
}

// HaveData is one recorded HaveData acknowledgement.
type HaveData struct {
	Status    media.MediaSourceStatus
	RequestID uint32
}

// Backend records every call and mirrors setters into getters. Errors for
// individual operations are injected through the exported fields, which
// must be set before the backend is handed to the code under test.
type Backend struct {
	CreateErr error
	LoadErr   error
	AttachErr error
	RemoveErr error
	PlayErr   error
	PauseErr  error
	FlushErr  error

	PositionErr error
	VolumeErr   error

	mu         sync.Mutex
	client     renderer.Client
	created    bool
	destroyed  bool
	nextID     int32
	calls      []Call
	segments   []*media.MediaSegment
	haveData   []HaveData
	sources    map[int32]*media.MediaSource
	addSegment func(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus

	position        int64
	rendered        uint64
	dropped         uint64
	volume          float64
	mute            map[int32]bool
	sync            bool
	syncOff         bool
	streamSyncMode  int32
	bufferingLimit  uint32
	useBuffering    bool
	immediateOutput map[int32]bool
	textTrack       string
}

// New returns an uncreated backend with volume 1.0.
func New() *Backend {
	return &Backend{
		nextID:          1,
		sources:         make(map[int32]*media.MediaSource),
		mute:            make(map[int32]bool),
		immediateOutput: make(map[int32]bool),
		volume:          1.0,
		bufferingLimit:  ^uint32(0),
	}
}

// Factory returns a renderer.Factory that always yields b.
func (b *Backend) Factory() renderer.Factory {
	return func() renderer.Backend { return b }
}

func (b *Backend) record(name string, args ...any) {
	b.calls = append(b.calls, Call{Name: name, Args: args})
}

// Client returns the client registered through Create.
func (b *Backend) Client() renderer.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// Calls returns a copy of the call log.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Names returns the recorded call names in order.
func (b *Backend) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.calls))
	for i, c := range b.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how many times name was called.
func (b *Backend) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Last returns the most recent call named name.
func (b *Backend) Last(name string) (Call, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Name == name {
			return b.calls[i], true
		}
	}
	return Call{}, false
}

// WaitCount polls until name has been called at least n times or the
// timeout expires.
func (b *Backend) WaitCount(name string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if b.Count(name) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitHaveData polls until at least n acknowledgements were recorded.
func (b *Backend) WaitHaveData(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if len(b.HaveDataCalls()) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Segments returns the segments accepted by AddSegment.
func (b *Backend) Segments() []*media.MediaSegment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*media.MediaSegment(nil), b.segments...)
}

// HaveDataCalls returns the recorded acknowledgements.
func (b *Backend) HaveDataCalls() []HaveData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]HaveData(nil), b.haveData...)
}

// Source returns the attached source with the given id.
func (b *Backend) Source(id int32) (*media.MediaSource, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sources[id]
	return s, ok
}

// Destroyed reports whether Destroy was called.
func (b *Backend) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// SetAddSegmentFunc overrides the AddSegment result. The default accepts
// every segment.
func (b *Backend) SetAddSegmentFunc(fn func(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus) {
	b.mu.Lock()
	b.addSegment = fn
	b.mu.Unlock()
}

// SetPosition sets the value returned by Position.
func (b *Backend) SetPosition(pos int64) {
	b.mu.Lock()
	b.position = pos
	b.mu.Unlock()
}

// SetStats sets the values returned by Stats.
func (b *Backend) SetStats(rendered, dropped uint64) {
	b.mu.Lock()
	b.rendered, b.dropped = rendered, dropped
	b.mu.Unlock()
}

func (b *Backend) Create(client renderer.Client, maxWidth, maxHeight uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Create", maxWidth, maxHeight)
	if b.CreateErr != nil {
		return b.CreateErr
	}
	b.client = client
	b.created = true
	return nil
}

func (b *Backend) IsCreated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created
}

func (b *Backend) Load(mimeType, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Load", mimeType, url)
	return b.LoadErr
}

func (b *Backend) AttachSource(src *media.MediaSource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AttachSource", src.MimeType)
	if b.AttachErr != nil {
		return b.AttachErr
	}
	src.ID = b.nextID
	b.nextID++
	cp := *src
	b.sources[src.ID] = &cp
	return nil
}

func (b *Backend) RemoveSource(id int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("RemoveSource", id)
	if b.RemoveErr != nil {
		return b.RemoveErr
	}
	if _, ok := b.sources[id]; !ok {
		return renderer.ErrUnknownSource
	}
	delete(b.sources, id)
	return nil
}

func (b *Backend) AllSourcesAttached() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AllSourcesAttached")
	return nil
}

func (b *Backend) SwitchSource(src *media.MediaSource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SwitchSource", src.MimeType)
	return nil
}

func (b *Backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Destroy")
	b.destroyed = true
	b.created = false
}

func (b *Backend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Play")
	return b.PlayErr
}

func (b *Backend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Pause")
	return b.PauseErr
}

func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Stop")
	return nil
}

func (b *Backend) SetPlaybackRate(rate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetPlaybackRate", rate)
	return nil
}

func (b *Backend) SetVideoWindow(rect media.Rectangle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetVideoWindow", rect)
	return nil
}

func (b *Backend) Flush(id int32, resetTime bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Flush", id, resetTime)
	return b.FlushErr
}

func (b *Backend) SetSourcePosition(id int32, position int64, resetTime bool, appliedRate float64, stopPosition int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetSourcePosition", id, position, resetTime, appliedRate, stopPosition)
	return b.PositionErr
}

func (b *Backend) RenderFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("RenderFrame")
	return nil
}

func (b *Backend) HaveData(status media.MediaSourceStatus, requestID uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("HaveData", status, requestID)
	b.haveData = append(b.haveData, HaveData{Status: status, RequestID: requestID})
	return nil
}

func (b *Backend) AddSegment(requestID uint32, seg *media.MediaSegment) media.AddSegmentStatus {
	b.mu.Lock()
	fn := b.addSegment
	b.mu.Unlock()

	status := media.AddSegmentOK
	if fn != nil {
		status = fn(requestID, seg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AddSegment", requestID, seg.Timestamp)
	if status == media.AddSegmentOK {
		b.segments = append(b.segments, seg)
	}
	return status
}

func (b *Backend) Position() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position, nil
}

func (b *Backend) Stats(id int32) (uint64, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rendered, b.dropped, nil
}

func (b *Backend) Volume() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume, nil
}

func (b *Backend) SetVolume(target float64, durationMs uint32, ease media.EaseType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetVolume", target, durationMs, ease)
	if b.VolumeErr != nil {
		return b.VolumeErr
	}
	b.volume = target
	return nil
}

func (b *Backend) Mute(id int32) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mute[id], nil
}

func (b *Backend) SetMute(id int32, mute bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetMute", id, mute)
	b.mute[id] = mute
	return nil
}

func (b *Backend) SetLowLatency(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetLowLatency", enabled)
	return nil
}

func (b *Backend) Sync() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sync, nil
}

func (b *Backend) SetSync(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetSync", enabled)
	b.sync = enabled
	return nil
}

func (b *Backend) SyncOff() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncOff, nil
}

func (b *Backend) SetSyncOff(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetSyncOff", enabled)
	b.syncOff = enabled
	return nil
}

func (b *Backend) StreamSyncMode() (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamSyncMode, nil
}

func (b *Backend) SetStreamSyncMode(id int32, mode int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetStreamSyncMode", id, mode)
	b.streamSyncMode = mode
	return nil
}

func (b *Backend) BufferingLimit() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferingLimit, nil
}

func (b *Backend) SetBufferingLimit(ms uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetBufferingLimit", ms)
	b.bufferingLimit = ms
	return nil
}

func (b *Backend) UseBuffering() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.useBuffering, nil
}

func (b *Backend) SetUseBuffering(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetUseBuffering", enabled)
	b.useBuffering = enabled
	return nil
}

func (b *Backend) ImmediateOutput(id int32) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.immediateOutput[id], nil
}

func (b *Backend) SetImmediateOutput(id int32, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetImmediateOutput", id, enabled)
	b.immediateOutput[id] = enabled
	return nil
}

func (b *Backend) TextTrackIdentifier() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.textTrack, nil
}

func (b *Backend) SetTextTrackIdentifier(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetTextTrackIdentifier", id)
	b.textTrack = id
	return nil
}

func (b *Backend) SetSubtitleOffset(id int32, position int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SetSubtitleOffset", id, position)
	return nil
}

func (b *Backend) ProcessAudioGap(position int64, duration uint32, discontinuityGap int64, audioAac bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ProcessAudioGap", position, duration, discontinuityGap, audioAac)
	return nil
}

var _ renderer.Backend = (*Backend)(nil)
