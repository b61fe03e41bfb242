package loopback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/host/hosttest"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/internal/sink"
	"github.com/zsiec/rialtosink/media"
	"github.com/zsiec/rialtosink/renderer"
)

type needData struct {
	sourceID  int32
	frames    int
	requestID uint32
}

type recordingClient struct {
	mu      sync.Mutex
	states  []media.PlaybackState
	needs   []needData
	flushed []int32
}

func (c *recordingClient) NotifyDuration(int64)                  {}
func (c *recordingClient) NotifyPosition(int64)                  {}
func (c *recordingClient) NotifyNetworkState(media.NetworkState) {}
func (c *recordingClient) NotifyVideoData(bool)                  {}
func (c *recordingClient) NotifyAudioData(bool)                  {}
func (c *recordingClient) NotifyCancelNeedMediaData(int32)       {}
func (c *recordingClient) NotifyQos(int32, media.QosInfo)        {}
func (c *recordingClient) NotifyBufferUnderflow(int32)           {}
func (c *recordingClient) NotifyPlaybackError(int32, media.PlaybackError) {
}

func (c *recordingClient) NotifyPlaybackState(s media.PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
}

func (c *recordingClient) NotifyNeedMediaData(id int32, frames int, req uint32, _ *renderer.ShmInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.needs = append(c.needs, needData{sourceID: id, frames: frames, requestID: req})
}

func (c *recordingClient) NotifySourceFlushed(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed = append(c.flushed, id)
}

func (c *recordingClient) snapshot() ([]media.PlaybackState, []needData, []int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.PlaybackState(nil), c.states...),
		append([]needData(nil), c.needs...),
		append([]int32(nil), c.flushed...)
}

func newCreated(t *testing.T) (*Renderer, *recordingClient, int32) {
	t.Helper()
	r := New(Options{FrameCount: 2, Interval: 2 * time.Millisecond})
	c := &recordingClient{}
	require.NoError(t, r.Create(c, 1920, 1080))
	t.Cleanup(r.Destroy)
	require.NoError(t, r.Load(renderer.LoadMimeType, renderer.MSEURL))

	src := &media.MediaSource{Type: media.MediaTypeVideo, MimeType: "video/h264"}
	require.NoError(t, r.AttachSource(src))
	require.NoError(t, r.AllSourcesAttached())
	return r, c, src.ID
}

func TestRendererRequestsDataOncePaused(t *testing.T) {
	r, c, id := newCreated(t)

	time.Sleep(10 * time.Millisecond)
	_, needs, _ := c.snapshot()
	assert.Empty(t, needs, "no requests before preroll")

	require.NoError(t, r.Pause())
	require.Eventually(t, func() bool {
		_, needs, _ := c.snapshot()
		return len(needs) > 0
	}, time.Second, time.Millisecond)

	states, needs, _ := c.snapshot()
	assert.Equal(t, []media.PlaybackState{media.PlaybackStatePaused}, states)
	assert.Equal(t, id, needs[0].sourceID)
	assert.Equal(t, 2, needs[0].frames)

	// One outstanding request per source.
	time.Sleep(10 * time.Millisecond)
	_, needs, _ = c.snapshot()
	assert.Len(t, needs, 1)

	req := needs[0].requestID
	seg := &media.MediaSegment{SourceID: id, Timestamp: 100, Duration: 10}
	assert.Equal(t, media.AddSegmentOK, r.AddSegment(req, seg))
	assert.Equal(t, media.AddSegmentOK, r.AddSegment(req, seg))
	assert.Equal(t, media.AddSegmentNoSpace, r.AddSegment(req, seg))
	assert.Equal(t, media.AddSegmentError, r.AddSegment(req+100, seg))
	require.NoError(t, r.HaveData(media.SourceStatusOK, req))
	assert.ErrorIs(t, r.HaveData(media.SourceStatusOK, req), ErrUnknownRequest)

	pos, _ := r.Position()
	assert.Equal(t, int64(110), pos)
	rendered, _, _ := r.Stats(id)
	assert.Equal(t, uint64(2), rendered)

	require.Eventually(t, func() bool {
		_, needs, _ := c.snapshot()
		return len(needs) >= 2
	}, time.Second, time.Millisecond)
}

func TestRendererFlushAcknowledges(t *testing.T) {
	r, c, id := newCreated(t)

	require.NoError(t, r.Flush(id, true))
	require.Eventually(t, func() bool {
		_, _, flushed := c.snapshot()
		return len(flushed) == 1 && flushed[0] == id
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, r.Flush(99, false), renderer.ErrUnknownSource)
}

func TestRendererEndOfStream(t *testing.T) {
	r, c, _ := newCreated(t)
	require.NoError(t, r.Play())
	require.Eventually(t, func() bool {
		_, needs, _ := c.snapshot()
		return len(needs) > 0
	}, time.Second, time.Millisecond)

	_, needs, _ := c.snapshot()
	require.NoError(t, r.HaveData(media.SourceStatusEOS, needs[0].requestID))
	require.Eventually(t, func() bool {
		states, _, _ := c.snapshot()
		return len(states) == 2 && states[1] == media.PlaybackStateEndOfStream
	}, time.Second, time.Millisecond)
}

func TestRendererRejectsOtherLoads(t *testing.T) {
	r := New(Options{})
	require.NoError(t, r.Create(&recordingClient{}, 0, 0))
	defer r.Destroy()
	assert.ErrorIs(t, r.Load("video/webm", "http://example.com/a.webm"), ErrUnsupportedLoad)
	assert.Error(t, r.AttachSource(&media.MediaSource{}))
}

// TestLoopbackPlayback runs a video sink through preroll, playback and end
// of stream against the loopback renderer.
func TestLoopbackPlayback(t *testing.T) {
	var rend *Renderer
	reg := registry.New(func() renderer.Backend {
		rend = New(Options{FrameCount: 2, Interval: 2 * time.Millisecond})
		return rend
	}, nil)

	ctx := context.Background()
	elem := hosttest.NewElement("videosink", "pipeline")
	video := sink.NewVideo(elem, sink.Options{Registry: reg, SinglePath: true})

	require.Equal(t, host.StateChangeSuccess, video.ChangeState(ctx, host.NullToReady))
	require.Equal(t, host.StateChangeAsync, video.ChangeState(ctx, host.ReadyToPaused))
	caps := media.MustParseCaps("video/x-h264, width=(int)1280, height=(int)720, stream-format=(string)avc, alignment=(string)au")
	require.True(t, video.HandleEvent(ctx, host.NewCapsEvent(caps)))
	require.True(t, elem.WaitFor(host.MessageAsyncDone, 1, 2*time.Second))

	seg := media.DefaultSegment()
	require.True(t, video.HandleEvent(ctx, host.NewSegmentEvent(&seg)))
	for i := range 5 {
		s := &media.Sample{Data: []byte{0, 0, 0, 1}, PTS: int64(i) * 40_000_000, Duration: 40_000_000}
		require.Equal(t, host.FlowOK, video.HandleBuffer(ctx, s))
	}
	require.Eventually(t, func() bool { return rend.Segments() == 5 }, 2*time.Second, time.Millisecond)

	require.Equal(t, host.StateChangeAsync, video.ChangeState(ctx, host.PausedToPlaying))
	require.True(t, elem.WaitFor(host.MessageAsyncDone, 2, 2*time.Second))
	assert.Equal(t, host.StatePlaying, video.State())

	require.True(t, video.HandleEvent(ctx, host.NewEOSEvent()))
	require.True(t, elem.WaitFor(host.MessageEOS, 1, 2*time.Second))

	pos := host.NewPositionQuery()
	require.True(t, video.HandleQuery(ctx, pos))
	assert.Equal(t, int64(200_000_000), pos.Position)

	require.Equal(t, host.StateChangeAsync, video.ChangeState(ctx, host.PlayingToPaused))
	require.True(t, elem.WaitFor(host.MessageAsyncDone, 3, 2*time.Second))
	assert.Equal(t, host.StatePaused, video.State())
	video.ChangeState(ctx, host.PausedToReady)
	video.ChangeState(ctx, host.ReadyToNull)
	assert.False(t, rend.IsCreated())
	assert.Zero(t, elem.Count(host.MessageError))
}
