package samplebuf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/rialtosink/media"
)

func sample(pts int64) *media.Sample {
	return &media.Sample{Data: []byte{byte(pts)}, PTS: pts, Duration: 1}
}

func fill(t *testing.T, b *Buffer) {
	t.Helper()
	for i := range b.Capacity() {
		require.NoError(t, b.Push(context.Background(), sample(int64(i))))
	}
}

func pushAsync(b *Buffer, s *media.Sample) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- b.Push(context.Background(), s) }()
	return ch
}

func assertBlocked(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf("push returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBufferFIFO(t *testing.T) {
	t.Parallel()
	b := New(0)
	assert.Equal(t, DefaultCapacity, b.Capacity())

	for i := range 3 {
		require.NoError(t, b.Push(context.Background(), sample(int64(i))))
	}
	for i := range 3 {
		s, ok := b.Peek()
		require.True(t, ok)
		assert.Equal(t, int64(i), s.PTS)
		popped, ok := b.Pop()
		require.True(t, ok)
		assert.Same(t, s, popped)
	}
	_, ok := b.Pop()
	assert.False(t, ok)
}

func TestPushBlocksUntilPop(t *testing.T) {
	t.Parallel()
	b := New(DefaultCapacity)
	fill(t, b)

	ch := pushAsync(b, sample(99))
	assertBlocked(t, ch)

	_, ok := b.Pop()
	require.True(t, ok)

	select {
	case err := <-ch:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer not resumed by pop")
	}
	assert.Equal(t, DefaultCapacity, b.Len())
}

func TestFlushWakesProducerAndRejectsPushes(t *testing.T) {
	t.Parallel()
	b := New(4)
	fill(t, b)
	b.SetEOS(true)

	ch := pushAsync(b, sample(99))
	assertBlocked(t, ch)

	b.Flush()
	select {
	case err := <-ch:
		assert.ErrorIs(t, err, ErrFlushing)
	case <-time.After(time.Second):
		t.Fatal("producer not woken by flush")
	}
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.IsEOS())
	assert.ErrorIs(t, b.Push(context.Background(), sample(1)), ErrFlushing)

	b.ResumeAfterFlush()
	assert.NoError(t, b.Push(context.Background(), sample(1)))
}

func TestClearWakesProducer(t *testing.T) {
	t.Parallel()
	b := New(2)
	fill(t, b)

	ch := pushAsync(b, sample(7))
	assertBlocked(t, ch)
	b.Clear()

	select {
	case err := <-ch:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer not woken by clear")
	}
	s, ok := b.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(7), s.PTS)
}

func TestStopWakesProducer(t *testing.T) {
	t.Parallel()
	b := New(1)
	fill(t, b)

	ch := pushAsync(b, sample(5))
	assertBlocked(t, ch)
	b.Stop()

	select {
	case err := <-ch:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("producer not woken by stop")
	}

	b.Reset()
	assert.NoError(t, b.Push(context.Background(), sample(1)))
}

func TestPushHonoursContext(t *testing.T) {
	t.Parallel()
	b := New(1)
	fill(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Push(ctx, sample(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, b.Len())
}

func TestServerFlushingHidesSamples(t *testing.T) {
	t.Parallel()
	b := New(DefaultCapacity)
	require.NoError(t, b.Push(context.Background(), sample(1)))

	b.SetServerFlushing(true)
	_, ok := b.Peek()
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len())

	b.SetServerFlushing(false)
	_, ok = b.Peek()
	assert.True(t, ok)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	b := New(DefaultCapacity)

	_, ok := b.Segment()
	assert.False(t, ok)

	seg := media.DefaultSegment()
	seg.Start = 10
	b.SetSegment(seg)
	got, ok := b.Segment()
	require.True(t, ok)
	assert.Equal(t, int64(10), got.Start)

	caps := media.MustParseCaps("audio/mpeg, rate=48000")
	b.SetCaps(caps)
	assert.Same(t, caps, b.Caps())

	b.Reset()
	assert.Nil(t, b.Caps())
	_, ok = b.Segment()
	assert.False(t, ok)
}

func TestPopIfOnlyRemovesPeekedSample(t *testing.T) {
	t.Parallel()
	b := New(DefaultCapacity)
	first := sample(1)
	require.NoError(t, b.Push(context.Background(), first))

	peeked, ok := b.Peek()
	require.True(t, ok)

	b.Flush()
	b.ResumeAfterFlush()
	require.NoError(t, b.Push(context.Background(), sample(2)))

	assert.False(t, b.PopIf(peeked))
	assert.Equal(t, 1, b.Len())

	front, _ := b.Peek()
	assert.True(t, b.PopIf(front))
	assert.Equal(t, 0, b.Len())
}
