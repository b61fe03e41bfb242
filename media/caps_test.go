package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapsTypedFields(t *testing.T) {
	t.Parallel()

	caps, err := ParseCaps("audio/mpeg, mpegversion=(int)4, rate=(int)48000, channels=(int)2, framed=(boolean)true")
	require.NoError(t, err)

	st := caps.First()
	require.NotNil(t, st)
	assert.Equal(t, "audio/mpeg", st.Name)

	rate, ok := st.Int("rate")
	assert.True(t, ok)
	assert.Equal(t, 48000, rate)

	framed, ok := st.Bool("framed")
	assert.True(t, ok)
	assert.True(t, framed)
}

func TestParseCapsInference(t *testing.T) {
	t.Parallel()

	caps := MustParseCaps("video/x-h264, width=1920, height=1080, framerate=25/1, stream-format=avc, alignment=au")
	st := caps.First()

	w, _ := st.Int("width")
	assert.Equal(t, 1920, w)

	fr, ok := st.Fraction("framerate")
	require.True(t, ok)
	assert.Equal(t, Fraction{Num: 25, Den: 1}, fr)

	format, ok := st.String("stream-format")
	require.True(t, ok)
	assert.Equal(t, "avc", format)
}

func TestParseCapsBufferAndList(t *testing.T) {
	t.Parallel()

	caps := MustParseCaps(`audio/x-flac, rate=(int)44100, channels=(int)2, streamheader=(buffer)< 7f464c4143, 00000022 >, codec_data=(buffer)0142c01e`)
	st := caps.First()

	cd, ok := st.Buffer("codec_data")
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x42, 0xc0, 0x1e}, cd)

	hdr, ok := st.List("streamheader")
	require.True(t, ok)
	require.Len(t, hdr, 2)
	assert.Equal(t, []byte{0x7f, 0x46, 0x4c, 0x41, 0x43}, hdr[0])
}

func TestParseCapsQuotedStringAndFeatures(t *testing.T) {
	t.Parallel()

	caps := MustParseCaps(`video/x-raw(memory:SystemMemory), format=(string)"I420", colorimetry="bt709, full"`)
	st := caps.First()
	assert.Equal(t, "video/x-raw", st.Name)

	cm, _ := st.String("colorimetry")
	assert.Equal(t, "bt709, full", cm)
}

func TestParseCapsMultipleStructures(t *testing.T) {
	t.Parallel()

	caps := MustParseCaps("audio/x-ac3, rate=48000; audio/x-eac3, rate=44100")
	require.Len(t, caps.Structures, 2)
	assert.Equal(t, "audio/x-ac3", caps.Name())
}

func TestParseCapsErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseCaps("   ")
	assert.ErrorIs(t, err, ErrEmptyCaps)

	_, err = ParseCaps("audio/mpeg, rate")
	var syn *CapsSyntaxError
	assert.True(t, errors.As(err, &syn))

	_, err = ParseCaps("audio/mpeg, rate=(int)fast")
	assert.Error(t, err)
}

func TestStructureIntegerWidths(t *testing.T) {
	t.Parallel()

	st := NewStructure("test").
		Set("a", uint(7)).
		Set("b", int64(-3)).
		Set("c", uint64(1<<40))

	a, ok := st.Int("a")
	assert.True(t, ok)
	assert.Equal(t, 7, a)

	_, ok = st.Uint64("b")
	assert.False(t, ok, "negative values are not unsigned")

	c, ok := st.Int64("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1<<40), c)

	_, ok = (*Structure)(nil).Int("a")
	assert.False(t, ok)
}
