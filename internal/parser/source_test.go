package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/rialtosink/media"
)

func TestAudioSourceMimeMapping(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(nil)

	tests := []struct {
		caps string
		mime string
	}{
		{"audio/mpeg, mpegversion=4, rate=48000, channels=2", MimeAudioMP4},
		{"audio/mpeg, mpegversion=1, layer=3, rate=44100, channels=2", MimeAudioMP3},
		{"audio/mpeg, mpegversion=1, layer=2", MimeAudioMP4},
		{"audio/x-ac3, rate=48000, channels=6", MimeAudioEAC3},
		{"audio/x-eac3, rate=48000, channels=6", MimeAudioEAC3},
		{"audio/x-opus, channels=2", MimeAudioOpus},
		{"audio/x-flac, rate=44100, channels=2", MimeAudioFLAC},
		{"audio/x-raw, rate=48000, channels=2, format=S16LE", "audio/x-raw"},
		{"audio/b-wav, rate=48000, channels=2, format=S16LE", "audio/b-wav"},
		{"audio/x-vorbis, rate=44100", "audio/x-vorbis"},
	}
	for _, tt := range tests {
		src, err := tr.AudioSource(media.MustParseCaps(tt.caps))
		require.NoError(t, err, tt.caps)
		assert.Equal(t, tt.mime, src.MimeType, tt.caps)
		assert.Equal(t, media.MediaTypeAudio, src.Type)
	}
}

func TestAudioSourceAttachAndPauseCaps(t *testing.T) {
	t.Parallel()
	src, err := NewTranslator(nil).AudioSource(media.MustParseCaps("audio/mpeg, mpegversion=4, rate=48000, channels=2"))
	require.NoError(t, err)
	assert.Equal(t, "audio/mp4", src.MimeType)
	assert.Equal(t, uint32(2), src.Audio.NumberOfChannels)
	assert.Equal(t, uint32(48000), src.Audio.SampleRate)
	assert.False(t, src.HasDrm)
}

func TestAudioSourceRaw(t *testing.T) {
	t.Parallel()
	src, err := NewTranslator(nil).AudioSource(media.MustParseCaps(
		"audio/x-raw, rate=48000, channels=2, format=F32LE, layout=non-interleaved, channel-mask=(bitmask)0x3"))
	require.NoError(t, err)
	require.NotNil(t, src.Audio.Format)
	assert.Equal(t, media.AudioFormatF32LE, *src.Audio.Format)
	require.NotNil(t, src.Audio.Layout)
	assert.Equal(t, media.LayoutNonInterleaved, *src.Audio.Layout)
	require.NotNil(t, src.Audio.ChannelMask)
	assert.Equal(t, uint64(3), *src.Audio.ChannelMask)

	src, err = NewTranslator(nil).AudioSource(media.MustParseCaps("audio/x-raw, rate=48000, channels=2, format=S99LE"))
	require.NoError(t, err)
	assert.Nil(t, src.Audio.Format)
}

func TestAudioSourceFlac(t *testing.T) {
	t.Parallel()
	src, err := NewTranslator(nil).AudioSource(media.MustParseCaps(
		"audio/x-flac, rate=44100, channels=2, framed=true, streamheader=(buffer)< 7f464c4143, 0102 >"))
	require.NoError(t, err)
	require.Len(t, src.Audio.StreamHeader, 2)
	assert.Equal(t, []byte{1, 2}, src.Audio.StreamHeader[1])
	require.NotNil(t, src.Audio.Framed)
	assert.True(t, *src.Audio.Framed)
}

func TestAudioSourceOpus(t *testing.T) {
	t.Parallel()
	src, err := NewTranslator(nil).AudioSource(media.MustParseCaps("audio/x-opus, channel-mapping-family=0, channels=2"))
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), src.Audio.SampleRate)

	want := []byte{
		'O', 'p', 'u', 's', 'H', 'e', 'a', 'd',
		1, 2,
		0, 0,
		0x80, 0xbb, 0, 0,
		0, 0,
		0,
	}
	assert.Equal(t, want, src.Audio.CodecSpecificConfig)
}

func TestOpusHeaderMultichannel(t *testing.T) {
	t.Parallel()
	st := media.MustParseCaps(
		"audio/x-opus, rate=48000, channels=3, channel-mapping-family=1, stream-count=2, coupled-count=1, channel-mapping=< 0, 2, 1 >").First()
	hdr, err := OpusHeader(st)
	require.NoError(t, err)
	require.Len(t, hdr, 19+2+3)
	assert.Equal(t, byte(3), hdr[9])
	assert.Equal(t, byte(1), hdr[18])
	assert.Equal(t, []byte{2, 1, 0, 2, 1}, hdr[19:])

	_, err = OpusHeader(media.MustParseCaps("audio/x-opus, channels=3, channel-mapping-family=1").First())
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestOpusHeaderFromStreamHeader(t *testing.T) {
	t.Parallel()
	st := media.NewStructure("audio/x-opus").
		Set("streamheader", []any{[]byte("OpusHead\x01\x01custom"), []byte("OpusTags")})
	hdr, err := OpusHeader(st)
	require.NoError(t, err)
	assert.Equal(t, []byte("OpusHead\x01\x01custom"), hdr)
}

func TestVideoSource(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(nil)

	src, err := tr.VideoSource(media.MustParseCaps("video/x-h264, width=1920, height=1080, stream-format=avc, alignment=au, codec_data=(buffer)0164"))
	require.NoError(t, err)
	assert.Equal(t, MimeVideoH264, src.MimeType)
	assert.Equal(t, media.StreamFormatAVC, src.StreamFormat)
	assert.Equal(t, media.AlignmentAU, src.Alignment)
	assert.Equal(t, int32(1920), src.Video.Width)
	assert.False(t, src.IsDolbyVision())
	require.NotNil(t, src.CodecData)

	src, err = tr.VideoSource(media.MustParseCaps("video/x-h265, dovi-stream=true, dv_profile=(uint)5, stream-format=hvc1"))
	require.NoError(t, err)
	assert.Equal(t, MimeVideoH265, src.MimeType)
	require.True(t, src.IsDolbyVision())
	assert.Equal(t, uint32(5), *src.Video.DolbyVisionProfile)
	assert.Equal(t, media.StreamFormatHVC1, src.StreamFormat)

	src, err = tr.VideoSource(media.MustParseCaps("video/x-vp9, width=1280, height=720"))
	require.NoError(t, err)
	assert.Equal(t, "video/x-vp9", src.MimeType)
}

func TestVideoSourceEncrypted(t *testing.T) {
	t.Parallel()
	src, err := NewTranslator(nil).VideoSource(media.MustParseCaps(
		`application/x-cenc, original-media-type=(string)video/x-h264, width=1920, height=1080, protection-system=(string)"edef8ba9"`))
	require.NoError(t, err)
	assert.Equal(t, MimeVideoH264, src.MimeType)
	assert.True(t, src.HasDrm)
}

func TestSubtitleSource(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(nil)

	tests := map[string]string{
		"text/vtt":                   MimeTextVTT,
		"application/x-subtitle-vtt": MimeTextVTT,
		"application/ttml+xml":       MimeTextTTML,
		"closedcaption/x-cea-608":    MimeTextCC,
		"closedcaption/x-cea-708":    MimeTextCC,
		"application/x-cea-608":      MimeTextCC,
		"application/x-subtitle-cc":  MimeTextCC,
		"text/x-raw":                 "text/x-raw",
	}
	for caps, want := range tests {
		src, err := tr.SubtitleSource(media.MustParseCaps(caps))
		require.NoError(t, err, caps)
		assert.Equal(t, want, src.MimeType, caps)
		assert.NotNil(t, src.Subtitle)
	}
}

func TestSourceRequiresCaps(t *testing.T) {
	t.Parallel()
	_, err := NewTranslator(nil).Source(media.MediaTypeAudio, nil)
	assert.ErrorIs(t, err, ErrNoCaps)
	_, err = NewTranslator(nil).Source(media.MediaTypeUnknown, media.MustParseCaps("x/y"))
	assert.Error(t, err)
}
