package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/rialtosink/media"
)

func cencProtection() *media.Structure {
	return media.NewStructure("application/x-cenc").
		Set("encrypted", true).
		Set("kid", []byte{0xaa, 0xbb}).
		Set("iv_size", uint(8)).
		Set("iv", []byte{1, 2, 3, 4, 5, 6, 7, 8}).
		Set("mks_id", 3).
		Set("cipher-mode", "cenc").
		Set("subsample_count", uint(1)).
		Set("subsamples", []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x0C})
}

func TestParseEncryptedVideoSubsample(t *testing.T) {
	t.Parallel()
	p := New(nil)

	s := &media.Sample{
		Data:       make([]byte, 19),
		PTS:        40_000_000,
		Duration:   40_000_000,
		Caps:       media.MustParseCaps("application/x-cenc, width=1920, height=1080, framerate=25/1"),
		Protection: cencProtection(),
	}
	seg, err := p.Parse(s, 2, media.MediaTypeVideo)
	require.NoError(t, err)

	assert.Equal(t, int32(2), seg.SourceID)
	assert.Equal(t, media.CipherModeCENC, seg.CipherMode())
	require.NotNil(t, seg.Encryption)
	assert.Equal(t, []media.SubSample{{ClearBytes: 7, EncryptedBytes: 12}}, seg.Encryption.SubSamples)
	assert.Equal(t, int32(3), seg.Encryption.KeySessionID)
	assert.Equal(t, []byte{0xaa, 0xbb}, seg.Encryption.KeyID)
	assert.Len(t, seg.Encryption.IV, 8)

	require.NotNil(t, seg.Video)
	assert.Equal(t, int32(1920), seg.Video.Width)
	assert.Equal(t, int32(1080), seg.Video.Height)
	assert.Equal(t, media.Fraction{Num: 25, Den: 1}, seg.Video.FrameRate)
	assert.Equal(t, int64(40_000_000), seg.Timestamp)
}

func TestParseCopiesTimingAndPayload(t *testing.T) {
	t.Parallel()
	p := New(nil)

	payload := []byte{1, 2, 3}
	s := &media.Sample{
		Data:     payload,
		PTS:      123,
		Duration: 456,
		Caps:     media.MustParseCaps("audio/mpeg, mpegversion=4, rate=48000, channels=2, codec_data=(buffer)1190"),
	}
	seg, err := p.Parse(s, 1, media.MediaTypeAudio)
	require.NoError(t, err)

	assert.Equal(t, int64(123), seg.Timestamp)
	assert.Equal(t, int64(456), seg.Duration)
	assert.Equal(t, payload, seg.Data)
	assert.Equal(t, media.CipherModeClear, seg.CipherMode())
	assert.Nil(t, seg.Encryption)
	require.NotNil(t, seg.CodecData)
	assert.Equal(t, media.CodecDataBuffer, seg.CodecData.Type)
	assert.Equal(t, []byte{0x11, 0x90}, seg.CodecData.Data)
	assert.Equal(t, int32(48000), seg.Audio.SampleRate)
	assert.Equal(t, int32(2), seg.Audio.Channels)
}

func TestParseStringCodecData(t *testing.T) {
	t.Parallel()
	s := &media.Sample{Caps: media.MustParseCaps(`video/x-h264, codec_data=(string)"abc"`)}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.NoError(t, err)
	require.NotNil(t, seg.CodecData)
	assert.Equal(t, media.CodecDataString, seg.CodecData.Type)
	assert.Equal(t, []byte("abc"), seg.CodecData.Data)
	assert.Equal(t, media.UndefinedFraction, seg.Video.FrameRate)
}

func TestParseSynthesisesSubsample(t *testing.T) {
	t.Parallel()
	prot := media.NewStructure("application/x-cenc").
		Set("encrypted", true).
		Set("iv_size", 0).
		Set("constant_iv_size", 4).
		Set("constant_iv", []byte{9, 9, 9, 9}).
		Set("cipher-mode", "cbcs").
		Set("crypt_byte_block", uint(1)).
		Set("skip_byte_block", uint(9))

	s := &media.Sample{
		Data:       make([]byte, 100),
		Caps:       media.MustParseCaps("application/x-cenc, original-media-type=audio/mpeg, rate=44100, channels=2"),
		Protection: prot,
	}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeAudio)
	require.NoError(t, err)

	require.NotNil(t, seg.Encryption)
	assert.Equal(t, media.CipherModeCBCS, seg.Encryption.CipherMode)
	assert.Equal(t, []byte{9, 9, 9, 9}, seg.Encryption.IV)
	assert.Equal(t, &media.EncryptionPattern{CryptBlocks: 1, SkipBlocks: 9}, seg.Encryption.Pattern)
	assert.Equal(t, []media.SubSample{{ClearBytes: 0, EncryptedBytes: 100}}, seg.Encryption.SubSamples)
}

func TestParseNoSynthesisForClearCaps(t *testing.T) {
	t.Parallel()
	prot := media.NewStructure("meta").Set("encrypted", true).Set("cipher-mode", "cens")
	s := &media.Sample{
		Data:       make([]byte, 10),
		Caps:       media.MustParseCaps("video/x-h264, width=640, height=480"),
		Protection: prot,
	}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, media.CipherModeCENS, seg.CipherMode())
	assert.Empty(t, seg.Encryption.SubSamples)
}

func TestParseMissingConstantIV(t *testing.T) {
	t.Parallel()
	prot := media.NewStructure("application/x-cenc").
		Set("encrypted", true).
		Set("iv_size", 0).
		Set("constant_iv_size", 16)
	s := &media.Sample{
		Data:       make([]byte, 10),
		Caps:       media.MustParseCaps("application/x-cenc, width=640, height=480"),
		Protection: prot,
	}
	_, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "constant_iv", fe.Field)
}

func TestParseSubsampleCountMismatch(t *testing.T) {
	t.Parallel()
	prot := cencProtection().Set("subsample_count", uint(2))
	s := &media.Sample{
		Data:       make([]byte, 19),
		Caps:       media.MustParseCaps("application/x-cenc, width=1920, height=1080"),
		Protection: prot,
	}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.NoError(t, err)
	require.NotNil(t, seg.Encryption)
	assert.Empty(t, seg.Encryption.SubSamples)
}

func TestParseUnencryptedMetadataIsClear(t *testing.T) {
	t.Parallel()
	prot := media.NewStructure("application/x-cenc").Set("encrypted", false)
	s := &media.Sample{Caps: media.MustParseCaps("application/x-cenc, width=1, height=1"), Protection: prot}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, media.CipherModeClear, seg.CipherMode())
}

func TestParseSecureToken(t *testing.T) {
	t.Parallel()
	prot := media.NewStructure("meta").Set("secure-token", []byte{0xde, 0xad})
	s := &media.Sample{Caps: media.MustParseCaps("video/x-h265, width=3840, height=2160"), Protection: prot}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, seg.Video.SecureToken)
	assert.Nil(t, seg.Encryption)
}

func TestParseRawAudioRequiresFields(t *testing.T) {
	t.Parallel()
	p := New(nil)

	tests := []struct {
		caps  string
		field string
	}{
		{"audio/x-raw, channels=2, format=S16LE", "rate"},
		{"audio/x-raw, rate=48000, format=S16LE", "channels"},
		{"audio/b-wav, rate=48000, channels=2", "format"},
	}
	for _, tt := range tests {
		_, err := p.Parse(&media.Sample{Caps: media.MustParseCaps(tt.caps)}, 1, media.MediaTypeAudio)
		var fe *FieldError
		if assert.ErrorAs(t, err, &fe, tt.caps) {
			assert.Equal(t, tt.field, fe.Field)
		}
	}

	_, err := p.Parse(&media.Sample{Caps: media.MustParseCaps("audio/x-raw, rate=48000, channels=2, format=S16LE")}, 1, media.MediaTypeAudio)
	assert.NoError(t, err)
}

func TestParseOpusSegment(t *testing.T) {
	t.Parallel()
	s := &media.Sample{Caps: media.MustParseCaps("audio/x-opus, channel-mapping-family=0, channels=2")}
	seg, err := New(nil).Parse(s, 1, media.MediaTypeAudio)
	require.NoError(t, err)
	assert.Equal(t, int32(48000), seg.Audio.SampleRate)
	assert.Equal(t, []byte("OpusHead"), seg.Audio.CodecSpecificConfig[:8])
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	p := New(nil)
	_, err := p.Parse(nil, 1, media.MediaTypeAudio)
	assert.ErrorIs(t, err, ErrNoSample)
	_, err = p.Parse(&media.Sample{}, 1, media.MediaTypeAudio)
	assert.ErrorIs(t, err, ErrNoCaps)
}

func TestCipherModeMapping(t *testing.T) {
	t.Parallel()
	tests := map[string]media.CipherMode{
		"cenc": media.CipherModeCENC,
		"cbcs": media.CipherModeCBCS,
		"cbc1": media.CipherModeCBC1,
		"cens": media.CipherModeCENS,
		"aes":  media.CipherModeUnknown,
	}
	for name, want := range tests {
		got := CipherMode(media.NewStructure("p").Set("cipher-mode", name))
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, media.CipherModeClear, CipherMode(nil))
}

func TestParseSubSamples(t *testing.T) {
	t.Parallel()
	buf := []byte{
		0x00, 0x10, 0x00, 0x00, 0x01, 0x00,
		0xff, 0xff, 0x00, 0x01, 0x00, 0x00,
	}
	subs, err := ParseSubSamples(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, []media.SubSample{
		{ClearBytes: 16, EncryptedBytes: 256},
		{ClearBytes: 65535, EncryptedBytes: 65536},
	}, subs)

	_, err = ParseSubSamples(buf[:7], 1)
	assert.ErrorIs(t, err, ErrInvalidField)
}
