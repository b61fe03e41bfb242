package media

// SegmentAlignment is the unit in which video payloads are split.
type SegmentAlignment int

const (
	AlignmentUndefined SegmentAlignment = iota
	AlignmentNAL
	AlignmentAU
)

// StreamFormat is the bitstream packaging of a video source.
type StreamFormat int

const (
	StreamFormatUndefined StreamFormat = iota
	StreamFormatRaw
	StreamFormatAVC
	StreamFormatAVC3
	StreamFormatByteStream
	StreamFormatHVC1
	StreamFormatHEV1
)

// CodecDataType tags how codec data was carried in caps.
type CodecDataType int

const (
	CodecDataBuffer CodecDataType = iota
	CodecDataString
)

// CodecData is out-of-band decoder configuration.
type CodecData struct {
	Type CodecDataType
	Data []byte
}

// AudioFormat is a raw PCM sample format.
type AudioFormat int

const (
	AudioFormatS8 AudioFormat = iota
	AudioFormatU8
	AudioFormatS16LE
	AudioFormatS16BE
	AudioFormatU16LE
	AudioFormatU16BE
	AudioFormatS24_32LE
	AudioFormatS24_32BE
	AudioFormatU24_32LE
	AudioFormatU24_32BE
	AudioFormatS32LE
	AudioFormatS32BE
	AudioFormatU32LE
	AudioFormatU32BE
	AudioFormatS24LE
	AudioFormatS24BE
	AudioFormatU24LE
	AudioFormatU24BE
	AudioFormatS20LE
	AudioFormatS20BE
	AudioFormatU20LE
	AudioFormatU20BE
	AudioFormatS18LE
	AudioFormatS18BE
	AudioFormatU18LE
	AudioFormatU18BE
	AudioFormatF32LE
	AudioFormatF32BE
	AudioFormatF64LE
	AudioFormatF64BE
)

// Layout is the channel arrangement of raw audio.
type Layout int

const (
	LayoutInterleaved Layout = iota
	LayoutNonInterleaved
)

// AudioConfig describes an audio source.
type AudioConfig struct {
	NumberOfChannels    uint32
	SampleRate          uint32
	CodecSpecificConfig []byte
	Format              *AudioFormat
	Layout              *Layout
	ChannelMask         *uint64
	StreamHeader        [][]byte
	Framed              *bool
}

// VideoConfig describes a video source.
type VideoConfig struct {
	Width  int32
	Height int32

	// DolbyVisionProfile is set for Dolby Vision sources only.
	DolbyVisionProfile *uint32
}

// SubtitleConfig describes a subtitle source.
type SubtitleConfig struct {
	TextTrackIdentifier string
}

// MediaSource is the renderer-facing descriptor created from the first caps
// of a stream. ID is assigned by the renderer on attach.
type MediaSource struct {
	ID           int32
	Type         MediaType
	MimeType     string
	HasDrm       bool
	IsAsync      bool
	Alignment    SegmentAlignment
	StreamFormat StreamFormat
	CodecData    *CodecData

	Audio    *AudioConfig
	Video    *VideoConfig
	Subtitle *SubtitleConfig
}

// IsDolbyVision reports whether the source is the Dolby Vision variant.
func (s *MediaSource) IsDolbyVision() bool {
	return s.Video != nil && s.Video.DolbyVisionProfile != nil
}
