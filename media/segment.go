package media

// CipherMode is the encryption scheme of a protected sample.
type CipherMode int

const (
	CipherModeClear CipherMode = iota
	CipherModeCENC
	CipherModeCBC1
	CipherModeCENS
	CipherModeCBCS
	CipherModeUnknown
)

func (m CipherMode) String() string {
	switch m {
	case CipherModeClear:
		return "CLEAR"
	case CipherModeCENC:
		return "CENC"
	case CipherModeCBC1:
		return "CBC1"
	case CipherModeCENS:
		return "CENS"
	case CipherModeCBCS:
		return "CBCS"
	default:
		return "UNKNOWN"
	}
}

// SubSample is one clear/encrypted byte run of a protected sample.
type SubSample struct {
	ClearBytes     uint16
	EncryptedBytes uint32
}

// EncryptionPattern is the crypt/skip block pattern used by CENS and CBCS.
type EncryptionPattern struct {
	CryptBlocks uint32
	SkipBlocks  uint32
}

// Encryption describes how a segment's payload is protected.
type Encryption struct {
	KeySessionID   int32
	KeyID          []byte
	IV             []byte
	CipherMode     CipherMode
	Pattern        *EncryptionPattern
	SubSamples     []SubSample
	InitWithLast15 bool
}

// AudioSegment holds audio-only segment fields.
type AudioSegment struct {
	SampleRate          int32
	Channels            int32
	CodecSpecificConfig []byte
}

// VideoSegment holds video-only segment fields.
type VideoSegment struct {
	Width       int32
	Height      int32
	FrameRate   Fraction
	SecureToken []byte
}

// MediaSegment is the envelope shipped to the renderer for one sample.
type MediaSegment struct {
	SourceID  int32
	Type      MediaType
	Timestamp int64
	Duration  int64
	Data      []byte
	CodecData *CodecData

	Encryption *Encryption
	Audio      *AudioSegment
	Video      *VideoSegment
}

// CipherMode returns CipherModeClear for unencrypted segments.
func (s *MediaSegment) CipherMode() CipherMode {
	if s.Encryption == nil {
		return CipherModeClear
	}
	return s.Encryption.CipherMode
}

// IsEncrypted reports whether the segment carries encryption metadata.
func (s *MediaSegment) IsEncrypted() bool { return s.Encryption != nil }
