// Package parser turns host samples into renderer-ready media segments and
// translates stream caps into renderer source descriptors. Everything here
// is free of shared state and safe to call from any goroutine.
package parser

import (
	"log/slog"
	"strings"

	"github.com/zsiec/rialtosink/media"
)

// Caps names of encrypted streams. Their original-media-type field holds
// the clear mime.
const (
	CapsCENC    = "application/x-cenc"
	CapsWebMEnc = "application/x-webm-enc"
)

// Parser converts samples to segments.
type Parser struct {
	log *slog.Logger
}

// New creates a Parser. If log is nil, slog.Default() is used.
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log.With("component", "parser")}
}

// Parse builds the MediaSegment for s. The payload is shared with the
// sample, not copied.
func (p *Parser) Parse(s *media.Sample, sourceID int32, mediaType media.MediaType) (*media.MediaSegment, error) {
	if s == nil {
		return nil, ErrNoSample
	}
	st := s.Caps.First()
	if st == nil {
		return nil, ErrNoCaps
	}

	seg := &media.MediaSegment{
		SourceID:  sourceID,
		Type:      mediaType,
		Timestamp: s.PTS,
		Duration:  s.Duration,
		Data:      s.Data,
		CodecData: CodecData(st),
	}

	switch mediaType {
	case media.MediaTypeAudio:
		if err := audioFields(st, seg); err != nil {
			return nil, err
		}
	case media.MediaTypeVideo:
		videoFields(st, s.Protection, seg)
	}

	if mediaType == media.MediaTypeAudio || mediaType == media.MediaTypeVideo {
		enc, err := p.encryption(s.Protection, len(s.Data))
		if err != nil {
			return nil, err
		}
		if enc != nil && len(enc.SubSamples) == 0 && isEncryptedCaps(st.Name) && !enc.subsampleMismatch {
			enc.SubSamples = []media.SubSample{{ClearBytes: 0, EncryptedBytes: uint32(len(s.Data))}}
		}
		if enc != nil {
			seg.Encryption = &enc.Encryption
		}
	}
	return seg, nil
}

func isEncryptedCaps(name string) bool {
	return strings.HasPrefix(name, CapsCENC) || strings.HasPrefix(name, CapsWebMEnc)
}

// CodecData extracts the codec_data caps field, which may be a buffer or a
// string.
func CodecData(st *media.Structure) *media.CodecData {
	if b, ok := st.Buffer("codec_data"); ok {
		return &media.CodecData{Type: media.CodecDataBuffer, Data: append([]byte(nil), b...)}
	}
	if str, ok := st.String("codec_data"); ok {
		return &media.CodecData{Type: media.CodecDataString, Data: []byte(str)}
	}
	return nil
}

func audioFields(st *media.Structure, seg *media.MediaSegment) error {
	rate, hasRate := st.Int("rate")
	channels, hasChannels := st.Int("channels")

	if isRawAudio(clearName(st)) {
		switch {
		case !hasRate:
			return missing("rate")
		case !hasChannels:
			return missing("channels")
		case !st.Has("format"):
			return missing("format")
		}
	}
	seg.Audio = &media.AudioSegment{SampleRate: int32(rate), Channels: int32(channels)}

	if strings.HasPrefix(clearName(st), "audio/x-opus") {
		if hdr, err := OpusHeader(st); err == nil {
			seg.Audio.CodecSpecificConfig = hdr
		}
		if !hasRate {
			seg.Audio.SampleRate = opusDefaultRate
		}
	}
	return nil
}

func videoFields(st *media.Structure, protection *media.Structure, seg *media.MediaSegment) {
	w, _ := st.Int("width")
	h, _ := st.Int("height")
	fr, ok := st.Fraction("framerate")
	if !ok {
		fr = media.UndefinedFraction
	}
	seg.Video = &media.VideoSegment{Width: int32(w), Height: int32(h), FrameRate: fr}
	if tok, ok := protection.Buffer("secure-token"); ok && len(tok) > 0 {
		seg.Video.SecureToken = append([]byte(nil), tok...)
	}
}

// clearName returns the structure name, or the original-media-type of an
// encrypted structure.
func clearName(st *media.Structure) string {
	if isEncryptedCaps(st.Name) {
		if orig, ok := st.String("original-media-type"); ok {
			return orig
		}
	}
	return st.Name
}

func isRawAudio(name string) bool {
	return name == "audio/x-raw" || name == "audio/b-wav"
}
