package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zsiec/rialtosink/media"
)

// Renderer mime types produced by caps translation.
const (
	MimeAudioMP3  = "audio/mp3"
	MimeAudioMP4  = "audio/mp4"
	MimeAudioEAC3 = "audio/x-eac3"
	MimeAudioOpus = "audio/x-opus"
	MimeAudioFLAC = "audio/x-flac"
	MimeAudioRaw  = "audio/x-raw"
	MimeVideoH264 = "video/h264"
	MimeVideoH265 = "video/h265"
	MimeTextVTT   = "text/vtt"
	MimeTextTTML  = "text/ttml"
	MimeTextCC    = "text/cc"
)

var audioFormats = map[string]media.AudioFormat{
	"S8":       media.AudioFormatS8,
	"U8":       media.AudioFormatU8,
	"S16LE":    media.AudioFormatS16LE,
	"S16BE":    media.AudioFormatS16BE,
	"U16LE":    media.AudioFormatU16LE,
	"U16BE":    media.AudioFormatU16BE,
	"S24_32LE": media.AudioFormatS24_32LE,
	"S24_32BE": media.AudioFormatS24_32BE,
	"U24_32LE": media.AudioFormatU24_32LE,
	"U24_32BE": media.AudioFormatU24_32BE,
	"S32LE":    media.AudioFormatS32LE,
	"S32BE":    media.AudioFormatS32BE,
	"U32LE":    media.AudioFormatU32LE,
	"U32BE":    media.AudioFormatU32BE,
	"S24LE":    media.AudioFormatS24LE,
	"S24BE":    media.AudioFormatS24BE,
	"U24LE":    media.AudioFormatU24LE,
	"U24BE":    media.AudioFormatU24BE,
	"S20LE":    media.AudioFormatS20LE,
	"S20BE":    media.AudioFormatS20BE,
	"U20LE":    media.AudioFormatU20LE,
	"U20BE":    media.AudioFormatU20BE,
	"S18LE":    media.AudioFormatS18LE,
	"S18BE":    media.AudioFormatS18BE,
	"U18LE":    media.AudioFormatU18LE,
	"U18BE":    media.AudioFormatU18BE,
	"F32LE":    media.AudioFormatF32LE,
	"F32BE":    media.AudioFormatF32BE,
	"F64LE":    media.AudioFormatF64LE,
	"F64BE":    media.AudioFormatF64BE,
}

// Translator builds renderer source descriptors from caps.
type Translator struct {
	log *slog.Logger
}

// NewTranslator creates a Translator. If log is nil, slog.Default() is used.
func NewTranslator(log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{log: log.With("component", "caps-translator")}
}

// Source dispatches to the translation for mediaType.
func (t *Translator) Source(mediaType media.MediaType, caps *media.Caps) (*media.MediaSource, error) {
	switch mediaType {
	case media.MediaTypeAudio:
		return t.AudioSource(caps)
	case media.MediaTypeVideo:
		return t.VideoSource(caps)
	case media.MediaTypeSubtitle:
		return t.SubtitleSource(caps)
	}
	return nil, fmt.Errorf("parser: no source translation for %s", mediaType)
}

func baseSource(mediaType media.MediaType, caps *media.Caps) (*media.MediaSource, *media.Structure, string, error) {
	st := caps.First()
	if st == nil {
		return nil, nil, "", ErrNoCaps
	}
	src := &media.MediaSource{
		Type:      mediaType,
		HasDrm:    isEncryptedCaps(st.Name),
		CodecData: CodecData(st),
	}
	return src, st, clearName(st), nil
}

// AudioSource translates audio caps.
func (t *Translator) AudioSource(caps *media.Caps) (*media.MediaSource, error) {
	src, st, name, err := baseSource(media.MediaTypeAudio, caps)
	if err != nil {
		return nil, err
	}
	cfg := &media.AudioConfig{}
	if rate, ok := st.Int("rate"); ok {
		cfg.SampleRate = uint32(rate)
	}
	if ch, ok := st.Int("channels"); ok {
		cfg.NumberOfChannels = uint32(ch)
	}
	src.Audio = cfg

	switch {
	case strings.HasPrefix(name, "audio/mpeg"):
		version, _ := st.Int("mpegversion")
		layer, _ := st.Int("layer")
		if version == 1 && layer == 3 {
			src.MimeType = MimeAudioMP3
		} else {
			src.MimeType = MimeAudioMP4
		}
	case strings.HasPrefix(name, "audio/x-eac3"), strings.HasPrefix(name, "audio/x-ac3"):
		src.MimeType = MimeAudioEAC3
	case strings.HasPrefix(name, "audio/x-opus"):
		src.MimeType = MimeAudioOpus
		hdr, err := OpusHeader(st)
		if err != nil {
			t.log.Warn("cannot build opus id header", "error", err)
		} else {
			cfg.CodecSpecificConfig = hdr
		}
		if cfg.SampleRate == 0 {
			cfg.SampleRate = opusDefaultRate
		}
	case name == "audio/b-wav", name == "audio/x-raw":
		src.MimeType = name
		t.rawAudio(st, cfg)
	case strings.HasPrefix(name, "audio/x-flac"):
		src.MimeType = MimeAudioFLAC
		if list, ok := st.List("streamheader"); ok {
			for _, v := range list {
				if b, ok := v.([]byte); ok {
					cfg.StreamHeader = append(cfg.StreamHeader, append([]byte(nil), b...))
				}
			}
		}
		if framed, ok := st.Bool("framed"); ok {
			cfg.Framed = &framed
		}
	default:
		src.MimeType = name
	}
	return src, nil
}

func (t *Translator) rawAudio(st *media.Structure, cfg *media.AudioConfig) {
	if f, ok := st.String("format"); ok {
		if format, known := audioFormats[f]; known {
			cfg.Format = &format
		} else {
			t.log.Warn("unknown raw audio format, omitting", "format", f)
		}
	}
	if l, ok := st.String("layout"); ok {
		var layout media.Layout
		switch l {
		case "interleaved":
			layout = media.LayoutInterleaved
			cfg.Layout = &layout
		case "non-interleaved":
			layout = media.LayoutNonInterleaved
			cfg.Layout = &layout
		default:
			t.log.Warn("unknown raw audio layout, omitting", "layout", l)
		}
	}
	if mask, ok := st.Uint64("channel-mask"); ok {
		cfg.ChannelMask = &mask
	}
}

// VideoSource translates video caps.
func (t *Translator) VideoSource(caps *media.Caps) (*media.MediaSource, error) {
	src, st, name, err := baseSource(media.MediaTypeVideo, caps)
	if err != nil {
		return nil, err
	}
	w, _ := st.Int("width")
	h, _ := st.Int("height")
	src.Video = &media.VideoConfig{Width: int32(w), Height: int32(h)}

	switch {
	case strings.HasPrefix(name, "video/x-h264"):
		src.MimeType = MimeVideoH264
	case strings.HasPrefix(name, "video/x-h265"):
		src.MimeType = MimeVideoH265
	default:
		src.MimeType = name
	}

	if dovi, _ := st.Bool("dovi-stream"); dovi {
		if profile, ok := st.Int("dv_profile"); ok {
			p := uint32(profile)
			src.Video.DolbyVisionProfile = &p
		}
	}

	if sf, ok := st.String("stream-format"); ok {
		src.StreamFormat = streamFormat(sf)
	}
	if a, ok := st.String("alignment"); ok {
		switch a {
		case "au":
			src.Alignment = media.AlignmentAU
		case "nal":
			src.Alignment = media.AlignmentNAL
		default:
			t.log.Debug("unknown alignment", "alignment", a)
		}
	}
	return src, nil
}

func streamFormat(s string) media.StreamFormat {
	switch s {
	case "raw":
		return media.StreamFormatRaw
	case "avc":
		return media.StreamFormatAVC
	case "avc3":
		return media.StreamFormatAVC3
	case "byte-stream":
		return media.StreamFormatByteStream
	case "hvc1":
		return media.StreamFormatHVC1
	case "hev1":
		return media.StreamFormatHEV1
	}
	return media.StreamFormatUndefined
}

// SubtitleSource translates subtitle caps.
func (t *Translator) SubtitleSource(caps *media.Caps) (*media.MediaSource, error) {
	src, _, name, err := baseSource(media.MediaTypeSubtitle, caps)
	if err != nil {
		return nil, err
	}
	src.Subtitle = &media.SubtitleConfig{}

	switch {
	case name == "text/vtt", name == "application/x-subtitle-vtt":
		src.MimeType = MimeTextVTT
	case name == "application/ttml+xml":
		src.MimeType = MimeTextTTML
	case strings.HasPrefix(name, "closedcaption/x-cea-"),
		strings.HasPrefix(name, "application/x-cea-"),
		name == "application/x-subtitle-cc":
		src.MimeType = MimeTextCC
	default:
		src.MimeType = name
	}
	return src, nil
}
