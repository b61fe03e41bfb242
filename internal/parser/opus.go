package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zsiec/rialtosink/media"
)

const opusDefaultRate = 48000

var opusMagic = []byte("OpusHead")

// OpusHeader returns the Opus identification header for the caps. A
// streamheader buffer that already is an id header is used as is;
// otherwise one is synthesised from rate, channels and the channel mapping
// fields, with zero pre-skip and gain.
func OpusHeader(st *media.Structure) ([]byte, error) {
	if list, ok := st.List("streamheader"); ok {
		for _, v := range list {
			if b, ok := v.([]byte); ok && bytes.HasPrefix(b, opusMagic) {
				return append([]byte(nil), b...), nil
			}
		}
	}

	rate := opusDefaultRate
	if r, ok := st.Int("rate"); ok && r > 0 {
		rate = r
	}
	family, _ := st.Int("channel-mapping-family")
	channels, hasChannels := st.Int("channels")

	var streams, coupled int
	var mapping []byte
	switch family {
	case 0:
		if !hasChannels {
			channels = 2
		}
		if channels < 1 || channels > 2 {
			return nil, &FieldError{Field: "channels", Err: fmt.Errorf("%w: %d channels for mapping family 0", ErrInvalidField, channels)}
		}
	default:
		if !hasChannels || channels < 1 || channels > 255 {
			return nil, invalid("channels")
		}
		var ok bool
		if streams, ok = st.Int("stream-count"); !ok {
			return nil, missing("stream-count")
		}
		if coupled, ok = st.Int("coupled-count"); !ok {
			return nil, missing("coupled-count")
		}
		list, ok := st.List("channel-mapping")
		if !ok || len(list) != channels {
			return nil, invalid("channel-mapping")
		}
		for _, v := range list {
			n, ok := v.(int)
			if !ok || n < 0 || n > 255 {
				return nil, invalid("channel-mapping")
			}
			mapping = append(mapping, byte(n))
		}
	}

	hdr := make([]byte, 0, 19+2+len(mapping))
	hdr = append(hdr, opusMagic...)
	hdr = append(hdr, 1, byte(channels))
	hdr = binary.LittleEndian.AppendUint16(hdr, 0)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(rate))
	hdr = binary.LittleEndian.AppendUint16(hdr, 0)
	hdr = append(hdr, byte(family))
	if family != 0 {
		hdr = append(hdr, byte(streams), byte(coupled))
		hdr = append(hdr, mapping...)
	}
	return hdr, nil
}
