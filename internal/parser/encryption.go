package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/zsiec/rialtosink/media"
)

// subsampleRecordSize is one packed (u16 clear, u32 encrypted) record.
const subsampleRecordSize = 6

type encryptionInfo struct {
	media.Encryption
	subsampleMismatch bool
}

// encryption reads the protection metadata of a sample. It returns nil for
// clear samples.
func (p *Parser) encryption(prot *media.Structure, payloadSize int) (*encryptionInfo, error) {
	if prot == nil {
		return nil, nil
	}
	if encrypted, _ := prot.Bool("encrypted"); !encrypted {
		return nil, nil
	}

	info := &encryptionInfo{}
	enc := &info.Encryption
	enc.CipherMode = CipherMode(prot)

	if id, ok := prot.Int("mks_id"); ok {
		enc.KeySessionID = int32(id)
	}
	if kid, ok := prot.Buffer("kid"); ok {
		enc.KeyID = append([]byte(nil), kid...)
	}

	ivSize, _ := prot.Int("iv_size")
	constSize, _ := prot.Int("constant_iv_size")
	switch {
	case ivSize > 0:
		iv, ok := prot.Buffer("iv")
		if !ok {
			return nil, missing("iv")
		}
		enc.IV = append([]byte(nil), iv...)
	case constSize > 0:
		iv, ok := prot.Buffer("constant_iv")
		if !ok {
			return nil, missing("constant_iv")
		}
		if len(iv) < constSize {
			return nil, &FieldError{Field: "constant_iv", Err: fmt.Errorf("%w: %d bytes, want %d", ErrInvalidField, len(iv), constSize)}
		}
		enc.IV = append([]byte(nil), iv[:constSize]...)
	}

	crypt, hasCrypt := prot.Uint64("crypt_byte_block")
	skip, hasSkip := prot.Uint64("skip_byte_block")
	if hasCrypt || hasSkip {
		enc.Pattern = &media.EncryptionPattern{CryptBlocks: uint32(crypt), SkipBlocks: uint32(skip)}
	}

	if v, ok := prot.Bool("init_with_last_15"); ok {
		enc.InitWithLast15 = v
	} else if n, ok := prot.Int("init_with_last_15"); ok {
		enc.InitWithLast15 = n != 0
	}

	count, _ := prot.Int("subsample_count")
	if count > 0 {
		buf, _ := prot.Buffer("subsamples")
		subs, err := ParseSubSamples(buf, count)
		if err != nil {
			p.log.Warn("ignoring subsample partition", "error", err, "payload_size", payloadSize)
			info.subsampleMismatch = true
		} else {
			enc.SubSamples = subs
		}
	}
	return info, nil
}

// CipherMode maps the cipher-mode protection field.
func CipherMode(prot *media.Structure) media.CipherMode {
	if prot == nil {
		return media.CipherModeClear
	}
	name, _ := prot.String("cipher-mode")
	switch name {
	case "cenc":
		return media.CipherModeCENC
	case "cbcs":
		return media.CipherModeCBCS
	case "cbc1":
		return media.CipherModeCBC1
	case "cens":
		return media.CipherModeCENS
	}
	return media.CipherModeUnknown
}

// ParseSubSamples decodes count packed big-endian (u16 clear, u32
// encrypted) records.
func ParseSubSamples(buf []byte, count int) ([]media.SubSample, error) {
	if len(buf)%subsampleRecordSize != 0 || len(buf)/subsampleRecordSize != count {
		return nil, &FieldError{
			Field: "subsamples",
			Err:   fmt.Errorf("%w: %d bytes for %d records", ErrInvalidField, len(buf), count),
		}
	}
	subs := make([]media.SubSample, 0, count)
	for off := 0; off < len(buf); off += subsampleRecordSize {
		subs = append(subs, media.SubSample{
			ClearBytes:     binary.BigEndian.Uint16(buf[off:]),
			EncryptedBytes: binary.BigEndian.Uint32(buf[off+2:]),
		})
	}
	return subs, nil
}
