// Package lzfu decodes compressed RTF bodies (PR_RTF_COMPRESSED).
package lzfu

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

const (
	SIGNATURE_COMPRESSED   = 0x75465A4C // "LZFu"
	SIGNATURE_UNCOMPRESSED = 0x414C454D // "MELA"

	HEADER_SIZE = 16

	ringSize = 4096
)

// The ring buffer starts with this RTF preamble; back-references may point
// into it before any output has been produced.
var seed = []byte("{\\rtf1\\ansi\\mac\\deff0\\deftab720{\\fonttbl;}" +
	"{\\f0\\fnil \\froman \\fswiss \\fmodern \\fscript " +
	"\\fdecor MS Sans SerifSymbolArialTimes New Roman" +
	"Courier{\\colortbl\\red0\\green0\\blue0\r\n\\par " +
	"\\pard\\plain\\f0\\fs20\\b\\i\\u\\tab\\tx")

// Seed returns a copy of the preset dictionary.
func Seed() []byte {
	return append([]byte{}, seed...)
}

// Header is the 16-byte prefix of a compressed RTF stream. The CRC is not
// verified.
type Header struct {
	CompressedSize uint32
	RawSize        uint32
	Signature      uint32
	CRC            uint32
}

func ParseHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HEADER_SIZE {
		return h, errors.Wrapf(common.ErrBadFormatMarker, "compressed rtf header: %d bytes", len(buf))
	}
	cursor, compSize := util.ReadUB4(buf, 0)
	cursor, rawSize := util.ReadUB4(buf, cursor)
	cursor, sig := util.ReadUB4(buf, cursor)
	_, crc := util.ReadUB4(buf, cursor)
	h = Header{CompressedSize: compSize, RawSize: rawSize, Signature: sig, CRC: crc}
	return h, nil
}

// Decode returns the RTF text held in buf, trimmed of trailing padding.
func Decode(buf []byte) (string, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return "", err
	}
	switch h.Signature {
	case SIGNATURE_UNCOMPRESSED:
		return string(trim(buf[HEADER_SIZE:])), nil
	case SIGNATURE_COMPRESSED:
		out, err := decompress(buf[HEADER_SIZE:], int(h.RawSize))
		if err != nil {
			return "", err
		}
		return string(trim(out)), nil
	}
	return "", errors.Wrapf(common.ErrBadFormatMarker, "compressed rtf signature 0x%08X", h.Signature)
}

// decompress runs the LZ77 loop. Each flag byte drives eight tokens, lowest
// bit first: 0 is a literal, 1 a two-byte reference offset(12) length(4)+2.
// A reference whose offset equals the write cursor ends the stream.
func decompress(in []byte, rawSize int) ([]byte, error) {
	var ring [ringSize]byte
	copy(ring[:], seed)
	write := len(seed)

	out := make([]byte, 0, minInt(rawSize, len(in)*8+16))
	pos := 0
	for len(out) < rawSize {
		if pos >= len(in) {
			return nil, errors.Wrapf(common.ErrDecompressionMismatch,
				"input exhausted at %d of %d bytes", len(out), rawSize)
		}
		flags := in[pos]
		pos++
		for bit := uint(0); bit < 8 && len(out) < rawSize; bit++ {
			if flags&(1<<bit) == 0 {
				if pos >= len(in) {
					return nil, errors.Wrapf(common.ErrDecompressionMismatch,
						"input exhausted at %d of %d bytes", len(out), rawSize)
				}
				b := in[pos]
				pos++
				out = append(out, b)
				ring[write] = b
				write = (write + 1) % ringSize
				continue
			}
			if pos+1 >= len(in) {
				return nil, errors.Wrapf(common.ErrDecompressionMismatch,
					"truncated reference at %d of %d bytes", len(out), rawSize)
			}
			offset := int(in[pos])<<4 | int(in[pos+1])>>4
			length := int(in[pos+1]&0x0F) + 2
			pos += 2
			if offset == write {
				return nil, errors.Wrapf(common.ErrDecompressionMismatch,
					"end marker at %d of %d bytes", len(out), rawSize)
			}
			// 源区间可能与刚写入的区间重叠，必须逐字节复制
			for i := 0; i < length && len(out) < rawSize; i++ {
				b := ring[offset]
				out = append(out, b)
				ring[write] = b
				offset = (offset + 1) % ringSize
				write = (write + 1) % ringSize
			}
		}
	}
	return out, nil
}

func trim(b []byte) []byte {
	return bytes.TrimRightFunc(b, func(r rune) bool { return r <= ' ' })
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
