package detect

import (
	"bytes"
	"math/bits"

	"filetally/source"
)

const (
	textChunkSize = 1024
	// UTF-8 reads leave room in the buffer for completing a sequence that
	// straddles the chunk end.
	utf8ChunkSize = 1000

	// Approximate size of the assigned Unicode repertoire. Larger UTF-32
	// values are taken as binary data.
	maxPlausibleCodepoint = 150000
)

var (
	utf8BOM    = [3]byte{0xef, 0xbb, 0xbf}
	utf32BEBOM = [4]byte{0x00, 0x00, 0xfe, 0xff}
	utf32LEBOM = [4]byte{0xff, 0xfe, 0x00, 0x00}
)

// TextClassifier's zero value uses the strict control-character allowlist.
type TextClassifier struct {
	// AllowEscape admits ESC (0x1b) as plain ASCII, which lets
	// ANSI-colored logs classify as text.
	AllowEscape bool
}

// Classify returns the first encoding that accepts the whole stream.
func (c TextClassifier) Classify(src *source.Source) (Text, bool) {
	switch {
	case c.looks(src.Sub(0), c.isASCII):
		return Text{Encoding: EncodingASCII}, true
	case hasPrefix(src, utf8BOM[:]) && looksUTF8(src.Sub(uint64(len(utf8BOM)))):
		return Text{Encoding: EncodingUTF8, WithBOM: true}, true
	case looksUTF8(src.Sub(0)):
		return Text{Encoding: EncodingUTF8}, true
	case hasPrefix(src, utf32BEBOM[:]) && looksUTF32(src.Sub(4), true):
		return Text{Encoding: EncodingUTF32BE, WithBOM: true}, true
	case hasPrefix(src, utf32LEBOM[:]) && looksUTF32(src.Sub(4), false):
		return Text{Encoding: EncodingUTF32LE, WithBOM: true}, true
	case looksUTF32(src.Sub(0), true):
		return Text{Encoding: EncodingUTF32BE}, true
	case looksUTF32(src.Sub(0), false):
		return Text{Encoding: EncodingUTF32LE}, true
	case c.looks(src.Sub(0), c.isISO88591):
		return Text{Encoding: EncodingISO88591}, true
	case c.looks(src.Sub(0), c.isExtendedASCII):
		return Text{Encoding: EncodingExtendedASCII}, true
	}
	return Text{}, false
}

// ProbeText classifies src with the strict allowlist.
func ProbeText(src *source.Source) (Text, bool) {
	return TextClassifier{}.Classify(src)
}

// isASCII accepts printable characters, BEL through CR, and NEL.
func (c TextClassifier) isASCII(b byte) bool {
	switch {
	case b >= 32 && b < 127, b >= 7 && b < 14, b == 0x85:
		return true
	case b == 0x1b:
		return c.AllowEscape
	}
	return false
}

func (c TextClassifier) isISO88591(b byte) bool {
	return c.isASCII(b) || b >= 160
}

func (c TextClassifier) isExtendedASCII(b byte) bool {
	return c.isASCII(b) || b >= 128
}

func (TextClassifier) looks(src *source.Source, accept func(byte) bool) bool {
	buf := make([]byte, textChunkSize)
	for {
		n := src.ReadNext(buf)
		if n == 0 {
			return true
		}
		for _, b := range buf[:n] {
			if !accept(b) {
				return false
			}
		}
	}
}

func hasPrefix(src *source.Source, prefix []byte) bool {
	buf := make([]byte, len(prefix))
	return src.ReadExact(0, buf) && bytes.Equal(buf, prefix)
}

func looksUTF8(src *source.Source) bool {
	buf := make([]byte, textChunkSize)
	for {
		n := src.ReadNext(buf[:utf8ChunkSize])
		if n == 0 {
			return true
		}
		for i := 0; i < n; i++ {
			lead := bits.LeadingZeros8(^buf[i])
			if lead == 0 {
				continue
			}
			if lead == 1 || lead > 4 {
				return false
			}
			trail := lead - 1
			if i+trail >= n {
				need := i + trail - n + 1
				if src.ReadNext(buf[n:n+need]) != need {
					return false
				}
				n += need
			}
			for ; trail > 0; trail-- {
				i++
				if buf[i]&0xc0 != 0x80 {
					return false
				}
			}
		}
	}
}

func looksUTF32(src *source.Source, bigEndian bool) bool {
	buf := make([]byte, textChunkSize)
	for {
		n := src.ReadNext(buf)
		if n == 0 {
			return true
		}
		if n%4 != 0 {
			return false
		}
		for i := 0; i < n; i += 4 {
			var code uint32
			if bigEndian {
				code = uint32(buf[i])<<24 | uint32(buf[i+1])<<16 | uint32(buf[i+2])<<8 | uint32(buf[i+3])
			} else {
				code = uint32(buf[i]) | uint32(buf[i+1])<<8 | uint32(buf[i+2])<<16 | uint32(buf[i+3])<<24
			}
			if code >= maxPlausibleCodepoint {
				return false
			}
		}
	}
}
