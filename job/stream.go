package job

import (
	"strings"
	"unicode/utf8"
)

// lenientDecoder converts raw output chunks into UTF-8 text, substituting
// U+FFFD for undecodable bytes. A multi-byte rune split across a chunk
// boundary is held back until the next chunk completes it, so valid text is
// never mangled by where the pipe happened to cut it.
type lenientDecoder struct {
	carry []byte
}

// Decode returns the decodable text of chunk, prefixed by any bytes held
// over from the previous call.
func (d *lenientDecoder) Decode(chunk []byte) string {
	buf := chunk
	if len(d.carry) > 0 {
		buf = append(d.carry, chunk...)
		d.carry = nil
	}

	if keep := incompleteTail(buf); keep > 0 {
		d.carry = append([]byte(nil), buf[len(buf)-keep:]...)
		buf = buf[:len(buf)-keep]
	}

	return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
}

// Flush returns replacement text for any bytes still held back. Called once
// after the stream closes; a dangling rune prefix at EOF is undecodable.
func (d *lenientDecoder) Flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	text := strings.ToValidUTF8(string(d.carry), string(utf8.RuneError))
	d.carry = nil
	return text
}

// incompleteTail returns how many trailing bytes of buf form the start of a
// rune whose encoding extends past the buffer, or 0 when the buffer ends on
// a rune boundary (or ends in garbage that no further bytes can repair).
func incompleteTail(buf []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		b := buf[len(buf)-i]
		if b < utf8.RuneSelf {
			return 0 // ASCII tail, nothing pending
		}
		if b >= 0xC0 { // leading byte of a multi-byte rune
			if encodedLen(b) > i {
				return i
			}
			return 0
		}
		// continuation byte, keep scanning backwards
	}
	return 0
}

// encodedLen returns the encoded length implied by a UTF-8 leading byte.
func encodedLen(b byte) int {
	switch {
	case b >= 0xF0:
		return 4
	case b >= 0xE0:
		return 3
	default:
		return 2
	}
}
