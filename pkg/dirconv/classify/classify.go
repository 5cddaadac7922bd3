// Package classify decides whether a raw byte string is plain ASCII, valid
// UTF-8, or some unrecognized 8-bit legacy encoding.
//
// The classifier is a single left-to-right scan with constant extra space. It
// rejects overlong encodings and codepoints above U+10FFFF, which the
// standard library's utf8.Valid would also reject, but unlike utf8.Valid it
// accepts surrogate codepoints: the only question asked is whether the name
// was produced by a UTF-8 encoder at all.
package classify

import (
	"fmt"
	"math/bits"
	"strings"
)

// Class is the encoding classification of a name.
type Class int

const (
	// Legacy8Bit names contain bytes >= 0x80 but are not valid UTF-8.
	Legacy8Bit Class = iota
	// ASCII names contain no byte >= 0x80.
	ASCII
	// UTF8 names are valid UTF-8 with at least one multibyte sequence.
	UTF8
	// WTF8 names are UTF-8 that was encoded twice. Classify never returns
	// it; callers upgrade UTF8 after a reverse transcode round trip.
	WTF8
)

func (c Class) String() string {
	switch c {
	case Legacy8Bit:
		return "8bit"
	case ASCII:
		return "ascii"
	case UTF8:
		return "utf8"
	case WTF8:
		return "wtf8"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// NeedsRename reports whether names of this class are rename candidates.
func (c Class) NeedsRename() bool {
	return c == Legacy8Bit || c == WTF8
}

// ParseClass accepts the names used on the command line and in config files.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "8bit", "8", "legacy":
		return Legacy8Bit, nil
	case "ascii", "7bit", "7":
		return ASCII, nil
	case "utf8", "utf-8", "u":
		return UTF8, nil
	case "wtf8", "wtf-8", "w":
		return WTF8, nil
	}
	return 0, fmt.Errorf("unknown name class %q", s)
}

// maxCodepoint is the highest valid Unicode codepoint.
const maxCodepoint = 0x10FFFF

// continuations maps the number of leading one bits in a lead byte to the
// number of continuation bytes that must follow it. Zero marks a byte that
// cannot start a sequence: 10xxxxxx is a continuation byte, and 0xFE/0xFF
// have no UTF-8 meaning.
var continuations = [9]int{
	2: 1, // 110xxxxx
	3: 2, // 1110xxxx
	4: 3, // 11110xxx
	5: 4, // 111110xx
	6: 5, // 1111110x
}

// minBits returns the smallest bit length a codepoint may have when encoded
// with n continuation bytes. Anything shorter fits in fewer bytes and is an
// overlong encoding.
func minBits(n int) int {
	if n == 1 {
		return 8
	}
	return n*5 + 2
}

// Classify returns the classification of name. It never returns WTF8.
func Classify(name []byte) Class {
	return scan(name)
}

// ClassifyString is Classify for names already held as strings.
func ClassifyString(name string) Class {
	return scan(name)
}

func scan[T []byte | string](s T) Class {
	var (
		n8        int    // bytes with the high bit set
		remaining int    // continuation bytes still expected
		seqlen    int    // continuation bytes in the current sequence
		codepoint uint32 // value being accumulated
	)
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b&0x80 == 0 {
			if remaining > 0 {
				return Legacy8Bit
			}
			continue
		}
		n8++
		if b&0xC0 == 0x80 {
			if remaining == 0 {
				return Legacy8Bit
			}
			codepoint = codepoint<<6 | uint32(b&0x3F)
			remaining--
			if remaining == 0 {
				if bits.Len32(codepoint) < minBits(seqlen) {
					return Legacy8Bit
				}
				if codepoint > maxCodepoint {
					return Legacy8Bit
				}
				seqlen, codepoint = 0, 0
			}
			continue
		}
		if remaining > 0 {
			return Legacy8Bit
		}
		ones := bits.LeadingZeros8(^b)
		n := continuations[ones]
		if n == 0 {
			return Legacy8Bit
		}
		codepoint = uint32(b & (0xFF >> (ones + 1)))
		seqlen, remaining = n, n
	}
	if remaining > 0 {
		return Legacy8Bit
	}
	if n8 == 0 {
		return ASCII
	}
	return UTF8
}
