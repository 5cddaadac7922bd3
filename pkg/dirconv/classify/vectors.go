package classify

// Vector is a reference input with its expected classification.
type Vector struct {
	Name  string
	Input string
	Want  Class
}

// Vectors are the reference cases for Classify. All of them are properly
// formed UTF-8 bit patterns; some are overlong, out of range, or both.
var Vectors = []Vector{
	// lowest codepoint for each length; the first is ASCII, the last two
	// are out of range
	{"lowest 1-byte", "\x01", ASCII},
	{"lowest 2-byte", "\xc2\x80", UTF8},
	{"lowest 3-byte", "\xe0\xa0\x80", UTF8},
	{"lowest 4-byte", "\xf0\x90\x80\x80", UTF8},
	{"lowest 5-byte", "\xf8\x88\x80\x80\x80", Legacy8Bit},
	{"lowest 6-byte", "\xfc\x84\x80\x80\x80\x80", Legacy8Bit},

	// highest codepoint for each length; the first is ASCII, the last
	// three are out of range
	{"highest 1-byte", "\x7f", ASCII},
	{"highest 2-byte", "\xdf\xbf", UTF8},
	{"highest 3-byte", "\xef\xbf\xbf", UTF8},
	{"highest 4-byte", "\xf7\xbf\xbf\xbf", Legacy8Bit},
	{"highest 5-byte", "\xfb\xbf\xbf\xbf\xbf", Legacy8Bit},
	{"highest 6-byte", "\xfd\xbf\xbf\xbf\xbf\xbf", Legacy8Bit},

	// overlong encodings of U+0000
	{"overlong 2-byte NUL", "\xc0\x80", Legacy8Bit},
	{"overlong 3-byte NUL", "\xe0\x80\x80", Legacy8Bit},
	{"overlong 4-byte NUL", "\xf0\x80\x80\x80", Legacy8Bit},
	{"overlong 5-byte NUL", "\xf8\x80\x80\x80\x80", Legacy8Bit},
	{"overlong 6-byte NUL", "\xfc\x80\x80\x80\x80\x80", Legacy8Bit},

	// highest in-range codepoint, lowest out-of-range codepoint
	{"U+10FFFF", "\xf4\x8f\xbf\xbf", UTF8},
	{"U+110000", "\xf4\x90\x80\x80", Legacy8Bit},
}
