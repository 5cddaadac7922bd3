// Package transcode converts byte strings between a legacy charset and
// UTF-8 using the golang.org/x/text encoding tables.
package transcode

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrShortBuffer means the output buffer filled up before the input was
	// consumed. The caller may flush what was written and resume, or retry
	// with a larger buffer.
	ErrShortBuffer = errors.New("insufficient output space")

	// ErrIncomplete means the input ends in the middle of a character and
	// more input was promised.
	ErrIncomplete = errors.New("incomplete input sequence")

	// ErrUnknownCharset is returned for names no encoding table matches.
	ErrUnknownCharset = errors.New("unknown charset")

	// ErrIllegalSequence means the input holds a byte sequence the source
	// charset does not define.
	ErrIllegalSequence = errors.New("illegal input sequence")
)

// replacementChar is U+FFFD in UTF-8, which the decoders emit for bytes the
// charset leaves undefined.
var replacementChar = []byte("\xef\xbf\xbd")

// Error describes a failed conversion.
type Error struct {
	Op   string
	From string
	To   string
	Err  error
}

func (e *Error) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.From, e.Err)
	}
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.From, e.To, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Converter converts from one charset to another. It keeps conversion
// state between ConvertInto calls; Reset must be called before it is used on
// unrelated input. A Converter is not safe for concurrent use.
type Converter struct {
	from string
	to   string
	t    transform.Transformer

	// strict conversions to UTF-8 fail instead of emitting U+FFFD
	strict  bool
	srcUTF8 bool
}

// New returns a Converter from charset from to charset to.
func New(from, to string) (*Converter, error) {
	src, err := Lookup(from)
	if err != nil {
		return nil, err
	}
	dst, err := Lookup(to)
	if err != nil {
		return nil, err
	}

	var t transform.Transformer
	switch {
	case isUTF8(src) && isUTF8(dst):
		t = unicode.UTF8.NewDecoder()
	case isUTF8(src):
		t = dst.NewEncoder()
	case isUTF8(dst):
		t = src.NewDecoder()
	default:
		t = transform.Chain(src.NewDecoder(), dst.NewEncoder())
	}
	return &Converter{
		from:    CanonicalName(from, src),
		to:      CanonicalName(to, dst),
		t:       t,
		strict:  isUTF8(dst),
		srcUTF8: isUTF8(src),
	}, nil
}

// NewDecoder returns a Converter from charset to UTF-8.
func NewDecoder(charset string) (*Converter, error) {
	return New(charset, "UTF-8")
}

// NewEncoder returns a Converter from UTF-8 to charset.
func NewEncoder(charset string) (*Converter, error) {
	return New("UTF-8", charset)
}

// From returns the canonical name of the source charset.
func (c *Converter) From() string { return c.from }

// To returns the canonical name of the target charset.
func (c *Converter) To() string { return c.to }

// Reset discards any conversion state.
func (c *Converter) Reset() {
	c.t.Reset()
}

// ConvertInto converts as much of src into dst as fits. It returns the
// number of bytes written and consumed. When dst fills up it returns
// ErrShortBuffer; the caller flushes dst[:nDst] and calls again with
// src[nSrc:]. atEOF reports whether src is the end of the input.
//
// Input the source charset does not define fails with ErrIllegalSequence;
// nothing from that call is consumed or written.
func (c *Converter) ConvertInto(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	nDst, nSrc, err = c.t.Transform(dst, src, atEOF)
	if c.strict && c.replaced(dst[:nDst], src[:nSrc]) {
		return 0, 0, &Error{Op: "convert", From: c.from, To: c.to, Err: ErrIllegalSequence}
	}
	switch {
	case err == nil:
		return nDst, nSrc, nil
	case errors.Is(err, transform.ErrShortDst):
		return nDst, nSrc, ErrShortBuffer
	case errors.Is(err, transform.ErrShortSrc):
		return nDst, nSrc, ErrIncomplete
	default:
		return nDst, nSrc, &Error{Op: "convert", From: c.from, To: c.to, Err: err}
	}
}

// Convert resets the converter and converts all of src. The output buffer
// starts at twice the input length and doubles whenever the conversion runs
// out of space.
func (c *Converter) Convert(src []byte) ([]byte, error) {
	size := 2 * len(src)
	if size < 16 {
		size = 16
	}
	for {
		c.Reset()
		dst := make([]byte, size)
		nDst, _, err := c.ConvertInto(dst, src, true)
		if err == nil {
			return dst[:nDst], nil
		}
		if !errors.Is(err, ErrShortBuffer) {
			return nil, err
		}
		size *= 2
	}
}

// ConvertString is Convert for strings.
func (c *Converter) ConvertString(s string) (string, error) {
	out, err := c.Convert([]byte(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Transcode converts src from charset from to charset to.
func Transcode(from, to string, src []byte) ([]byte, error) {
	c, err := New(from, to)
	if err != nil {
		return nil, err
	}
	return c.Convert(src)
}

// replaced reports whether the decoder substituted U+FFFD for undefined
// input. UTF-8 input may hold U+FFFD itself, so there the output must match
// the input exactly.
func (c *Converter) replaced(out, in []byte) bool {
	if c.srcUTF8 {
		return !bytes.Equal(out, in)
	}
	return bytes.Contains(out, replacementChar)
}

func isUTF8(e encoding.Encoding) bool {
	return e == unicode.UTF8
}
