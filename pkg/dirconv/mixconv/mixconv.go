// Package mixconv repairs text files that mix a legacy 8-bit charset and
// UTF-8 line by line.
//
// Each line is assumed to use one encoding or the other. A line is taken to
// be legacy-encoded when it holds an isolated high-bit byte, that is, a byte
// with bit 7 set whose neighbours do not have it set. UTF-8 never produces
// such a byte. A legacy line whose non-ASCII characters all come in runs of
// two or more is therefore passed through unchanged.
package mixconv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/transcode"
)

// bufSize is the size of the conversion output buffer. Longer lines are
// converted in several passes.
const bufSize = 80

// Error describes a fatal I/O or conversion failure. Name is the input or
// output it concerns.
type Error struct {
	Op   string
	Name string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s %s:%d: %v", e.Op, e.Name, e.Line, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Option configures a Converter.
type Option func(*Converter)

// WithDebug echoes every converted line to w, before ("<< ") and after
// (">> ") conversion.
func WithDebug(w io.Writer) Option {
	return func(c *Converter) { c.debug = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Converter) { c.log = l }
}

// Converter rewrites legacy-encoded lines as UTF-8.
type Converter struct {
	conv  *transcode.Converter
	debug io.Writer
	log   *zerolog.Logger
	buf   [bufSize]byte
}

// New returns a Converter for lines in charset.
func New(charset string, opts ...Option) (*Converter, error) {
	conv, err := transcode.NewDecoder(charset)
	if err != nil {
		return nil, err
	}
	c := &Converter{conv: conv, log: dirconv.Logger()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NeedsConversion reports whether line holds an isolated high-bit byte.
// The line is treated as followed by a NUL, so a high-bit byte at the very
// end only needs a clear left neighbour.
func NeedsConversion(line []byte) bool {
	// low three bits: bit 7 of the last three bytes, newest lowest
	var window byte
	for i := 0; i <= len(line); i++ {
		var b byte
		if i < len(line) {
			b = line[i]
		}
		window = (window<<1)&0x07 | b>>7
		if window == 0x02 {
			return true
		}
	}
	return false
}

// Convert copies r to w, converting the lines that need it. inName and
// outName are used in errors. Any failure is returned immediately.
func (c *Converter) Convert(w io.Writer, r io.Reader, inName, outName string) error {
	br := bufio.NewReader(r)
	converted := 0
	for lineno := 1; ; lineno++ {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			if !NeedsConversion(line) {
				if _, err := w.Write(line); err != nil {
					return &Error{Op: "write", Name: outName, Err: err}
				}
			} else {
				if err := c.convertLine(w, line, inName, outName, lineno); err != nil {
					return err
				}
				converted++
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return &Error{Op: "read", Name: inName, Line: lineno, Err: readErr}
		}
	}
	c.log.Debug().Str("input", inName).Int("converted", converted).Msg("input done")
	return nil
}

func (c *Converter) convertLine(w io.Writer, line []byte, inName, outName string, lineno int) error {
	c.log.Trace().Str("input", inName).Int("line", lineno).Msg("converting line")
	terminated := bytes.HasSuffix(line, []byte{'\n'})
	// the debug echo is best effort; its write errors are ignored
	if c.debug != nil {
		fmt.Fprintf(c.debug, "<< %s", line)
		if !terminated {
			fmt.Fprintln(c.debug)
		}
		fmt.Fprint(c.debug, ">> ")
	}

	c.conv.Reset()
	src := line
	for {
		nDst, nSrc, convErr := c.conv.ConvertInto(c.buf[:], src, true)
		if _, err := w.Write(c.buf[:nDst]); err != nil {
			return &Error{Op: "write", Name: outName, Err: err}
		}
		if c.debug != nil {
			_, _ = c.debug.Write(c.buf[:nDst])
		}
		src = src[nSrc:]
		if convErr == nil {
			break
		}
		if !errors.Is(convErr, transcode.ErrShortBuffer) {
			return &Error{Op: "convert", Name: inName, Line: lineno, Err: convErr}
		}
	}

	if c.debug != nil && !terminated {
		fmt.Fprintln(c.debug)
	}
	return nil
}
