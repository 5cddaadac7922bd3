package transcode

import (
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// iconv accepts spellings the IANA registry does not list.
var (
	isoNoDash = regexp.MustCompile(`^iso[-_]?8859[-_]?(\d+)$`)
	cpWindows = regexp.MustCompile(`^(?:cp|windows)[-_]?(125\d)$`)
)

// Lookup returns the encoding registered under name. Matching is
// case-insensitive and also understands iconv-style names such as
// "iso8859-1", "utf8" and "cp1252".
func Lookup(name string) (encoding.Encoding, error) {
	for _, candidate := range candidates(name) {
		e, err := ianaindex.IANA.Encoding(candidate)
		if err == nil && e != nil {
			return e, nil
		}
	}
	return nil, &Error{Op: "lookup", From: name, Err: ErrUnknownCharset}
}

// CanonicalName returns the preferred MIME or IANA name of e, or fallback
// if it has neither.
func CanonicalName(fallback string, e encoding.Encoding) string {
	for _, index := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if name, err := index.Name(e); err == nil && name != "" {
			return name
		}
	}
	return fallback
}

// IsUTF8 reports whether name refers to UTF-8.
func IsUTF8(name string) bool {
	e, err := Lookup(name)
	return err == nil && e == unicode.UTF8
}

func candidates(name string) []string {
	n := strings.ToLower(strings.TrimSpace(name))
	out := []string{n}
	if m := isoNoDash.FindStringSubmatch(n); m != nil {
		out = append(out, "iso-8859-"+m[1])
	}
	if m := cpWindows.FindStringSubmatch(n); m != nil {
		out = append(out, "windows-"+m[1])
	}
	switch n {
	case "utf8", "utf_8":
		out = append(out, "utf-8")
	case "latin-1", "latin_1":
		out = append(out, "latin1")
	}
	return out
}
