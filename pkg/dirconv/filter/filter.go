// Package filter implements the exclusion filter applied to bare entry
// names during a walk.
package filter

import (
	"fmt"
	"regexp"
)

// Error reports a pattern that failed to compile.
type Error struct {
	Pattern string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid exclusion filter %q: %v", e.Pattern, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Filter matches entry names against one or more POSIX extended regular
// expressions. A nil *Filter matches nothing.
type Filter struct {
	patterns []string
	re       []*regexp.Regexp
}

// Compile compiles every pattern once. An empty list yields a nil filter.
func Compile(patterns ...string) (*Filter, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	f := &Filter{patterns: patterns}
	for _, p := range patterns {
		re, err := regexp.CompilePOSIX(p)
		if err != nil {
			return nil, &Error{Pattern: p, Err: err}
		}
		f.re = append(f.re, re)
	}
	return f, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(patterns ...string) *Filter {
	f, err := Compile(patterns...)
	if err != nil {
		panic(err)
	}
	return f
}

// Match reports whether name matches any pattern. The match is unanchored,
// like regexec(3).
func (f *Filter) Match(name string) bool {
	if f == nil {
		return false
	}
	for _, re := range f.re {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return f.patterns
}
