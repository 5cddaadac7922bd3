package dirconv

import (
	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
	"github.com/arthur-debert/dirconv/pkg/dirconv/filter"
)

// DefaultCharset is the legacy 8-bit charset assumed for non-UTF-8 names.
const DefaultCharset = "iso8859-1"

// Options controls what a Walker reports and changes.
type Options struct {
	// Charset is the legacy charset of non-UTF-8 names.
	Charset string
	// Selection picks the classes that are printed and renamed.
	Selection classify.Selection
	// Print writes the path of every selected entry.
	Print bool
	// Null terminates printed paths with NUL instead of newline.
	Null bool
	// Rename converts selected legacy and WTF-8 names to UTF-8.
	Rename bool
	// DryRun reports renames without performing them.
	DryRun bool
	// Force renames over existing entries.
	Force bool
	// Exclude skips matching entry names and everything below them.
	Exclude *filter.Filter
	// MaxPathSize bounds the path buffer; zero means the pathbuf default.
	MaxPathSize int
}

// DefaultOptions returns options that print legacy 8-bit names.
func DefaultOptions() Options {
	return Options{
		Charset:   DefaultCharset,
		Selection: classify.DefaultSelection,
		Print:     true,
	}
}

// Normalize fills in defaults and drops combinations that have no effect.
// It returns a warning for every setting it ignored.
func (o *Options) Normalize() []string {
	var warnings []string
	if o.Charset == "" {
		o.Charset = DefaultCharset
	}
	if o.Selection == 0 {
		o.Selection = classify.DefaultSelection
	}
	if !o.Print && !o.Rename {
		o.Print = true
	}
	// dry-run output is meant for people
	if o.DryRun {
		o.Null = false
	}
	if o.Force && !o.Rename {
		warnings = append(warnings, "force is meaningless without rename")
	}
	if o.DryRun && !o.Rename {
		warnings = append(warnings, "dry-run is meaningless without rename")
	}
	return warnings
}
