package classify

import "strings"

// Selection is the set of classes a traversal reports and renames.
type Selection uint8

// DefaultSelection reports legacy 8-bit names only.
const DefaultSelection = Selection(1 << Legacy8Bit)

// Select builds a Selection from the given classes.
func Select(classes ...Class) Selection {
	var s Selection
	for _, c := range classes {
		s |= 1 << c
	}
	return s
}

// ParseSelection parses class names (see ParseClass). An empty list yields
// DefaultSelection.
func ParseSelection(names []string) (Selection, error) {
	var s Selection
	for _, name := range names {
		c, err := ParseClass(name)
		if err != nil {
			return 0, err
		}
		s |= 1 << c
	}
	if s == 0 {
		return DefaultSelection, nil
	}
	return s, nil
}

// Has reports whether c is selected.
func (s Selection) Has(c Class) bool {
	return s&(1<<c) != 0
}

// Classes returns the selected classes in declaration order.
func (s Selection) Classes() []Class {
	var out []Class
	for _, c := range []Class{Legacy8Bit, ASCII, UTF8, WTF8} {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s Selection) String() string {
	names := make([]string, 0, 4)
	for _, c := range s.Classes() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}
