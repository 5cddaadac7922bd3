// Package pathbuf provides the growable path buffer shared by every level of
// a directory walk.
//
// The buffer always holds the path of the entry being visited. A caller
// appends a name with Push, which returns the length to restore, and must
// call Truncate with that mark before returning so that the next sibling
// starts from the parent's exact path.
package pathbuf

import (
	"errors"
	"fmt"
)

const (
	// MinSize is the smallest allocation the buffer makes.
	MinSize = 64

	// DefaultMaxSize bounds growth. A path longer than this cannot be
	// built safely and the walk must stop.
	DefaultMaxSize = 1 << 24

	// Separator joins path elements.
	Separator = '/'
)

// ErrAllocation is returned when the buffer cannot grow to the size needed.
var ErrAllocation = errors.New("path buffer cannot grow")

// Buffer is an append/truncate path buffer. The zero value is an empty
// buffer with DefaultMaxSize.
type Buffer struct {
	buf     []byte
	maxSize int
}

// New returns a buffer holding root.
func New(root string) (*Buffer, error) {
	b := &Buffer{}
	if err := b.Grow(len(root)); err != nil {
		return nil, err
	}
	b.buf = append(b.buf, root...)
	return b, nil
}

// SetMaxSize changes the growth limit. Values <= 0 restore the default.
func (b *Buffer) SetMaxSize(n int) {
	b.maxSize = n
}

func (b *Buffer) limit() int {
	if b.maxSize <= 0 {
		return DefaultMaxSize
	}
	return b.maxSize
}

// Grow makes sure the buffer can hold n bytes plus one spare byte without
// reallocating. Capacity starts at MinSize and doubles until it suffices.
func (b *Buffer) Grow(n int) error {
	if n+1 <= cap(b.buf) {
		return nil
	}
	if n+1 > b.limit() {
		return fmt.Errorf("%w: need %d bytes, limit %d", ErrAllocation, n+1, b.limit())
	}
	size := cap(b.buf)
	if size < MinSize {
		size = MinSize
	}
	for n+1 > size {
		size *= 2
	}
	if size > b.limit() {
		size = b.limit()
	}
	grown := make([]byte, len(b.buf), size)
	copy(grown, b.buf)
	b.buf = grown
	return nil
}

// Len returns the current path length.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the current allocation.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// String returns a copy of the current path.
func (b *Buffer) String() string {
	return string(b.buf)
}

// Bytes returns the current path. The slice is only valid until the next
// mutation.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Push appends a separator and name and returns the length to pass to
// Truncate once the entry has been handled. No separator is added when the
// buffer already ends in one, so a root of "/" yields "/name".
func (b *Buffer) Push(name string) (mark int, err error) {
	mark = len(b.buf)
	sep := 1
	if mark > 0 && b.buf[mark-1] == Separator {
		sep = 0
	}
	if err := b.Grow(mark + sep + len(name)); err != nil {
		return mark, err
	}
	if sep == 1 {
		b.buf = append(b.buf, Separator)
	}
	b.buf = append(b.buf, name...)
	return mark, nil
}

// Truncate cuts the path back to mark, as returned by Push.
func (b *Buffer) Truncate(mark int) {
	if mark < 0 || mark > len(b.buf) {
		panic(fmt.Sprintf("pathbuf: truncate to %d outside [0,%d]", mark, len(b.buf)))
	}
	b.buf = b.buf[:mark]
}

// Base returns the last element of the path, starting after mark.
func (b *Buffer) Base(mark int) string {
	tail := b.buf[mark:]
	if len(tail) > 0 && tail[0] == Separator {
		tail = tail[1:]
	}
	return string(tail)
}

// ReplaceTail replaces everything after mark with a separator and name,
// exactly as Push would have produced it. It is used when the entry just
// pushed has been renamed on disk.
func (b *Buffer) ReplaceTail(mark int, name string) error {
	b.Truncate(mark)
	_, err := b.Push(name)
	return err
}

// Join returns the path that Push(name) would produce, without modifying
// the buffer.
func (b *Buffer) Join(mark int, name string) string {
	dir := b.buf[:mark]
	if len(dir) > 0 && dir[len(dir)-1] == Separator {
		return string(dir) + name
	}
	return string(dir) + string(Separator) + name
}
