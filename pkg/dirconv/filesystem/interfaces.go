// Package filesystem is the boundary between the walker and the operating
// system: directory streams, metadata queries and renames.
package filesystem

import (
	"io/fs"
)

// ReadKind tells the three outcomes of reading a directory stream apart.
type ReadKind int

const (
	// ReadEntry carries the next entry name.
	ReadEntry ReadKind = iota
	// ReadEnd means the stream is exhausted.
	ReadEnd
	// ReadError means reading failed; Err holds the cause.
	ReadError
)

func (k ReadKind) String() string {
	switch k {
	case ReadEntry:
		return "entry"
	case ReadEnd:
		return "end"
	case ReadError:
		return "error"
	}
	return "unknown"
}

// Read is the result of DirStream.Next.
type Read struct {
	Kind ReadKind
	Name string
	Err  error
}

// Entry returns a Read carrying name.
func Entry(name string) Read { return Read{Kind: ReadEntry, Name: name} }

// End returns the end-of-stream Read.
func End() Read { return Read{Kind: ReadEnd} }

// Failed returns a Read carrying err.
func Failed(err error) Read { return Read{Kind: ReadError, Err: err} }

// DirStream yields the names in one directory. Names are raw bytes held in
// a string and are not assumed to be valid in any encoding. After ReadEnd or
// ReadError the stream yields ReadEnd.
type DirStream interface {
	Next() Read
	Close() error
}

// ReadFS opens directories and queries metadata.
type ReadFS interface {
	OpenDir(path string) (DirStream, error)
	// Lstat does not follow a final symbolic link.
	Lstat(path string) (fs.FileInfo, error)
}

// WriteFS renames entries.
type WriteFS interface {
	// Rename replaces newpath if it exists.
	Rename(oldpath, newpath string) error
	// RenameNoReplace fails with an error matching fs.ErrExist if newpath
	// exists.
	RenameNoReplace(oldpath, newpath string) error
}

// FileSystem combines read and write operations.
type FileSystem interface {
	ReadFS
	WriteFS
}

// Exists reports whether an entry exists at path, without following a
// final symbolic link.
func Exists(fsys ReadFS, path string) bool {
	_, err := fsys.Lstat(path)
	return err == nil
}
