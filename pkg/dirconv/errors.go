package dirconv

import (
	"errors"
	"fmt"
)

// ErrorKind classifies walk failures.
type ErrorKind int

const (
	// DirectoryOpenFailure means a directory could not be opened.
	DirectoryOpenFailure ErrorKind = iota
	// MetadataFailure means an entry or root could not be stat'ed.
	MetadataFailure
	// TranscodeFailure means a name could not be converted to UTF-8.
	TranscodeFailure
	// RenameCollision means the UTF-8 name is already taken.
	RenameCollision
	// RenameFailure means the rename itself failed.
	RenameFailure
	// ReadStreamFailure means reading a directory failed part way.
	ReadStreamFailure
	// AllocationFailure means the path buffer could not grow. It is the only
	// fatal kind.
	AllocationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryOpenFailure:
		return "opendir"
	case MetadataFailure:
		return "lstat"
	case TranscodeFailure:
		return "transcode"
	case RenameCollision:
		return "collision"
	case RenameFailure:
		return "rename"
	case ReadStreamFailure:
		return "readdir"
	case AllocationFailure:
		return "alloc"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Fatal reports whether errors of this kind stop the walk.
func (k ErrorKind) Fatal() bool {
	return k == AllocationFailure
}

// Sentinels for errors.Is, one per kind.
var (
	ErrDirectoryOpen = errors.New("cannot open directory")
	ErrMetadata      = errors.New("cannot stat")
	ErrTranscode     = errors.New("cannot convert name")
	ErrCollision     = errors.New("converted name already exists")
	ErrRename        = errors.New("cannot rename")
	ErrReadStream    = errors.New("cannot read directory")
	ErrAllocation    = errors.New("cannot grow path buffer")
)

var kindSentinels = map[ErrorKind]error{
	DirectoryOpenFailure: ErrDirectoryOpen,
	MetadataFailure:      ErrMetadata,
	TranscodeFailure:     ErrTranscode,
	RenameCollision:      ErrCollision,
	RenameFailure:        ErrRename,
	ReadStreamFailure:    ErrReadStream,
	AllocationFailure:    ErrAllocation,
}

// WalkError is a failure tied to a path. Target is set for renames.
type WalkError struct {
	Kind   ErrorKind
	Path   string
	Target string
	Err    error
}

func (e *WalkError) Error() string {
	msg := kindSentinels[e.Kind].Error()
	switch {
	case e.Target != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s -> %s: %v", msg, e.Path, e.Target, e.Err)
	case e.Target != "":
		return fmt.Sprintf("%s: %s -> %s", msg, e.Path, e.Target)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", msg, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %s", msg, e.Path)
	}
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *WalkError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}
