package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// readBatch is how many names are fetched per readdir call.
const readBatch = 128

// OSFileSystem implements FileSystem on the host filesystem. Paths are
// used as given; the walker passes absolute paths.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS-backed filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// OpenDir implements ReadFS
func (osfs *OSFileSystem) OpenDir(path string) (DirStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &osDirStream{f: f}, nil
}

// Lstat implements ReadFS
func (osfs *OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Rename implements WriteFS
func (osfs *OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// RenameNoReplace implements WriteFS
func (osfs *OSFileSystem) RenameNoReplace(oldpath, newpath string) error {
	return renameNoReplace(oldpath, newpath)
}

// Canonical returns the absolute path of path with every symbolic link
// resolved.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

type osDirStream struct {
	f       *os.File
	names   []string
	pending error
	done    bool
}

func (d *osDirStream) Next() Read {
	for len(d.names) == 0 {
		if d.pending != nil {
			err := d.pending
			d.pending, d.done = nil, true
			return Failed(err)
		}
		if d.done {
			return End()
		}
		names, err := d.f.Readdirnames(readBatch)
		d.names = names
		if errors.Is(err, io.EOF) {
			d.done = true
		} else if err != nil {
			d.pending = &fs.PathError{Op: "readdir", Path: d.f.Name(), Err: err}
		}
	}
	name := d.names[0]
	d.names = d.names[1:]
	return Entry(name)
}

func (d *osDirStream) Close() error {
	return d.f.Close()
}

// lstatRename is the portable fallback for RenameNoReplace. It leaves a
// window between the check and the rename.
func lstatRename(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
