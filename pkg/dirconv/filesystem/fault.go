package filesystem

import (
	"io/fs"
	"os"
	"sync"
)

// Op names an operation FaultFS can fail.
type Op string

const (
	OpOpen   Op = "open"
	OpLstat  Op = "lstat"
	OpRename Op = "rename"
	OpRead   Op = "read"
)

// FaultFS wraps a FileSystem and fails chosen operations on chosen paths.
// It also records every rename that reached the wrapped filesystem. It is
// meant for tests that exercise the error paths of a walk.
type FaultFS struct {
	FileSystem

	mu      sync.Mutex
	faults  map[Op]map[string]error
	renames [][2]string
	opened  int
	closed  int
}

// NewFaultFS wraps fsys.
func NewFaultFS(fsys FileSystem) *FaultFS {
	return &FaultFS{
		FileSystem: fsys,
		faults:     make(map[Op]map[string]error),
	}
}

// Fail makes op on path return err. For OpRead the directory at path yields
// its entries and then err instead of the end of the stream.
func (f *FaultFS) Fail(op Op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults[op] == nil {
		f.faults[op] = make(map[string]error)
	}
	f.faults[op][path] = err
}

func (f *FaultFS) fault(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[op][path]
}

// Renames returns the renames passed through to the wrapped filesystem.
func (f *FaultFS) Renames() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.renames...)
}

// OpenStreams returns the number of directory streams opened but not yet
// closed.
func (f *FaultFS) OpenStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened - f.closed
}

// OpenDir implements ReadFS
func (f *FaultFS) OpenDir(path string) (DirStream, error) {
	if err := f.fault(OpOpen, path); err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	d, err := f.FileSystem.OpenDir(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &faultDirStream{DirStream: d, fsys: f, readErr: f.fault(OpRead, path), path: path}, nil
}

// Lstat implements ReadFS
func (f *FaultFS) Lstat(path string) (fs.FileInfo, error) {
	if err := f.fault(OpLstat, path); err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return f.FileSystem.Lstat(path)
}

// Rename implements WriteFS
func (f *FaultFS) Rename(oldpath, newpath string) error {
	return f.rename(oldpath, newpath, f.FileSystem.Rename)
}

// RenameNoReplace implements WriteFS
func (f *FaultFS) RenameNoReplace(oldpath, newpath string) error {
	return f.rename(oldpath, newpath, f.FileSystem.RenameNoReplace)
}

func (f *FaultFS) rename(oldpath, newpath string, fn func(string, string) error) error {
	if err := f.fault(OpRename, oldpath); err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	if err := fn(oldpath, newpath); err != nil {
		return err
	}
	f.mu.Lock()
	f.renames = append(f.renames, [2]string{oldpath, newpath})
	f.mu.Unlock()
	return nil
}

type faultDirStream struct {
	DirStream
	fsys    *FaultFS
	path    string
	readErr error
}

func (d *faultDirStream) Next() Read {
	r := d.DirStream.Next()
	if r.Kind == ReadEnd && d.readErr != nil {
		err := d.readErr
		d.readErr = nil
		return Failed(&fs.PathError{Op: "readdir", Path: d.path, Err: err})
	}
	return r
}

func (d *faultDirStream) Close() error {
	d.fsys.mu.Lock()
	d.fsys.closed++
	d.fsys.mu.Unlock()
	return d.DirStream.Close()
}
