// Package testutil builds on-disk directory trees for walker tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/arthur-debert/dirconv/pkg/dirconv/filesystem"
)

// Tree is a temporary directory tree whose entry names may hold arbitrary
// bytes. It is Unix-only; on Windows and macOS the tests that need it are
// skipped, since neither stores names as raw bytes.
type Tree struct {
	t    *testing.T
	root string
}

// NewTree creates an empty tree under t.TempDir. The root is canonical, so
// paths reported by a walk can be compared with Path directly.
func NewTree(t *testing.T) *Tree {
	t.Helper()
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("filesystem does not store names as raw bytes")
	}
	root, err := filesystem.Canonical(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	return &Tree{t: t, root: root}
}

// Root returns the tree's absolute root.
func (tr *Tree) Root() string {
	return tr.root
}

// Path joins a slash-separated relative path onto the root without
// cleaning or re-encoding it.
func (tr *Tree) Path(rel string) string {
	if rel == "" {
		return tr.root
	}
	return tr.root + "/" + rel
}

// Dir creates the directory rel and any missing parents.
func (tr *Tree) Dir(rel string) string {
	tr.t.Helper()
	p := tr.Path(rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		tr.t.Fatalf("Failed to create dir %q: %v", rel, err)
	}
	return p
}

// File creates the file rel holding content, creating parents as needed.
func (tr *Tree) File(rel, content string) string {
	tr.t.Helper()
	p := tr.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tr.t.Fatalf("Failed to create parent of %q: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tr.t.Fatalf("Failed to write file %q: %v", rel, err)
	}
	return p
}

// Symlink creates a symbolic link rel pointing at target.
func (tr *Tree) Symlink(target, rel string) string {
	tr.t.Helper()
	p := tr.Path(rel)
	if err := os.Symlink(target, p); err != nil {
		tr.t.Fatalf("Failed to create symlink %q -> %q: %v", rel, target, err)
	}
	return p
}

// Exists reports whether rel exists, without following symlinks.
func (tr *Tree) Exists(rel string) bool {
	_, err := os.Lstat(tr.Path(rel))
	return err == nil
}

// Read returns the content of the file rel.
func (tr *Tree) Read(rel string) string {
	tr.t.Helper()
	data, err := os.ReadFile(tr.Path(rel))
	if err != nil {
		tr.t.Fatalf("Failed to read %q: %v", rel, err)
	}
	return string(data)
}

// List returns every entry below the root as sorted slash-separated
// relative paths. Directories carry a trailing slash.
func (tr *Tree) List() []string {
	tr.t.Helper()
	var out []string
	var walk func(rel string)
	walk = func(rel string) {
		entries, err := os.ReadDir(tr.Path(rel))
		if err != nil {
			tr.t.Fatalf("Failed to list %q: %v", rel, err)
		}
		for _, e := range entries {
			child := e.Name()
			if rel != "" {
				child = rel + "/" + child
			}
			if e.IsDir() {
				out = append(out, child+"/")
				walk(child)
				continue
			}
			out = append(out, child)
		}
	}
	walk("")
	sort.Strings(out)
	return out
}

// Rel strips the root from an absolute path produced by a walk.
func (tr *Tree) Rel(p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, tr.root), "/")
}
