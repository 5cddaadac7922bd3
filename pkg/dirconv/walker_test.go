package dirconv_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
	"github.com/arthur-debert/dirconv/pkg/dirconv/filesystem"
	"github.com/arthur-debert/dirconv/pkg/dirconv/filter"
	"github.com/arthur-debert/dirconv/pkg/dirconv/testutil"
	"github.com/arthur-debert/dirconv/pkg/dirconv/transcode"
)

const (
	latinName = "caf\xe9.txt"             // ISO-8859-1
	utf8Name  = "caf\xc3\xa9.txt"         // café.txt
	wtf8Name  = "caf\xc3\x83\xc2\xa9.txt" // cafÃ©.txt
)

type harness struct {
	walker *dirconv.Walker
	out    *bytes.Buffer
	logs   *bytes.Buffer
	errs   []*dirconv.WalkError
}

func newHarness(t *testing.T, opts dirconv.Options, extra ...dirconv.WalkerOption) *harness {
	t.Helper()
	h := &harness{out: &bytes.Buffer{}, logs: &bytes.Buffer{}}
	logger := dirconv.NewTestLogger(h.logs, 2)
	options := []dirconv.WalkerOption{
		dirconv.WithOutput(h.out),
		dirconv.WithLogger(&logger),
		dirconv.WithErrorHook(func(e *dirconv.WalkError) { h.errs = append(h.errs, e) }),
	}
	w, err := dirconv.NewWalker(opts, append(options, extra...)...)
	require.NoError(t, err)
	h.walker = w
	return h
}

func (h *harness) lines() []string {
	s := strings.TrimSuffix(h.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func renameOptions() dirconv.Options {
	opts := dirconv.DefaultOptions()
	opts.Print = false
	opts.Rename = true
	return opts
}

func TestWalkPrintsSelectedClass(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("plain.txt", "")
	tree.File(latinName, "")
	tree.File(utf8Name, "")

	t.Run("default selects legacy names", func(t *testing.T) {
		h := newHarness(t, dirconv.DefaultOptions())
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		assert.Equal(t, []string{tree.Path(latinName)}, h.lines())
		assert.Equal(t, 0, h.walker.Errors())
	})

	t.Run("ascii and utf8", func(t *testing.T) {
		opts := dirconv.DefaultOptions()
		opts.Selection = classify.Select(classify.ASCII, classify.UTF8)
		h := newHarness(t, opts)
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		got := h.lines()
		assert.ElementsMatch(t, []string{tree.Path("plain.txt"), tree.Path(utf8Name)}, got)
	})

	t.Run("NUL terminator", func(t *testing.T) {
		opts := dirconv.DefaultOptions()
		opts.Null = true
		h := newHarness(t, opts)
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		assert.Equal(t, tree.Path(latinName)+"\x00", h.out.String())
	})

	t.Run("stats", func(t *testing.T) {
		h := newHarness(t, dirconv.DefaultOptions())
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		stats := h.walker.Stats()
		assert.Equal(t, 3, stats.Visited)
		assert.Equal(t, 1, stats.Selected)
		assert.Equal(t, 1, stats.ByClass[classify.Legacy8Bit])
		assert.Equal(t, 1, stats.ByClass[classify.ASCII])
		assert.Equal(t, 1, stats.ByClass[classify.UTF8])
	})
}

func TestWalkRenamesLegacyName(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(latinName, "payload")

	h := newHarness(t, renameOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, []string{tree.Path(latinName) + " -> " + tree.Path(utf8Name)}, h.lines())
	assert.Equal(t, []string{utf8Name}, tree.List())
	assert.Equal(t, "payload", tree.Read(utf8Name))
	assert.Equal(t, 0, h.walker.Errors())
	assert.Equal(t, 1, h.walker.Stats().Renamed)
}

func TestWalkPrintAndRename(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(latinName, "")

	opts := renameOptions()
	opts.Print = true
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, []string{
		tree.Path(latinName),
		tree.Path(latinName) + " -> " + tree.Path(utf8Name),
	}, h.lines())
}

func TestWalkCollision(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(latinName, "legacy")
	tree.File(utf8Name, "existing")

	h := newHarness(t, renameOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, 1, h.walker.Errors())
	require.Len(t, h.errs, 1)
	assert.Equal(t, dirconv.RenameCollision, h.errs[0].Kind)
	assert.ErrorIs(t, h.errs[0], dirconv.ErrCollision)
	assert.Equal(t, tree.Path(utf8Name), h.errs[0].Target)

	assert.Equal(t, "legacy", tree.Read(latinName))
	assert.Equal(t, "existing", tree.Read(utf8Name))
	assert.Equal(t, 0, h.walker.Stats().Renamed)
}

func TestWalkForceOverwrites(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(latinName, "legacy")
	tree.File(utf8Name, "existing")

	opts := renameOptions()
	opts.Force = true
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, 0, h.walker.Errors())
	assert.Equal(t, []string{utf8Name}, tree.List())
	assert.Equal(t, "legacy", tree.Read(utf8Name))
}

func TestWalkDryRun(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("r\xe9pertoire/fichier\xe9", "")
	tree.File(latinName, "")
	before := tree.List()

	opts := renameOptions()
	opts.DryRun = true
	opts.Null = true

	first := newHarness(t, opts)
	require.NoError(t, first.walker.Walk(context.Background(), tree.Root()))
	assert.Equal(t, before, tree.List(), "dry run must not touch the tree")
	assert.Equal(t, 3, first.walker.Stats().Planned)
	assert.False(t, first.walker.Options().Null, "dry run always uses newlines")
	assert.NotContains(t, first.out.String(), "\x00")

	second := newHarness(t, opts)
	require.NoError(t, second.walker.Walk(context.Background(), tree.Root()))
	assert.Equal(t, first.out.String(), second.out.String())

	// children are reported under the old directory name
	assert.Contains(t, first.lines(),
		tree.Path("r\xe9pertoire/fichier\xe9")+" -> "+tree.Path("r\xe9pertoire/fichier\xc3\xa9"))
}

func TestWalkDescendsRenamedDirectory(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("r\xe9pertoire/fichier\xe9", "inner")

	opts := renameOptions()
	opts.Print = true
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	newDir := "r\xc3\xa9pertoire"
	assert.Equal(t, []string{
		tree.Path("r\xe9pertoire"),
		tree.Path("r\xe9pertoire") + " -> " + tree.Path(newDir),
		tree.Path(newDir + "/fichier\xe9"),
		tree.Path(newDir+"/fichier\xe9") + " -> " + tree.Path(newDir+"/fichier\xc3\xa9"),
	}, h.lines())
	assert.Equal(t, []string{newDir + "/", newDir + "/fichier\xc3\xa9"}, tree.List())
	assert.Equal(t, 0, h.walker.Errors())
}

func TestWalkRepairsDoubleEncoding(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(wtf8Name, "")
	tree.File(utf8Name+".bak", "")

	t.Run("not selected by default", func(t *testing.T) {
		h := newHarness(t, dirconv.DefaultOptions())
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		assert.Empty(t, h.lines())
		assert.Equal(t, 1, h.walker.Stats().ByClass[classify.WTF8])
		assert.Equal(t, 1, h.walker.Stats().ByClass[classify.UTF8])
	})

	t.Run("rename", func(t *testing.T) {
		opts := renameOptions()
		opts.Selection = classify.Select(classify.WTF8)
		h := newHarness(t, opts)
		require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))
		assert.Equal(t, []string{tree.Path(wtf8Name) + " -> " + tree.Path(utf8Name)}, h.lines())
		assert.ElementsMatch(t, []string{utf8Name, utf8Name + ".bak"}, tree.List())
	})
}

func TestWalkUTF8NamesAreNeverRenamed(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(utf8Name, "")
	tree.File("plain", "")

	opts := renameOptions()
	opts.Selection = classify.Select(classify.ASCII, classify.UTF8)
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Empty(t, h.lines())
	assert.ElementsMatch(t, []string{utf8Name, "plain"}, tree.List())
}

func TestWalkOtherCharset(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("\x80uro", "") // windows-1252 euro sign

	opts := renameOptions()
	opts.Charset = "windows-1252"
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, []string{"\xe2\x82\xacuro"}, tree.List())
}

func TestWalkTranscodeFailure(t *testing.T) {
	// 0xa5 and 0xae are unassigned in ISO-8859-3
	tree := testutil.NewTree(t)
	tree.File("x\xa5", "first")
	tree.File("x\xae", "second")
	tree.File("d\xae/"+"\xaa", "")

	opts := renameOptions()
	opts.Charset = "iso8859-3"
	var renames []dirconv.Rename
	h := newHarness(t, opts, dirconv.WithRenameHook(func(r dirconv.Rename) { renames = append(renames, r) }))
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Equal(t, 3, h.walker.Errors())
	require.Len(t, h.errs, 3)
	for _, e := range h.errs {
		assert.Equal(t, dirconv.TranscodeFailure, e.Kind)
		assert.ErrorIs(t, e, dirconv.ErrTranscode)
		assert.ErrorIs(t, e, transcode.ErrIllegalSequence)
	}
	assert.Equal(t, []string{tree.Path("d\xae/\xaa") + " -> " + tree.Path("d\xae/\xc5\x9e")}, h.lines())

	// the directory keeps its name and is still descended
	assert.Equal(t, []string{"d\xae/", "d\xae/\xc5\x9e", "x\xa5", "x\xae"}, tree.List())
	assert.Equal(t, "first", tree.Read("x\xa5"))
	assert.Equal(t, "second", tree.Read("x\xae"))
	require.Len(t, renames, 1)
	assert.True(t, renames[0].Done)
}

func TestWalkExclude(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("skip/"+latinName, "")
	tree.File("keep/"+latinName, "")
	tree.File("notes.bak", "")

	opts := dirconv.DefaultOptions()
	opts.Selection = classify.Select(classify.Legacy8Bit, classify.ASCII)
	opts.Exclude = filter.MustCompile("^skip$", `\.bak$`)
	h := newHarness(t, opts)
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.ElementsMatch(t, []string{tree.Path("keep"), tree.Path("keep/" + latinName)}, h.lines())
	assert.Equal(t, 2, h.walker.Stats().Excluded)
}

func TestWalkDoesNotFollowSymlinks(t *testing.T) {
	outside := testutil.NewTree(t)
	outside.File(latinName, "")

	tree := testutil.NewTree(t)
	tree.Symlink(outside.Root(), "link")

	h := newHarness(t, renameOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.Empty(t, h.lines())
	assert.True(t, outside.Exists(latinName))
}

func TestWalkSymlinkNameIsRenamed(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.Dir("target")
	tree.Symlink("target", "lien\xe9")

	h := newHarness(t, renameOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	assert.True(t, tree.Exists("lien\xc3\xa9"))
	link, err := os.Readlink(tree.Path("lien\xc3\xa9"))
	require.NoError(t, err)
	assert.Equal(t, "target", link)
}

func TestWalkCanonicalRoot(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("sub/"+latinName, "")
	tree.Symlink(tree.Path("sub"), "alias")

	h := newHarness(t, dirconv.DefaultOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Path("alias")+"/."))

	assert.Equal(t, []string{tree.Path("sub/" + latinName)}, h.lines())
}

func TestWalkMissingRoot(t *testing.T) {
	tree := testutil.NewTree(t)

	h := newHarness(t, dirconv.DefaultOptions())
	require.NoError(t, h.walker.Walk(context.Background(), tree.Path("missing")))

	assert.Equal(t, 1, h.walker.Errors())
	require.Len(t, h.errs, 1)
	assert.Equal(t, dirconv.MetadataFailure, h.errs[0].Kind)
}

func TestWalkAllKeepsCounting(t *testing.T) {
	a := testutil.NewTree(t)
	a.File(latinName, "")
	b := testutil.NewTree(t)
	b.File(latinName, "")

	h := newHarness(t, dirconv.DefaultOptions())
	err := h.walker.WalkAll(context.Background(), []string{a.Root(), b.Path("missing"), b.Root()})
	require.NoError(t, err)

	assert.Equal(t, []string{a.Path(latinName), b.Path(latinName)}, h.lines())
	assert.Equal(t, 1, h.walker.Errors())
}

func TestWalkRecoverableErrors(t *testing.T) {
	tests := []struct {
		name     string
		op       filesystem.Op
		target   string
		kind     dirconv.ErrorKind
		wantTree []string
	}{
		{
			name:     "open failure skips the directory",
			op:       filesystem.OpOpen,
			target:   "locked",
			kind:     dirconv.DirectoryOpenFailure,
			wantTree: []string{"locked/", "locked/inner\xe9", "top\xc3\xa9"},
		},
		{
			name:     "lstat failure skips the entry",
			op:       filesystem.OpLstat,
			target:   "top\xe9",
			kind:     dirconv.MetadataFailure,
			wantTree: []string{"locked/", "locked/inner\xc3\xa9", "top\xe9"},
		},
		{
			name:     "rename failure leaves the source",
			op:       filesystem.OpRename,
			target:   "top\xe9",
			kind:     dirconv.RenameFailure,
			wantTree: []string{"locked/", "locked/inner\xc3\xa9", "top\xe9"},
		},
		{
			name:     "read failure after the entries",
			op:       filesystem.OpRead,
			target:   "locked",
			kind:     dirconv.ReadStreamFailure,
			wantTree: []string{"locked/", "locked/inner\xc3\xa9", "top\xc3\xa9"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree := testutil.NewTree(t)
			tree.File("locked/inner\xe9", "")
			tree.File("top\xe9", "")

			fsys := filesystem.NewFaultFS(filesystem.NewOSFileSystem())
			fsys.Fail(tc.op, tree.Path(tc.target), syscall.EACCES)

			h := newHarness(t, renameOptions(), dirconv.WithFileSystem(fsys))
			require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

			assert.Equal(t, 1, h.walker.Errors())
			require.Len(t, h.errs, 1)
			assert.Equal(t, tc.kind, h.errs[0].Kind)
			assert.True(t, errors.Is(h.errs[0], syscall.EACCES))
			assert.Equal(t, tc.wantTree, tree.List())
			assert.Equal(t, 0, fsys.OpenStreams(), "every directory stream must be closed")
			assert.Contains(t, h.logs.String(), tc.kind.String())
		})
	}
}

func TestWalkAllocationFailureIsFatal(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File(strings.Repeat("a", 250), "")
	tree.File("sub/"+latinName, "")

	fsys := filesystem.NewFaultFS(filesystem.NewOSFileSystem())
	opts := dirconv.DefaultOptions()
	opts.MaxPathSize = len(tree.Root()) + 16
	h := newHarness(t, opts, dirconv.WithFileSystem(fsys))

	err := h.walker.Walk(context.Background(), tree.Root())
	require.Error(t, err)
	assert.ErrorIs(t, err, dirconv.ErrAllocation)

	var walkErr *dirconv.WalkError
	require.True(t, errors.As(err, &walkErr))
	assert.True(t, walkErr.Kind.Fatal())
	assert.Equal(t, 0, fsys.OpenStreams())
}

func TestWalkCancelled(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("a/b/"+latinName, "")

	fsys := filesystem.NewFaultFS(filesystem.NewOSFileSystem())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, dirconv.DefaultOptions(), dirconv.WithFileSystem(fsys))
	err := h.walker.Walk(ctx, tree.Root())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.lines())
	assert.Equal(t, 0, fsys.OpenStreams())
}

func TestWalkRenameHook(t *testing.T) {
	tree := testutil.NewTree(t)
	tree.File("d\xe9/"+latinName, "")

	var got []dirconv.Rename
	h := newHarness(t, renameOptions(), dirconv.WithRenameHook(func(r dirconv.Rename) { got = append(got, r) }))
	require.NoError(t, h.walker.Walk(context.Background(), tree.Root()))

	require.Len(t, got, 2)
	assert.Equal(t, tree.Path("d\xe9"), got[0].From)
	assert.True(t, got[0].Dir)
	assert.True(t, got[0].Done)
	assert.Equal(t, classify.Legacy8Bit, got[0].Class)
	assert.Equal(t, tree.Path("d\xc3\xa9/"+latinName), got[1].From)
	assert.False(t, got[1].Dir)
}

func TestNewWalkerUnknownCharset(t *testing.T) {
	opts := dirconv.DefaultOptions()
	opts.Charset = "no-such-charset"
	_, err := dirconv.NewWalker(opts)
	assert.Error(t, err)
}

func TestOptionsNormalize(t *testing.T) {
	opts := dirconv.Options{Force: true, DryRun: true, Null: true}
	warnings := opts.Normalize()

	assert.Len(t, warnings, 2)
	assert.True(t, opts.Print)
	assert.False(t, opts.Null)
	assert.Equal(t, dirconv.DefaultCharset, opts.Charset)
	assert.Equal(t, classify.DefaultSelection, opts.Selection)
}
