package dirconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
	"github.com/arthur-debert/dirconv/pkg/dirconv/filesystem"
	"github.com/arthur-debert/dirconv/pkg/dirconv/pathbuf"
	"github.com/arthur-debert/dirconv/pkg/dirconv/transcode"
)

// Rename describes one rename the walker reported.
type Rename struct {
	From  string
	To    string
	Class classify.Class
	Dir   bool
	// Done is set once the entry has been renamed on disk. It stays false
	// under dry-run and when the rename failed.
	Done bool
}

// Stats summarises a run.
type Stats struct {
	Visited  int
	Excluded int
	Selected int
	ByClass  map[classify.Class]int
	Planned  int
	Renamed  int
	// Errors counts every recoverable failure. A run succeeded iff it is
	// zero.
	Errors int
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fsys filesystem.FileSystem) WalkerOption {
	return func(w *Walker) { w.fsys = fsys }
}

// WithOutput sets where paths and rename lines are written.
func WithOutput(out io.Writer) WalkerOption {
	return func(w *Walker) { w.out = out }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zerolog.Logger) WalkerOption {
	return func(w *Walker) { w.log = l }
}

// WithErrorHook is called for every recoverable error after it is counted.
func WithErrorHook(fn func(*WalkError)) WalkerOption {
	return func(w *Walker) { w.onError = fn }
}

// WithRenameHook is called for every rename the walker attempts, once the
// new name is known. Rename.Done tells performed renames from planned or
// failed ones.
func WithRenameHook(fn func(Rename)) WalkerOption {
	return func(w *Walker) { w.onRename = fn }
}

// Walker classifies, reports and renames the entries of directory trees.
// It is not safe for concurrent use.
type Walker struct {
	opts     Options
	fsys     filesystem.FileSystem
	out      io.Writer
	log      *zerolog.Logger
	fwd      *transcode.Converter // legacy -> UTF-8
	rev      *transcode.Converter // UTF-8 -> legacy
	stats    Stats
	onError  func(*WalkError)
	onRename func(Rename)
}

// NewWalker validates opts and prepares the converters for opts.Charset.
func NewWalker(opts Options, options ...WalkerOption) (*Walker, error) {
	w := &Walker{
		fsys:  filesystem.NewOSFileSystem(),
		out:   os.Stdout,
		log:   Logger(),
		stats: Stats{ByClass: make(map[classify.Class]int)},
	}
	for _, opt := range options {
		opt(w)
	}

	for _, msg := range opts.Normalize() {
		w.log.Warn().Msg(msg)
	}
	w.opts = opts

	var err error
	if w.fwd, err = transcode.NewDecoder(opts.Charset); err != nil {
		return nil, fmt.Errorf("charset %q: %w", opts.Charset, err)
	}
	if w.rev, err = transcode.NewEncoder(opts.Charset); err != nil {
		return nil, fmt.Errorf("charset %q: %w", opts.Charset, err)
	}
	return w, nil
}

// Options returns the normalized options.
func (w *Walker) Options() Options {
	return w.opts
}

// Stats returns a snapshot of the counters.
func (w *Walker) Stats() Stats {
	s := w.stats
	s.ByClass = make(map[classify.Class]int, len(w.stats.ByClass))
	for k, v := range w.stats.ByClass {
		s.ByClass[k] = v
	}
	return s
}

// Errors returns the number of recoverable errors so far.
func (w *Walker) Errors() int {
	return w.stats.Errors
}

// WalkAll walks each root in turn with a fresh path buffer. It stops at the
// first fatal error.
func (w *Walker) WalkAll(ctx context.Context, roots []string) error {
	for _, root := range roots {
		if err := w.Walk(ctx, root); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every entry below root depth-first. Recoverable failures are
// logged and counted and the walk goes on; the returned error is non-nil
// only for a fatal failure or a cancelled context.
func (w *Walker) Walk(ctx context.Context, root string) error {
	abs, err := filesystem.Canonical(root)
	if err != nil {
		w.report(&WalkError{Kind: MetadataFailure, Path: root, Err: err})
		return nil
	}
	buf, err := pathbuf.New(abs)
	if err != nil {
		return w.fatal(&WalkError{Kind: AllocationFailure, Path: root, Err: err})
	}
	buf.SetMaxSize(w.opts.MaxPathSize)
	return w.walkDir(ctx, buf)
}

// walkDir visits the directory whose path is the whole of buf. It leaves
// buf exactly as it found it.
func (w *Walker) walkDir(ctx context.Context, buf *pathbuf.Buffer) error {
	dirPath := buf.String()
	w.log.Info().Str("path", dirPath).Msg("entering directory")

	dir, err := w.fsys.OpenDir(dirPath)
	if err != nil {
		w.report(&WalkError{Kind: DirectoryOpenFailure, Path: dirPath, Err: err})
		return nil
	}
	defer func() {
		if closeErr := dir.Close(); closeErr != nil {
			w.log.Warn().Err(closeErr).Str("path", dirPath).Msg("failed to close directory")
		}
	}()

	base := buf.Len()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := dir.Next()
		switch r.Kind {
		case filesystem.ReadEnd:
			return nil
		case filesystem.ReadError:
			w.report(&WalkError{Kind: ReadStreamFailure, Path: dirPath, Err: r.Err})
			return nil
		}
		err := w.visit(ctx, buf, base, r.Name)
		buf.Truncate(base)
		if err != nil {
			return err
		}
	}
}

func (w *Walker) visit(ctx context.Context, buf *pathbuf.Buffer, base int, name string) error {
	if name == "." || name == ".." {
		return nil
	}
	if w.opts.Exclude.Match(name) {
		w.stats.Excluded++
		w.log.Debug().Str("name", name).Str("dir", buf.String()).Msg("excluded")
		return nil
	}

	if _, err := buf.Push(name); err != nil {
		return w.fatal(&WalkError{Kind: AllocationFailure, Path: buf.Join(base, name), Err: err})
	}
	path := buf.String()

	// directory entry type hints are not reliable everywhere
	info, err := w.fsys.Lstat(path)
	if err != nil {
		w.report(&WalkError{Kind: MetadataFailure, Path: path, Err: err})
		return nil
	}
	isDir := info.IsDir()

	class, utfName := w.classifyName(name)
	w.stats.Visited++
	w.stats.ByClass[class]++
	selected := w.opts.Selection.Has(class)
	w.log.Debug().Str("path", path).Stringer("class", class).Bool("selected", selected).Msg("classified")

	if selected {
		w.stats.Selected++
		if w.opts.Print {
			w.printPath(path)
		}
	}

	if w.opts.Rename && selected && class.NeedsRename() {
		if err := w.renameEntry(buf, base, name, utfName, class, isDir); err != nil {
			return err
		}
	}

	if isDir {
		return w.walkDir(ctx, buf)
	}
	return nil
}

// classifyName classifies name and, for UTF-8 names, checks for double
// encoding: if converting back to the legacy charset yields UTF-8 again, the
// name is WTF-8 and the converted form is its repaired name.
func (w *Walker) classifyName(name string) (classify.Class, string) {
	class := classify.ClassifyString(name)
	if class != classify.UTF8 {
		return class, ""
	}
	back, err := w.rev.ConvertString(name)
	if err != nil {
		return class, ""
	}
	if classify.ClassifyString(back) == classify.UTF8 {
		w.log.Trace().Str("name", name).Str("decoded", back).Msg("double-encoded UTF-8")
		return classify.WTF8, back
	}
	return class, ""
}

// renameEntry renames the entry at the top of buf. When a directory is
// renamed, buf is updated so the descent uses the new name.
func (w *Walker) renameEntry(buf *pathbuf.Buffer, base int, name, utfName string, class classify.Class, isDir bool) error {
	oldPath := buf.String()
	if utfName == "" {
		converted, err := w.fwd.ConvertString(name)
		if err != nil {
			w.report(&WalkError{Kind: TranscodeFailure, Path: oldPath, Err: err})
			return nil
		}
		utfName = converted
	}

	rn := Rename{From: oldPath, To: buf.Join(base, utfName), Class: class, Dir: isDir}
	if !w.execute(&rn) || !isDir {
		return nil
	}
	if err := buf.ReplaceTail(base, utfName); err != nil {
		return w.fatal(&WalkError{Kind: AllocationFailure, Path: rn.To, Err: err})
	}
	return nil
}

// execute reports rn and, unless this is a dry run, performs it. It returns
// whether the entry was renamed on disk.
func (w *Walker) execute(rn *Rename) bool {
	w.printRename(rn.From, rn.To)

	if w.opts.DryRun {
		w.stats.Planned++
		w.notifyRename(*rn)
		return false
	}

	var err error
	if w.opts.Force {
		err = w.fsys.Rename(rn.From, rn.To)
	} else {
		if filesystem.Exists(w.fsys, rn.To) {
			w.report(&WalkError{Kind: RenameCollision, Path: rn.From, Target: rn.To, Err: fs.ErrExist})
			w.notifyRename(*rn)
			return false
		}
		// the check above is advisory; RenameNoReplace closes the race
		err = w.fsys.RenameNoReplace(rn.From, rn.To)
	}
	if err != nil {
		kind := RenameFailure
		if !w.opts.Force && errors.Is(err, fs.ErrExist) {
			kind = RenameCollision
		}
		w.report(&WalkError{Kind: kind, Path: rn.From, Target: rn.To, Err: err})
		w.notifyRename(*rn)
		return false
	}

	rn.Done = true
	w.stats.Renamed++
	w.log.Info().Str("from", rn.From).Str("to", rn.To).Msg("renamed")
	w.notifyRename(*rn)
	return true
}

func (w *Walker) notifyRename(rn Rename) {
	if w.onRename != nil {
		w.onRename(rn)
	}
}

func (w *Walker) printPath(path string) {
	term := "\n"
	if w.opts.Null {
		term = "\x00"
	}
	if _, err := io.WriteString(w.out, path+term); err != nil {
		w.log.Error().Err(err).Msg("failed to write output")
	}
}

func (w *Walker) printRename(from, to string) {
	if _, err := fmt.Fprintf(w.out, "%s -> %s\n", from, to); err != nil {
		w.log.Error().Err(err).Msg("failed to write output")
	}
}

// report logs and counts a recoverable error.
func (w *Walker) report(e *WalkError) {
	w.stats.Errors++
	ev := w.log.Error().Stringer("kind", e.Kind).Str("path", e.Path)
	if e.Target != "" {
		ev = ev.Str("target", e.Target)
	}
	ev.Err(e.Err).Msg(kindSentinels[e.Kind].Error())
	if w.onError != nil {
		w.onError(e)
	}
}

// fatal logs e and returns it so the walk unwinds.
func (w *Walker) fatal(e *WalkError) error {
	w.stats.Errors++
	w.log.Error().Stringer("kind", e.Kind).Str("path", e.Path).Err(e.Err).Msg("fatal: " + kindSentinels[e.Kind].Error())
	return e
}
