package dirconv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gammazero/toposort"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
)

// PlanVersion is the plan format written by this package.
const PlanVersion = 1

// ErrPlanVersion is returned when reading a plan in an unknown format.
var ErrPlanVersion = errors.New("unsupported plan version")

// Plan is a recorded list of renames that can be replayed later.
type Plan struct {
	Version   int         `yaml:"version"`
	Charset   string      `yaml:"charset"`
	CreatedAt time.Time   `yaml:"created_at"`
	Renames   []PlanEntry `yaml:"renames"`
}

// PlanEntry is one recorded rename. Paths are raw bytes; in YAML, paths
// that are not valid UTF-8 are written base64-encoded.
type PlanEntry struct {
	From  string
	To    string
	Class classify.Class
	Dir   bool
	Done  bool
}

type planEntryYAML struct {
	From    string `yaml:"from,omitempty"`
	FromB64 string `yaml:"from_b64,omitempty"`
	To      string `yaml:"to,omitempty"`
	ToB64   string `yaml:"to_b64,omitempty"`
	Class   string `yaml:"class"`
	Dir     bool   `yaml:"dir,omitempty"`
	Done    bool   `yaml:"done,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (e PlanEntry) MarshalYAML() (interface{}, error) {
	out := planEntryYAML{Class: e.Class.String(), Dir: e.Dir, Done: e.Done}
	out.From, out.FromB64 = encodePath(e.From)
	out.To, out.ToB64 = encodePath(e.To)
	return out, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *PlanEntry) UnmarshalYAML(value *yaml.Node) error {
	var in planEntryYAML
	if err := value.Decode(&in); err != nil {
		return err
	}
	from, err := decodePath(in.From, in.FromB64)
	if err != nil {
		return fmt.Errorf("line %d: from: %w", value.Line, err)
	}
	to, err := decodePath(in.To, in.ToB64)
	if err != nil {
		return fmt.Errorf("line %d: to: %w", value.Line, err)
	}
	class, err := classify.ParseClass(in.Class)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*e = PlanEntry{From: from, To: to, Class: class, Dir: in.Dir, Done: in.Done}
	return nil
}

func encodePath(p string) (plain, b64 string) {
	if utf8.ValidString(p) {
		return p, ""
	}
	return "", base64.StdEncoding.EncodeToString([]byte(p))
}

func decodePath(plain, b64 string) (string, error) {
	switch {
	case plain != "" && b64 != "":
		return "", errors.New("both plain and base64 forms given")
	case b64 != "":
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case plain == "":
		return "", errors.New("missing path")
	default:
		return plain, nil
	}
}

// Rename converts the entry back into the walker's form.
func (e PlanEntry) Rename() Rename {
	return Rename{From: e.From, To: e.To, Class: e.Class, Dir: e.Dir}
}

// NewPlan returns an empty plan for names in charset.
func NewPlan(charset string) *Plan {
	return &Plan{
		Version:   PlanVersion,
		Charset:   charset,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Renames:   []PlanEntry{},
	}
}

// Record appends r. It has the signature WithRenameHook expects.
func (p *Plan) Record(r Rename) {
	p.Renames = append(p.Renames, PlanEntry{From: r.From, To: r.To, Class: r.Class, Dir: r.Dir, Done: r.Done})
}

// Write encodes the plan as YAML.
func (p *Plan) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}

// Save writes the plan to path.
func (p *Plan) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadPlan decodes a YAML plan.
func ReadPlan(r io.Reader) (*Plan, error) {
	var p Plan
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if p.Version != PlanVersion {
		return nil, fmt.Errorf("%w: %d", ErrPlanVersion, p.Version)
	}
	return &p, nil
}

// LoadPlan reads the plan stored at path.
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadPlan(f)
}

// Ordered returns the renames in an order that keeps every path valid when
// it is used. An entry below a directory's old name runs before that
// directory is renamed; an entry below its new name runs after. Entries
// with no such constraint keep their recorded order.
func (p *Plan) Ordered() ([]PlanEntry, error) {
	index := make(map[string]int, len(p.Renames))
	for i, e := range p.Renames {
		if _, dup := index[e.From]; dup {
			return nil, fmt.Errorf("plan renames %q twice", e.From)
		}
		index[e.From] = i
	}

	oldDirs := make(map[string]int)
	newDirs := make(map[string]int)
	for i, e := range p.Renames {
		if e.Dir {
			oldDirs[e.From] = i
			newDirs[e.To] = i
		}
	}

	// Edge is [2]interface{}; element 0 comes before element 1
	edges := make([]toposort.Edge, 0)
	for _, e := range p.Renames {
		for parent := parentDir(e.From); parent != ""; parent = parentDir(parent) {
			if i, ok := oldDirs[parent]; ok {
				edges = append(edges, toposort.Edge{e.From, p.Renames[i].From})
			}
			if i, ok := newDirs[parent]; ok {
				edges = append(edges, toposort.Edge{p.Renames[i].From, e.From})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("plan has circular renames: %w", err)
	}

	ordered := make([]PlanEntry, 0, len(p.Renames))
	added := make(map[string]bool, len(p.Renames))
	for _, id := range sorted {
		from, ok := id.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type in topological sort result: %T", id)
		}
		ordered = append(ordered, p.Renames[index[from]])
		added[from] = true
	}
	for _, e := range p.Renames {
		if !added[e.From] {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return ""
	}
	return p[:i]
}

// Apply performs the renames of p that are not marked done, in dependency
// order, with the walker's dry-run, force and collision handling. A plan
// recorded by a live walk therefore retries only what failed. Failures are counted like walk
// errors; only a cancelled context or a malformed plan stops it early.
func (w *Walker) Apply(ctx context.Context, p *Plan) error {
	entries, err := p.Ordered()
	if err != nil {
		return err
	}
	w.log.Info().Int("renames", len(entries)).Str("charset", p.Charset).Msg("applying plan")
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Done {
			w.log.Debug().Str("from", e.From).Msg("already renamed, skipping")
			continue
		}
		rn := e.Rename()
		w.execute(&rn)
	}
	return nil
}
