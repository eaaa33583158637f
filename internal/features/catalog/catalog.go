package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go-fleetreport/internal/features/option"
	"go-fleetreport/pkg/orderedmap"

	"go.uber.org/zap"
)

var (
	ErrReportNotFound = errors.New("report definition not found")
	ErrInvalidRoot    = errors.New("invalid report definition root")
)

// Config holds everything a load needs besides the document itself.
type Config struct {
	Bindings BindingRegistry
	// Rules validates MapIconSelector and RuleSelector. Nil means no rule
	// engine is installed.
	Rules     SelectorChecker
	Resolvers option.Dependencies
	// InstalledModules lists the add-on modules present in this deployment.
	InstalledModules []string
	// IgnoreMissingReports treats every unresolved class or layout as optional.
	IgnoreMissingReports bool
	// OmitCustomOptions disables resolver backed options.
	OmitCustomOptions bool
	// GlobalProperties override top-level definition properties.
	GlobalProperties map[string]string
	// Types are registered after the built-in types.
	Types []ReportType
}

// Source supplies a root definition document.
type Source interface {
	// Document returns the root node and its origin path. The origin
	// anchors relative Include lookups and may be empty.
	Document() (*Node, string, error)
}

// FileSource reads an XML or YAML file.
type FileSource string

func (f FileSource) Document() (*Node, string, error) {
	path := string(f)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	root, err := DecodeFile(path)
	return root, path, err
}

// TreeSource serves an already decoded document.
type TreeSource struct {
	Root   *Node
	Origin string
}

func (t TreeSource) Document() (*Node, string, error) {
	if t.Root == nil {
		return nil, t.Origin, fmt.Errorf("%w: empty document", ErrInvalidRoot)
	}
	return t.Root, t.Origin, nil
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Problem is one error or warning recorded during a load.
type Problem struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Report   string   `json:"report,omitempty" yaml:"report,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	b.WriteString(string(p.Severity))
	if p.Source != "" {
		fmt.Fprintf(&b, " [%s", p.Source)
		if p.Line > 0 {
			fmt.Fprintf(&b, ":%d", p.Line)
		}
		b.WriteString("]")
	}
	if p.Report != "" {
		fmt.Fprintf(&b, " report %q", p.Report)
	}
	b.WriteString(": ")
	b.WriteString(p.Message)
	return b.String()
}

// LoadResult summarizes one load pass.
type LoadResult struct {
	Count       int       `json:"count" yaml:"count"`
	HasErrors   bool      `json:"hasErrors" yaml:"hasErrors"`
	HasWarnings bool      `json:"hasWarnings" yaml:"hasWarnings"`
	Problems    []Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func (r LoadResult) Errors() []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			out = append(out, p)
		}
	}
	return out
}

// snapshot is one fully parsed catalog. It is never modified once published.
type snapshot struct {
	entries      *orderedmap.Map[string, *Entry]
	types        *TypeRegistry
	layouts      map[string]Layout
	defaultStyle Style
}

func newSnapshot(extra []ReportType) *snapshot {
	types := NewTypeRegistry(DefaultTypes()...)
	for _, t := range extra {
		types.RegisterType(t.Name, t.Scope, t.Description)
	}
	return &snapshot{
		entries: orderedmap.New[string, *Entry](),
		types:   types,
		layouts: make(map[string]Layout),
	}
}

// Catalog is the report definition registry. Lookups always see one
// complete snapshot; Load builds a new snapshot and swaps it in.
type Catalog struct {
	cfg    Config
	logger *zap.Logger

	loadMu  sync.Mutex
	current atomic.Pointer[snapshot]
	last    atomic.Pointer[LoadResult]
}

func NewCatalog(cfg Config, logger *zap.Logger) *Catalog {
	c := &Catalog{cfg: cfg, logger: logger}
	c.current.Store(newSnapshot(cfg.Types))
	c.last.Store(&LoadResult{})
	return c
}

// Load parses src into a new snapshot. Individual definition problems are
// recorded in the result and never abort the pass. When the root document
// cannot be read the previous snapshot stays current.
func (c *Catalog) Load(src Source) LoadResult {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	l := newLoader(c.cfg, c.logger)
	snap, err := l.load(src)
	res := l.result
	if err != nil {
		c.logger.Error("Report definition load failed, keeping current catalog", zap.Error(err))
		c.last.Store(&res)
		return res
	}
	res.Count = snap.entries.Len()
	c.current.Store(snap)
	c.last.Store(&res)

	c.logger.Info("Report definitions loaded",
		zap.Int("count", res.Count),
		zap.Bool("hasErrors", res.HasErrors),
		zap.Bool("hasWarnings", res.HasWarnings))
	return res
}

// Get returns the named entry or an error wrapping ErrReportNotFound.
func (c *Catalog) Get(name string) (*Entry, error) {
	if e := c.Lookup(name); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrReportNotFound, name)
}

// Lookup returns the named entry or nil.
func (c *Catalog) Lookup(name string) *Entry {
	e, _ := c.current.Load().entries.Get(name)
	return e
}

// IsCurrent reports whether e belongs to the current snapshot.
func (c *Catalog) IsCurrent(e *Entry) bool {
	return e != nil && c.Lookup(e.name) == e
}

func (c *Catalog) Names() []string {
	return c.current.Load().entries.Keys()
}

// Entries lists entries in definition order.
func (c *Catalog) Entries() []*Entry {
	snap := c.current.Load()
	out := make([]*Entry, 0, snap.entries.Len())
	snap.entries.Each(func(_ string, e *Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (c *Catalog) Len() int {
	return c.current.Load().entries.Len()
}

func (c *Catalog) Types() *TypeRegistry {
	return c.current.Load().types
}

func (c *Catalog) Layout(name string) (Layout, bool) {
	l, ok := c.current.Load().layouts[name]
	return l, ok
}

func (c *Catalog) DefaultStyle() Style {
	return c.current.Load().defaultStyle
}

func (c *Catalog) LastLoad() LoadResult {
	return *c.last.Load()
}

func (c *Catalog) HasErrors() bool {
	return c.last.Load().HasErrors
}

func (c *Catalog) HasWarnings() bool {
	return c.last.Load().HasWarnings
}
