package analysis

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"codescope/internal/ast"
	"codescope/internal/config"
	"codescope/internal/project"
)

// StageID names a stage in the registry.
type StageID string

const (
	StageComplexity StageID = "complexity"
	StageChurn      StageID = "churn"
	StageDebt       StageID = "debt"
	StageDeadCode   StageID = "deadcode"
	StageDuplicates StageID = "duplicates"
	StageGraph      StageID = "graph"
)

// Scope tells the runner how to split a stage's work.
type Scope int

const (
	// ScopePerFile stages see one partition of files per task and may be
	// re-run on just the affected files of an incremental update.
	ScopePerFile Scope = iota
	// ScopeProject stages see every file in a single task.
	ScopeProject
)

func (s Scope) String() string {
	if s == ScopePerFile {
		return "per-file"
	}
	return "project"
}

// SourceFile is a parsed file as stages see it. Stages must treat it as
// read-only: the AST is shared with the cache.
type SourceFile struct {
	Path        string
	AbsPath     string
	Language    project.Language
	Fingerprint string
	Size        int64
	ModTime     time.Time
	AST         *ast.File
}

// Input is what one stage task receives.
type Input struct {
	Root   string
	Files  []*SourceFile
	Config *config.Config
	Logger *slog.Logger
	// Now anchors time windows so one run sees one clock.
	Now time.Time
}

// Stage is one independent analyzer.
type Stage interface {
	ID() StageID
	Scope() Scope
	Run(ctx context.Context, in *Input) (*Output, error)
}

// Fallback is implemented by stages that can degrade instead of failing.
// cause is the error that stopped Run.
type Fallback interface {
	Fallback(ctx context.Context, in *Input, cause error) (*Output, error)
}

// Keyed is implemented by stages whose result depends on more than the file
// set and the config, such as the state of the version-control history.
type Keyed interface {
	InputKey(ctx context.Context, in *Input) string
}

// Output is the tagged union of stage results: each stage fills its own
// variant and leaves the rest empty.
type Output struct {
	Complexity []ComplexityMetrics `json:"complexity,omitempty"`
	Churn      []ChurnMetrics      `json:"churn,omitempty"`
	Debt       []DebtItem          `json:"debt,omitempty"`
	DeadCode   []DeadCodeItem      `json:"deadCode,omitempty"`
	Clones     []CloneGroup        `json:"clones,omitempty"`
	Edges      []DependencyEdge    `json:"edges,omitempty"`
	// Notes carry stage remarks for the report, e.g. why a fallback ran.
	Notes []string `json:"notes,omitempty"`
}

// Merge appends other into o. Used only by the aggregation step.
func (o *Output) Merge(other *Output) {
	if other == nil {
		return
	}
	o.Complexity = append(o.Complexity, other.Complexity...)
	o.Churn = append(o.Churn, other.Churn...)
	o.Debt = append(o.Debt, other.Debt...)
	o.DeadCode = append(o.DeadCode, other.DeadCode...)
	o.Clones = append(o.Clones, other.Clones...)
	o.Edges = append(o.Edges, other.Edges...)
	o.Notes = append(o.Notes, other.Notes...)
}

// Without returns a copy of o minus every per-file result for paths in drop.
// Clone groups and edges touching a dropped path are removed as a whole.
func (o *Output) Without(drop map[string]bool) *Output {
	out := &Output{Notes: o.Notes}
	for _, m := range o.Complexity {
		if !drop[m.Path] {
			out.Complexity = append(out.Complexity, m)
		}
	}
	for _, m := range o.Churn {
		if !drop[m.Path] {
			out.Churn = append(out.Churn, m)
		}
	}
	for _, d := range o.Debt {
		if !drop[d.Path] {
			out.Debt = append(out.Debt, d)
		}
	}
	for _, d := range o.DeadCode {
		if !drop[d.Path] {
			out.DeadCode = append(out.DeadCode, d)
		}
	}
	for _, g := range o.Clones {
		keep := true
		for _, f := range g.Fragments {
			if drop[f.Path] {
				keep = false
				break
			}
		}
		if keep {
			out.Clones = append(out.Clones, g)
		}
	}
	for _, e := range o.Edges {
		if !drop[e.From] && !drop[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Sort orders every variant deterministically.
func (o *Output) Sort() {
	sort.Slice(o.Complexity, func(i, j int) bool { return o.Complexity[i].Path < o.Complexity[j].Path })
	sort.Slice(o.Churn, func(i, j int) bool { return o.Churn[i].Path < o.Churn[j].Path })
	sort.Slice(o.Debt, func(i, j int) bool {
		a, b := o.Debt[i], o.Debt[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})
	sort.Slice(o.DeadCode, func(i, j int) bool {
		a, b := o.DeadCode[i], o.DeadCode[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
	sort.Slice(o.Clones, func(i, j int) bool { return o.Clones[i].ID < o.Clones[j].ID })
	sort.Slice(o.Edges, func(i, j int) bool {
		a, b := o.Edges[i], o.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
	sort.Strings(o.Notes)
}

// Paths returns the sorted paths of files.
func Paths(files []*SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	sort.Strings(out)
	return out
}

// Only returns the part of the output that stage id produces. Every variant
// belongs to exactly one stage.
func (o *Output) Only(id StageID) *Output {
	out := &Output{}
	if o == nil {
		return out
	}
	switch id {
	case StageComplexity:
		out.Complexity = o.Complexity
	case StageChurn:
		out.Churn = o.Churn
	case StageDebt:
		out.Debt = o.Debt
	case StageDeadCode:
		out.DeadCode = o.DeadCode
	case StageDuplicates:
		out.Clones = o.Clones
	case StageGraph:
		out.Edges = o.Edges
	}
	return out
}
