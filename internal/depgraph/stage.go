// Package depgraph builds the dependency edges of a project from imports,
// call names and, when present, a SCIP index.
package depgraph

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"codescope/internal/analysis"
	"codescope/internal/scan"
)

// Granularity selects what a graph node stands for.
type Granularity string

const (
	GranularityFile     Granularity = "file"
	GranularityModule   Granularity = "module"
	GranularityFunction Granularity = "function"
)

// maxCallTargets skips call names defined in more files than this; such
// names (String, get, new) say nothing about structure.
const maxCallTargets = 4

type rawEdge struct {
	from, to string
	weight   float64
	kind     string
}

// Stage emits dependency edges.
type Stage struct {
	weights EdgeWeights
}

// NewStage creates the graph stage with default edge weights.
func NewStage() *Stage {
	return &Stage{weights: DefaultEdgeWeights()}
}

func (s *Stage) ID() analysis.StageID { return analysis.StageGraph }

// Scope is project-wide: edges need every definition.
func (s *Stage) Scope() analysis.Scope { return analysis.ScopeProject }

// Run resolves edges at the configured granularity.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	granularity := GranularityFile
	var scipIndex string
	if in.Config != nil {
		if g := Granularity(in.Config.Graph.Granularity); g != "" {
			granularity = g
		}
		scipIndex = in.Config.Graph.ScipIndex
	}

	var edges []rawEdge
	var notes []string
	if granularity == GranularityFunction {
		edges = s.functionEdges(in.Files)
	} else {
		edges = s.fileEdges(in.Root, in.Files)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if scipIndex != "" {
			p := scipIndex
			if !filepath.IsAbs(p) {
				p = filepath.Join(in.Root, p)
			}
			keep := make(map[string]bool, len(in.Files))
			for _, f := range in.Files {
				keep[f.Path] = true
			}
			refs, err := loadSCIP(p, keep, s.weights)
			switch {
			case err == nil:
				edges = append(edges, refs...)
				in.Logger.Debug("Merged SCIP references", "index", scipIndex, "edges", len(refs))
			case errors.Is(err, fs.ErrNotExist):
			default:
				in.Logger.Warn("Ignoring unreadable SCIP index", "index", scipIndex, "error", err.Error())
				notes = append(notes, "graph: SCIP index ignored: "+err.Error())
			}
		}
		if granularity == GranularityModule {
			edges = toModules(edges)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &analysis.Output{Edges: merge(edges), Notes: notes}, nil
}

// fileEdges resolves imports to files and call names to defining files.
func (s *Stage) fileEdges(root string, files []*analysis.SourceFile) []rawEdge {
	r := newResolver(root, files)

	defs := make(map[string][]string) // family|name -> files
	for _, f := range files {
		if f.AST == nil {
			continue
		}
		seen := make(map[string]bool)
		add := func(name string) {
			key := string(f.Language.Family()) + "|" + name
			if !seen[key] {
				seen[key] = true
				defs[key] = append(defs[key], f.Path)
			}
		}
		for _, fn := range f.AST.Functions {
			add(fn.Name)
		}
		for _, t := range f.AST.Types {
			add(t.Name)
		}
	}

	var edges []rawEdge
	for _, f := range files {
		if f.AST == nil {
			continue
		}
		for _, imp := range f.AST.Imports {
			targets := r.resolve(f.Path, f.Language, imp.Path)
			for _, to := range targets {
				edges = append(edges, rawEdge{from: f.Path, to: to, weight: s.weights.Import / float64(len(targets)), kind: "import"})
			}
		}

		calls := append([]string(nil), f.AST.Calls...)
		for _, fn := range f.AST.Functions {
			calls = append(calls, fn.Calls...)
		}
		for _, call := range calls {
			targets := without(defs[string(f.Language.Family())+"|"+lastSegment(call)], f.Path)
			if len(targets) == 0 || len(targets) > maxCallTargets {
				continue
			}
			for _, to := range targets {
				edges = append(edges, rawEdge{from: f.Path, to: to, weight: s.weights.Call / float64(len(targets)), kind: "call"})
			}
		}
	}
	return edges
}

// functionEdges links functions to the functions their calls name. Nodes
// are "path#Container.Name".
func (s *Stage) functionEdges(files []*analysis.SourceFile) []rawEdge {
	defs := make(map[string][]string)
	for _, f := range files {
		if f.AST == nil {
			continue
		}
		for _, fn := range f.AST.Functions {
			key := string(f.Language.Family()) + "|" + fn.Name
			defs[key] = append(defs[key], FunctionNode(f.Path, fn.QualifiedName()))
		}
	}

	var edges []rawEdge
	for _, f := range files {
		if f.AST == nil {
			continue
		}
		for _, fn := range f.AST.Functions {
			from := FunctionNode(f.Path, fn.QualifiedName())
			for _, call := range fn.Calls {
				targets := without(defs[string(f.Language.Family())+"|"+lastSegment(call)], from)
				if len(targets) == 0 || len(targets) > maxCallTargets {
					continue
				}
				for _, to := range targets {
					edges = append(edges, rawEdge{from: from, to: to, weight: s.weights.Call / float64(len(targets)), kind: "call"})
				}
			}
		}
	}
	return edges
}

// FunctionNode names a function-granularity node.
func FunctionNode(file, qualified string) string {
	return file + "#" + qualified
}

// NodeFile returns the file a node of any granularity belongs to; module
// nodes return themselves.
func NodeFile(node string) string {
	file, _, _ := strings.Cut(node, "#")
	return file
}

// ModuleOf maps a file to its module node.
func ModuleOf(file string) string {
	return scan.Module(file)
}

func toModules(edges []rawEdge) []rawEdge {
	out := make([]rawEdge, 0, len(edges))
	for _, e := range edges {
		from, to := ModuleOf(e.from), ModuleOf(e.to)
		if from != to {
			out = append(out, rawEdge{from: from, to: to, weight: e.weight, kind: e.kind})
		}
	}
	return out
}

// merge sums the weights of parallel edges of the same kind and drops self edges.
func merge(edges []rawEdge) []analysis.DependencyEdge {
	type key struct{ from, to, kind string }
	index := make(map[key]int)
	var out []analysis.DependencyEdge
	for _, e := range edges {
		if e.from == e.to {
			continue
		}
		k := key{e.from, e.to, e.kind}
		if i, ok := index[k]; ok {
			out[i].Weight += e.weight
			continue
		}
		index[k] = len(out)
		out = append(out, analysis.DependencyEdge{From: e.from, To: e.to, Weight: e.weight, Kind: e.kind})
	}
	return out
}

func lastSegment(call string) string {
	if i := strings.LastIndexAny(call, ".:>"); i >= 0 {
		return call[i+1:]
	}
	return call
}
