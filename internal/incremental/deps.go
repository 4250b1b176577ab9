package incremental

import (
	"sort"
	"strings"

	"codescope/internal/analysis"
	"codescope/internal/depgraph"
	"codescope/internal/graph"
)

// dependentFiles returns the files that transitively depend on any of
// changed in the graph described by edges. Nodes of every granularity are
// folded back onto files; module nodes expand to all of their files.
// changed itself is not part of the result.
func dependentFiles(edges []analysis.DependencyEdge, changed []string, files []string) []string {
	if len(edges) == 0 || len(changed) == 0 {
		return nil
	}

	g := graph.FromEdges(nil, toGraphEdges(edges))
	changedSet := toSet(changed)

	var seeds []string
	for _, node := range g.Nodes() {
		if changedSet[depgraph.NodeFile(node)] {
			seeds = append(seeds, node)
		}
	}
	for _, f := range changed {
		if m := depgraph.ModuleOf(f); g.HasNode(m) {
			seeds = append(seeds, m)
		}
	}

	members := make(map[string][]string)
	known := toSet(files)
	for _, f := range files {
		m := depgraph.ModuleOf(f)
		members[m] = append(members[m], f)
	}

	found := make(map[string]bool)
	for _, node := range g.Dependents(seeds) {
		switch {
		case strings.Contains(node, "#"), known[node]:
			found[depgraph.NodeFile(node)] = true
		default:
			for _, f := range members[node] {
				found[f] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for f := range found {
		if known[f] && !changedSet[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func toGraphEdges(edges []analysis.DependencyEdge) []graph.Edge {
	out := make([]graph.Edge, len(edges))
	for i, e := range edges {
		out[i] = graph.Edge{From: e.From, To: e.To, Weight: e.Weight, Kind: e.Kind}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// union returns the sorted, de-duplicated concatenation of lists.
func union(lists ...[]string) []string {
	set := make(map[string]bool)
	for _, l := range lists {
		for _, s := range l {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
