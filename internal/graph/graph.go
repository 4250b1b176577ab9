// Package graph provides the dependency graph and the algorithms run over
// it: centrality, cycles, critical paths and impact sets.
package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Edge represents a directed, weighted dependency.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
	Kind   string  `json:"kind"` // import, call or reference
}

// Graph is a sparse directed graph. Parallel edges are merged with summed
// weights and self edges are dropped, so the structure only depends on the
// set of edges added, never on their order.
type Graph struct {
	nodeSet map[string]bool
	weights map[string]map[string]float64 // from -> to -> weight
	kinds   map[string]map[string]string  // from -> to -> kind

	frozen *index
}

// index is the immutable, sorted view the algorithms run on.
type index struct {
	nodes     []string
	nodeIdx   map[string]int
	out       [][]edgeEntry // sorted by target
	in        [][]edgeEntry // sorted by source
	outWeight []float64
}

type edgeEntry struct {
	target int
	weight float64
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodeSet: make(map[string]bool),
		weights: make(map[string]map[string]float64),
		kinds:   make(map[string]map[string]string),
	}
}

// FromEdges builds a graph holding nodes plus every edge endpoint.
func FromEdges(nodes []string, edges []Edge) *Graph {
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}
	g.AddEdges(edges)
	return g
}

// AddNode adds a node if it doesn't exist.
func (g *Graph) AddNode(id string) {
	if !g.nodeSet[id] {
		g.nodeSet[id] = true
		g.frozen = nil
	}
}

// AddEdge adds a directed edge, summing its weight into an existing one.
// The kind of the first edge between two nodes wins.
func (g *Graph) AddEdge(from, to string, weight float64, kind string) {
	g.AddNode(from)
	g.AddNode(to)
	if from == to {
		return
	}
	if g.weights[from] == nil {
		g.weights[from] = make(map[string]float64)
		g.kinds[from] = make(map[string]string)
	}
	if _, ok := g.weights[from][to]; !ok {
		g.kinds[from][to] = kind
	}
	g.weights[from][to] += weight
	g.frozen = nil
}

// AddEdges adds multiple edges at once.
func (g *Graph) AddEdges(edges []Edge) {
	for _, e := range edges {
		g.AddEdge(e.From, e.To, e.Weight, e.Kind)
	}
}

func (g *Graph) index() *index {
	if g.frozen != nil {
		return g.frozen
	}
	ix := &index{nodes: make([]string, 0, len(g.nodeSet)), nodeIdx: make(map[string]int, len(g.nodeSet))}
	for n := range g.nodeSet {
		ix.nodes = append(ix.nodes, n)
	}
	sort.Strings(ix.nodes)
	for i, n := range ix.nodes {
		ix.nodeIdx[n] = i
	}

	ix.out = make([][]edgeEntry, len(ix.nodes))
	ix.in = make([][]edgeEntry, len(ix.nodes))
	ix.outWeight = make([]float64, len(ix.nodes))
	for i, from := range ix.nodes {
		for to, w := range g.weights[from] {
			j := ix.nodeIdx[to]
			ix.out[i] = append(ix.out[i], edgeEntry{target: j, weight: w})
			ix.in[j] = append(ix.in[j], edgeEntry{target: i, weight: w})
			ix.outWeight[i] += w
		}
	}
	for i := range ix.nodes {
		sortEntries(ix.out[i])
		sortEntries(ix.in[i])
	}
	// Recompute out weights in sorted order so the sum is order independent
	for i := range ix.nodes {
		ix.outWeight[i] = 0
		for _, e := range ix.out[i] {
			ix.outWeight[i] += e.weight
		}
	}
	g.frozen = ix
	return ix
}

func sortEntries(entries []edgeEntry) {
	sort.Slice(entries, func(a, b int) bool { return entries[a].target < entries[b].target })
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodeSet)
}

// NumEdges returns the number of merged edges.
func (g *Graph) NumEdges() int {
	total := 0
	for _, m := range g.weights {
		total += len(m)
	}
	return total
}

// Nodes returns all node IDs in sorted order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.index().nodes...)
}

// Edges returns the merged edges sorted by (from, to).
func (g *Graph) Edges() []Edge {
	ix := g.index()
	var out []Edge
	for i, from := range ix.nodes {
		for _, e := range ix.out[i] {
			to := ix.nodes[e.target]
			out = append(out, Edge{From: from, To: to, Weight: e.weight, Kind: g.kinds[from][to]})
		}
	}
	return out
}

// HasNode checks if a node exists in the graph.
func (g *Graph) HasNode(id string) bool {
	return g.nodeSet[id]
}

// TopologyHash fingerprints the sorted node and edge lists. Two graphs with
// the same hash have the same structure and weights.
func (g *Graph) TopologyHash() string {
	ix := g.index()
	h := xxh3.New()
	for _, n := range ix.nodes {
		h.WriteString(n)
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for i, from := range ix.nodes {
		for _, e := range ix.out[i] {
			h.WriteString(from)
			h.Write([]byte{0})
			h.WriteString(ix.nodes[e.target])
			h.Write([]byte{0})
			h.WriteString(strconv.FormatFloat(e.weight, 'g', -1, 64))
			h.Write([]byte{0})
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
