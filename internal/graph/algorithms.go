package graph

import (
	"sort"
	"strings"
)

// Path is a weighted chain of nodes.
type Path struct {
	Nodes  []string `json:"nodes"`
	Weight float64  `json:"weight"`
}

// Coupling holds a node's degree-based coupling metrics.
type Coupling struct {
	Afferent    int     `json:"afferent"`    // incoming dependencies
	Efferent    int     `json:"efferent"`    // outgoing dependencies
	Instability float64 `json:"instability"` // Ce / (Ca + Ce)
}

// dfs walks the graph depth first from every node in sorted order and
// reports each back edge (u, v) together with the current stack.
func (ix *index) dfs(onBack func(u, v int, stack []int)) {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(ix.nodes))
	var stack []int

	var visit func(u int)
	visit = func(u int) {
		color[u] = grey
		stack = append(stack, u)
		for _, e := range ix.out[u] {
			switch color[e.target] {
			case white:
				visit(e.target)
			case grey:
				onBack(u, e.target, stack)
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
	}
	for u := range ix.nodes {
		if color[u] == white {
			visit(u)
		}
	}
}

// Cycles returns the cycles closed by DFS back edges. Each cycle is
// rotated to start at its smallest node and reported once, so A->B->A
// yields a single [A B].
func (g *Graph) Cycles() [][]string {
	ix := g.index()
	seen := make(map[string]bool)
	var cycles [][]string
	ix.dfs(func(u, v int, stack []int) {
		start := len(stack) - 1
		for start >= 0 && stack[start] != v {
			start--
		}
		if start < 0 {
			return
		}
		members := stack[start:]

		// Node indices follow name order, so the smallest index is the
		// lexically smallest node.
		low := 0
		for i, m := range members {
			if m < members[low] {
				low = i
			}
		}
		cycle := make([]string, 0, len(members))
		for i := range members {
			cycle = append(cycle, ix.nodes[members[(low+i)%len(members)]])
		}
		key := strings.Join(cycle, "\x00")
		if !seen[key] {
			seen[key] = true
			cycles = append(cycles, cycle)
		}
	})

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i]) != len(cycles[j]) {
			return len(cycles[i]) < len(cycles[j])
		}
		return strings.Join(cycles[i], "\x00") < strings.Join(cycles[j], "\x00")
	})
	return cycles
}

// CriticalPaths returns up to k heaviest dependency chains, at most one per
// end node. Back edges are ignored so the remaining graph is acyclic.
func (g *Graph) CriticalPaths(k int) []Path {
	ix := g.index()
	n := len(ix.nodes)
	if n == 0 || k <= 0 {
		return nil
	}

	back := make(map[[2]int]bool)
	ix.dfs(func(u, v int, _ []int) { back[[2]int{u, v}] = true })

	// Kahn's algorithm over the acyclic remainder, smallest index first
	indeg := make([]int, n)
	for u := 0; u < n; u++ {
		for _, e := range ix.out[u] {
			if !back[[2]int{u, e.target}] {
				indeg[e.target]++
			}
		}
	}
	queue := make([]int, 0, n)
	for u := 0; u < n; u++ {
		if indeg[u] == 0 {
			queue = append(queue, u)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		sort.Ints(queue)
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, e := range ix.out[u] {
			if back[[2]int{u, e.target}] {
				continue
			}
			indeg[e.target]--
			if indeg[e.target] == 0 {
				queue = append(queue, e.target)
			}
		}
	}

	dist := make([]float64, n)
	pred := make([]int, n)
	for i := range pred {
		pred[i] = -1
	}
	for _, u := range order {
		for _, e := range ix.out[u] {
			if back[[2]int{u, e.target}] {
				continue
			}
			if d := dist[u] + e.weight; d > dist[e.target] {
				dist[e.target] = d
				pred[e.target] = u
			}
		}
	}

	var ends []int
	for v := 0; v < n; v++ {
		if pred[v] >= 0 {
			ends = append(ends, v)
		}
	}
	sort.Slice(ends, func(i, j int) bool {
		if dist[ends[i]] != dist[ends[j]] {
			return dist[ends[i]] > dist[ends[j]]
		}
		return ends[i] < ends[j]
	})
	if len(ends) > k {
		ends = ends[:k]
	}

	paths := make([]Path, 0, len(ends))
	for _, v := range ends {
		var nodes []string
		for u := v; u >= 0; u = pred[u] {
			nodes = append(nodes, ix.nodes[u])
		}
		for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
			nodes[i], nodes[j] = nodes[j], nodes[i]
		}
		paths = append(paths, Path{Nodes: nodes, Weight: dist[v]})
	}
	return paths
}

// Dependents returns every node that transitively depends on one of the
// given nodes, excluding the nodes themselves. Unknown nodes are ignored.
func (g *Graph) Dependents(nodes []string) []string {
	ix := g.index()
	visited := make([]bool, len(ix.nodes))
	var queue []int
	for _, id := range nodes {
		if i, ok := ix.nodeIdx[id]; ok && !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	seeds := len(queue)

	var found []int
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, e := range ix.in[v] {
			if !visited[e.target] {
				visited[e.target] = true
				found = append(found, e.target)
				queue = append(queue, e.target)
			}
		}
	}
	if seeds == 0 {
		return nil
	}
	sort.Ints(found)
	out := make([]string, len(found))
	for i, v := range found {
		out[i] = ix.nodes[v]
	}
	return out
}

// Coupling returns afferent/efferent coupling for every node.
func (g *Graph) Coupling() map[string]Coupling {
	ix := g.index()
	out := make(map[string]Coupling, len(ix.nodes))
	for i, node := range ix.nodes {
		c := Coupling{Afferent: len(ix.in[i]), Efferent: len(ix.out[i])}
		if total := c.Afferent + c.Efferent; total > 0 {
			c.Instability = float64(c.Efferent) / float64(total)
		}
		out[node] = c
	}
	return out
}
