package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Mermaid renders the limit highest-scoring nodes and the edges between
// them as a Mermaid flowchart. A non-positive limit renders every node.
func (g *Graph) Mermaid(scores map[string]float64, limit int) string {
	ix := g.index()
	nodes := append([]string(nil), ix.nodes...)
	sort.SliceStable(nodes, func(i, j int) bool {
		return scores[nodes[i]] > scores[nodes[j]]
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	sort.Strings(nodes)

	ids := make(map[string]string, len(nodes))
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for i, node := range nodes {
		ids[node] = fmt.Sprintf("n%d", i)
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", ids[node], escapeLabel(node))
	}
	for _, e := range g.Edges() {
		from, okFrom := ids[e.From]
		to, okTo := ids[e.To]
		switch {
		case !okFrom || !okTo:
		case e.Kind == "":
			fmt.Fprintf(&b, "  %s --> %s\n", from, to)
		default:
			fmt.Fprintf(&b, "  %s -->|%s| %s\n", from, e.Kind, to)
		}
	}
	return b.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
