package graph

import (
	"context"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/iter"
)

// PageRankOptions configures the centrality computation.
type PageRankOptions struct {
	Damping       float64 // Damping factor (typically 0.85)
	MaxIterations int     // Maximum iterations
	Tolerance     float64 // L1 convergence threshold
	Workers       int     // Parallel workers; results do not depend on it
}

// DefaultPageRankOptions returns sensible defaults.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-9,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// PageRankResult holds the scores and convergence details.
type PageRankResult struct {
	Scores     map[string]float64 `json:"scores"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	Delta      float64            `json:"delta"`
}

// chunkSize is the number of nodes one worker updates per task.
const chunkSize = 256

// PageRank computes weighted PageRank by power iteration. Mass held by nodes
// without outgoing edges is spread uniformly. The scores sum to 1.
//
// Each node's new score only reads the previous vector and sums its
// in-edges in a fixed order, so the result is identical for any worker
// count.
func (g *Graph) PageRank(ctx context.Context, opts PageRankOptions) (*PageRankResult, error) {
	def := DefaultPageRankOptions()
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = def.Damping
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}

	ix := g.index()
	n := len(ix.nodes)
	result := &PageRankResult{Scores: make(map[string]float64, n), Converged: true}
	if n == 0 {
		return result, nil
	}

	// Initialize scores uniformly
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}
	next := make([]float64, n)

	var chunks [][2]int
	for lo := 0; lo < n; lo += chunkSize {
		chunks = append(chunks, [2]int{lo, min(lo+chunkSize, n)})
	}
	workers := iter.Iterator[[2]int]{MaxGoroutines: opts.Workers}

	d := opts.Damping
	base := (1 - d) / float64(n)
	result.Converged = false
	for it := 0; it < opts.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var dangling float64
		for i := 0; i < n; i++ {
			if ix.outWeight[i] == 0 {
				dangling += scores[i]
			}
		}
		teleport := base + d*dangling/float64(n)

		workers.ForEach(chunks, func(c *[2]int) {
			for j := c[0]; j < c[1]; j++ {
				var sum float64
				for _, e := range ix.in[j] {
					sum += scores[e.target] * e.weight / ix.outWeight[e.target]
				}
				next[j] = teleport + d*sum
			}
		})

		var delta float64
		for i := 0; i < n; i++ {
			delta += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores
		result.Iterations = it + 1
		result.Delta = delta
		if delta < opts.Tolerance {
			result.Converged = true
			break
		}
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	for i, node := range ix.nodes {
		result.Scores[node] = scores[i] / total
	}
	return result, nil
}
