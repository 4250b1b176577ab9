package risk

import (
	"sort"

	"codescope/internal/analysis"
	"codescope/internal/duplicates"
)

// Collect derives the raw metrics of every path from merged stage output.
// Paths without results get zero metrics so the population is the full
// file set.
func Collect(paths []string, out *analysis.Output) []FileMetrics {
	byPath := make(map[string]*FileMetrics, len(paths))
	metrics := make([]FileMetrics, len(paths))
	for i, p := range paths {
		metrics[i].Path = p
		byPath[p] = &metrics[i]
	}
	if out == nil {
		return metrics
	}

	for _, c := range out.Complexity {
		if m := byPath[c.Path]; m != nil {
			m.Cyclomatic = c.Cyclomatic
			m.Lines = c.Lines
		}
	}
	for _, c := range out.Churn {
		if m := byPath[c.Path]; m != nil {
			m.Commits = c.CommitCount
		}
	}
	for _, d := range out.Debt {
		if m := byPath[d.Path]; m != nil {
			m.DebtWeight += d.Severity.Weight()
		}
	}
	for _, d := range out.DeadCode {
		if m := byPath[d.Path]; m != nil {
			m.Symbols++
			if !d.Reachable {
				m.DeadSymbols++
			}
		}
	}
	for path, lines := range duplicates.LinesByFile(out.Clones) {
		if m := byPath[path]; m != nil {
			m.DuplicatedLines = lines
		}
	}

	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Path < metrics[j].Path })
	return metrics
}
