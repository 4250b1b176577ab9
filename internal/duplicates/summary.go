package duplicates

import (
	"math"
	"sort"

	"codescope/internal/analysis"
)

// Summary describes the clone groups of a run.
type Summary struct {
	Groups         int `json:"groups"`
	Fragments      int `json:"fragments"`
	DuplicateLines int `json:"duplicateLines"`
	LargestGroup   int `json:"largestGroup"`
}

// Hotspot is a file that takes part in many clones.
type Hotspot struct {
	Path           string  `json:"path"`
	DuplicateLines int     `json:"duplicateLines"`
	Groups         int     `json:"groups"`
	Severity       float64 `json:"severity"`
}

// LinesByFile counts the distinct duplicated lines of every file; nested or
// overlapping fragments are counted once.
func LinesByFile(groups []analysis.CloneGroup) map[string]int {
	spans := make(map[string][][2]int)
	for _, g := range groups {
		for _, f := range g.Fragments {
			spans[f.Path] = append(spans[f.Path], [2]int{f.StartLine, f.EndLine})
		}
	}
	out := make(map[string]int, len(spans))
	for path, list := range spans {
		sort.Slice(list, func(i, j int) bool { return list[i][0] < list[j][0] })
		total, end := 0, 0
		for _, s := range list {
			start := max(s[0], end+1)
			if s[1] >= start {
				total += s[1] - start + 1
				end = s[1]
			}
		}
		out[path] = total
	}
	return out
}

// Summarize aggregates groups.
func Summarize(groups []analysis.CloneGroup) Summary {
	s := Summary{Groups: len(groups)}
	for _, g := range groups {
		s.Fragments += len(g.Fragments)
		s.LargestGroup = max(s.LargestGroup, len(g.Fragments))
	}
	for _, n := range LinesByFile(groups) {
		s.DuplicateLines += n
	}
	return s
}

// Hotspots ranks files by ln(duplicate lines) times the square root of the
// number of groups they appear in, keeping the top limit.
func Hotspots(groups []analysis.CloneGroup, limit int) []Hotspot {
	counts := make(map[string]int)
	for _, g := range groups {
		inGroup := make(map[string]bool)
		for _, f := range g.Fragments {
			if !inGroup[f.Path] {
				inGroup[f.Path] = true
				counts[f.Path]++
			}
		}
	}

	var out []Hotspot
	for path, lines := range LinesByFile(groups) {
		out = append(out, Hotspot{
			Path:           path,
			DuplicateLines: lines,
			Groups:         counts[path],
			Severity:       math.Max(math.Log(float64(lines)), 1) * math.Sqrt(float64(counts[path])),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].Path < out[j].Path
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
