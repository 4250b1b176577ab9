// Package deadcode finds symbols that cannot be reached from any entry point.
package deadcode

import (
	"sort"

	"codescope/internal/analysis"
)

// Category classifies why a symbol is considered dead.
type Category string

const (
	// CategoryZeroRefs means nothing references the symbol.
	CategoryZeroRefs Category = "zero_refs"

	// CategorySelfOnly means only the symbol itself refers to it (recursive but never called).
	CategorySelfOnly Category = "self_only"

	// CategoryTestOnly means only test code references it.
	CategoryTestOnly Category = "test_only"

	// CategoryUnreachable means it is referenced, but only from other dead code.
	CategoryUnreachable Category = "unreachable"
)

// Summary provides aggregate statistics.
type Summary struct {
	// TotalSymbols is all symbols analyzed.
	TotalSymbols int `json:"totalSymbols"`

	// DeadCount is the number of unreachable symbols.
	DeadCount int `json:"deadCount"`

	// ByKind breaks down dead code by symbol kind.
	ByKind map[string]int `json:"byKind"`

	// ByCategory breaks down dead code by category.
	ByCategory map[string]int `json:"byCategory"`

	// EstimatedLines is approximate LOC that could be removed.
	EstimatedLines int `json:"estimatedLines"`
}

// Ratio is the share of unreachable symbols.
func (s Summary) Ratio() float64 {
	if s.TotalSymbols == 0 {
		return 0
	}
	return float64(s.DeadCount) / float64(s.TotalSymbols)
}

// referenceStats counts where the references to one symbol come from.
type referenceStats struct {
	total     int
	fromTests int
	fromSelf  int
}

// Summarize aggregates items, which may span several files.
func Summarize(items []analysis.DeadCodeItem) Summary {
	summary := Summary{
		TotalSymbols: len(items),
		ByKind:       make(map[string]int),
		ByCategory:   make(map[string]int),
	}
	for _, item := range items {
		if item.Reachable {
			continue
		}
		summary.DeadCount++
		summary.ByKind[item.Kind]++
		summary.ByCategory[item.Reason]++

		// Rough estimate: functions ~20 lines, types ~30 lines
		switch item.Kind {
		case "type":
			summary.EstimatedLines += 30
		default:
			summary.EstimatedLines += 20
		}
	}
	return summary
}

// RatioByFile returns the unreachable share for every file with symbols.
func RatioByFile(items []analysis.DeadCodeItem) map[string]float64 {
	byFile := make(map[string][]analysis.DeadCodeItem)
	for _, item := range items {
		byFile[item.Path] = append(byFile[item.Path], item)
	}
	out := make(map[string]float64, len(byFile))
	for path, list := range byFile {
		out[path] = Summarize(list).Ratio()
	}
	return out
}

// Dead returns the unreachable items in path, line order.
func Dead(items []analysis.DeadCodeItem) []analysis.DeadCodeItem {
	var out []analysis.DeadCodeItem
	for _, item := range items {
		if !item.Reachable {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out
}
