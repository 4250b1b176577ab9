package compression

import (
	"math"
	"sort"
)

const (
	idfWeight   = 0.25
	debtPenalty = 0.8
)

// Context is the project-wide information relevance depends on.
type Context struct {
	// Centrality per file path, summing to 1.
	Centrality map[string]float64
	// DocFreq counts the files mentioning each identifier.
	DocFreq map[string]int
	// Files is the number of files in the project.
	Files int
	// Indebted holds the IDs of items carrying unresolved debt of medium
	// severity or worse.
	Indebted map[string]bool
}

// DocumentFrequency counts, for every term, the files that mention it.
// terms maps each file to the identifiers it defines or uses.
func DocumentFrequency(terms map[string][]string) map[string]int {
	df := make(map[string]int)
	for _, list := range terms {
		seen := make(map[string]bool, len(list))
		for _, term := range list {
			if term != "" && !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}
	return df
}

// Score computes the relevance of every item in place:
// base * (1 + centrality) plus an IDF bonus for rare identifiers, reduced
// when the item carries unresolved debt.
func Score(items []Item, ctx Context) {
	for i := range items {
		it := &items[i]
		score := BaseScore(it.Kind, it.Cyclomatic) * (1 + ctx.Centrality[it.Path])
		if it.Term != "" {
			score += idfWeight * math.Log(float64(1+ctx.Files)/float64(1+ctx.DocFreq[it.Term]))
		}
		if ctx.Indebted[it.ID] {
			score *= debtPenalty
		}
		it.Score = score
		it.EstimateSize()
	}
}

// SortByScore orders items by score descending, ties by ID.
func SortByScore(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}
