package compression

// Pruned is the selected subset of items, in score order.
type Pruned struct {
	Items      []Item              `json:"items"`
	UsedBytes  int                 `json:"usedBytes"`
	Budget     int                 `json:"budget"`
	Truncation *TruncationInfo     `json:"truncation,omitempty"`
	Metrics    *CompressionMetrics `json:"metrics"`
}

// ByContainer groups the selected non-container items under their
// container ID, in score order.
func (p *Pruned) ByContainer() map[string][]Item {
	out := make(map[string][]Item)
	for _, it := range p.Items {
		if !it.IsContainer() {
			out[it.Container] = append(out[it.Container], it)
		}
	}
	return out
}

// Has reports whether an item with id was selected.
func (p *Pruned) Has(id string) bool {
	for _, it := range p.Items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Prune selects items greedily by score against the budget. An item's cost
// includes its container when the container is not yet accepted, and a
// final pass drops any item whose ancestors are missing. Items must already
// be scored.
func Prune(items []Item, budget Budget) *Pruned {
	items = DeduplicateItems(items)
	sorted := make([]Item, len(items))
	copy(sorted, items)
	SortByScore(sorted)

	byID := make(map[string]int, len(sorted))
	inputBytes := 0
	for i := range sorted {
		sorted[i].EstimateSize()
		sorted[i].Selected = false
		byID[sorted[i].ID] = i
		inputBytes += sorted[i].Size
	}

	used := 0
	accept := func(i int) bool {
		chain := ancestors(sorted, byID, i)
		if chain == nil {
			return false
		}
		cost := 0
		for _, j := range chain {
			if !sorted[j].Selected {
				cost += sorted[j].Size
			}
		}
		if !budget.Unlimited() && used+cost > budget.MaxBytes {
			return false
		}
		for _, j := range chain {
			sorted[j].Selected = true
		}
		used += cost
		return true
	}

	for i := range sorted {
		if !sorted[i].Selected {
			accept(i)
		}
	}

	// Post-pass: an item never appears without its ancestors.
	for i := range sorted {
		if !sorted[i].Selected {
			continue
		}
		for _, j := range ancestors(sorted, byID, i) {
			if !sorted[j].Selected {
				sorted[i].Selected = false
				used -= sorted[i].Size
				break
			}
		}
	}

	result := &Pruned{Budget: budget.MaxBytes, UsedBytes: used}
	dropped := 0
	for _, it := range sorted {
		if it.Selected {
			result.Items = append(result.Items, it)
		} else {
			dropped++
		}
	}

	result.Metrics = ComputeMetrics(len(sorted), len(result.Items), inputBytes, used, nil)
	if dropped > 0 {
		result.Truncation = NewTruncationInfo(TruncBudget, len(sorted), len(result.Items))
		result.Truncation.DroppedKinds = droppedKinds(sorted)
		result.Metrics.AddTruncation(result.Truncation)
	}
	return result
}

// ancestors returns i followed by its container chain, or nil when a
// container is unknown or the chain loops.
func ancestors(items []Item, byID map[string]int, i int) []int {
	chain := []int{i}
	seen := map[int]bool{i: true}
	for c := items[i].Container; c != ""; {
		j, ok := byID[c]
		if !ok || seen[j] {
			return nil
		}
		seen[j] = true
		chain = append(chain, j)
		c = items[j].Container
	}
	return chain
}

func droppedKinds(items []Item) map[Kind]int {
	out := make(map[Kind]int)
	for _, it := range items {
		if !it.Selected {
			out[it.Kind]++
		}
	}
	return out
}
