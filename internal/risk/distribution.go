package risk

import "sort"

// Distribution is a sorted population of metric values. Lookups are
// O(log n) and a single value can be replaced in place, which lets an
// incremental update re-read percentiles without rebuilding.
type Distribution struct {
	values []float64
}

// NewDistribution copies and sorts values.
func NewDistribution(values []float64) *Distribution {
	d := &Distribution{values: append([]float64(nil), values...)}
	sort.Float64s(d.values)
	return d
}

// Len returns the population size.
func (d *Distribution) Len() int {
	return len(d.values)
}

// Percentile returns (below + 0.5*equal) / n * 100 for v.
func (d *Distribution) Percentile(v float64) float64 {
	n := len(d.values)
	if n == 0 {
		return 0
	}
	below := sort.SearchFloat64s(d.values, v)
	upTo := sort.Search(n, func(i int) bool { return d.values[i] > v })
	equal := upTo - below
	return (float64(below) + 0.5*float64(equal)) / float64(n) * 100
}

// Replace swaps one occurrence of old for updated and keeps the order.
// It reports false when old is not in the population.
func (d *Distribution) Replace(old, updated float64) bool {
	i := sort.SearchFloat64s(d.values, old)
	if i >= len(d.values) || d.values[i] != old {
		return false
	}
	d.values = append(d.values[:i], d.values[i+1:]...)
	j := sort.SearchFloat64s(d.values, updated)
	d.values = append(d.values, 0)
	copy(d.values[j+1:], d.values[j:])
	d.values[j] = updated
	return true
}

// Median returns the middle value, averaging the two central ones.
func (d *Distribution) Median() float64 {
	n := len(d.values)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return d.values[n/2]
	default:
		return (d.values[n/2-1] + d.values[n/2]) / 2
	}
}

// Max returns the largest value.
func (d *Distribution) Max() float64 {
	if len(d.values) == 0 {
		return 0
	}
	return d.values[len(d.values)-1]
}
