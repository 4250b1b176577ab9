package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/analysis"
)

func TestCompute_CompositeIsWeightedSum(t *testing.T) {
	files := []FileMetrics{
		{Path: "a.go", Cyclomatic: 25, Commits: 40, Lines: 200, DebtWeight: 2, DuplicatedLines: 50, Symbols: 4, DeadSymbols: 1},
		{Path: "b.go", Cyclomatic: 5, Commits: 2, Lines: 100},
		{Path: "c.go", Cyclomatic: 12, Commits: 9, Lines: 0, DebtWeight: 1},
	}
	w := DefaultWeights()
	require.NoError(t, w.Validate())

	result := Compute(files, w)
	require.Len(t, result.Scores, 3)
	for _, s := range result.Scores {
		c := s.Components
		for _, v := range []float64{c.Complexity, c.Churn, c.Debt, c.Duplication, c.DeadCode} {
			assert.GreaterOrEqual(t, v, 0.0, s.Path)
			assert.LessOrEqual(t, v, 1.0, s.Path)
		}
		want := 0.35*c.Complexity + 0.30*c.Churn + 0.15*c.Debt + 0.10*c.Duplication + 0.10*c.DeadCode
		assert.InDelta(t, want, s.Composite, 1e-12, s.Path)
	}

	a, ok := result.ByPath("a.go")
	require.True(t, ok)
	assert.InDelta(t, 5.0/6.0, a.Components.Complexity, 1e-12)
	assert.InDelta(t, 0.25, a.Components.Duplication, 1e-12)
	assert.InDelta(t, 0.25, a.Components.DeadCode, 1e-12)
	assert.InDelta(t, 0.5, a.Components.Debt, 1e-12) // 1 weighted item per 100 lines
}

func TestCompute_HighComplexityAndChurnRankFirst(t *testing.T) {
	result := Compute([]FileMetrics{
		{Path: "b.go", Cyclomatic: 5, Commits: 2, Lines: 80},
		{Path: "a.go", Cyclomatic: 25, Commits: 40, Lines: 80},
	}, DefaultWeights())

	require.Len(t, result.Scores, 2)
	assert.Equal(t, "a.go", result.Scores[0].Path)
	assert.Greater(t, result.Scores[0].Composite, result.Scores[1].Composite)
	assert.Equal(t, ComponentComplexity, result.Scores[0].Dominant)
	assert.Equal(t, 15.0, result.Complexity.Median)
	assert.Equal(t, 40.0, result.Churn.Max)
}

func TestCompute_TiesOrderedByPath(t *testing.T) {
	result := Compute([]FileMetrics{
		{Path: "z.go", Cyclomatic: 3, Commits: 1},
		{Path: "m.go", Cyclomatic: 3, Commits: 1},
		{Path: "a.go", Cyclomatic: 3, Commits: 1},
	}, DefaultWeights())

	var paths []string
	for _, s := range result.Scores {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{"a.go", "m.go", "z.go"}, paths)
	// Everyone is at the 50th percentile.
	assert.InDelta(t, 0.35*0.5+0.30*0.5, result.Scores[0].Composite, 1e-12)
	assert.Equal(t, LevelMedium, result.Scores[0].Level)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelLow, determineLevel(0.29))
	assert.Equal(t, LevelMedium, determineLevel(0.3))
	assert.Equal(t, LevelMedium, determineLevel(0.69))
	assert.Equal(t, LevelHigh, determineLevel(0.7))
}

func TestWeightsValidate(t *testing.T) {
	assert.Error(t, Weights{Complexity: 0.5, Churn: 0.4}.Validate())
	assert.Error(t, Weights{Complexity: 1.2, Churn: -0.2}.Validate())
	assert.NoError(t, Weights{Complexity: 1}.Validate())
}

func TestDistribution(t *testing.T) {
	d := NewDistribution([]float64{5, 1, 3, 3})
	assert.Equal(t, 4, d.Len())
	assert.InDelta(t, 12.5, d.Percentile(1), 1e-12)
	assert.InDelta(t, 50.0, d.Percentile(3), 1e-12)
	assert.InDelta(t, 100.0, d.Percentile(9), 1e-12)
	assert.Equal(t, 3.0, d.Median())
	assert.Equal(t, 5.0, d.Max())

	require.True(t, d.Replace(3, 10))
	assert.Equal(t, []float64{1, 3, 5, 10}, d.values)
	assert.False(t, d.Replace(42, 0))
	assert.Equal(t, 0.0, NewDistribution(nil).Percentile(1))
}

func TestScorer_UpdateMatchesFullRescore(t *testing.T) {
	files := []FileMetrics{
		{Path: "a.go", Cyclomatic: 10, Commits: 4, Lines: 100},
		{Path: "b.go", Cyclomatic: 2, Commits: 8, Lines: 100},
		{Path: "c.go", Cyclomatic: 7, Commits: 1, Lines: 100},
	}
	scorer := NewScorer(files, DefaultWeights())

	changed := FileMetrics{Path: "b.go", Cyclomatic: 30, Commits: 9, Lines: 140, DebtWeight: 1}
	require.NoError(t, scorer.Update([]FileMetrics{changed}))
	incremental := scorer.Result()

	files[1] = changed
	full := Compute(files, DefaultWeights())
	assert.Equal(t, full, incremental)

	assert.Error(t, scorer.Update([]FileMetrics{{Path: "new.go"}}))
}

func TestCollect(t *testing.T) {
	out := &analysis.Output{
		Complexity: []analysis.ComplexityMetrics{{Path: "a.go", Cyclomatic: 9, Lines: 40}},
		Churn:      []analysis.ChurnMetrics{{Path: "a.go", CommitCount: 3}},
		Debt: []analysis.DebtItem{
			{Path: "a.go", Severity: analysis.SeverityHigh},
			{Path: "a.go", Severity: analysis.SeverityLow},
		},
		DeadCode: []analysis.DeadCodeItem{
			{Path: "a.go", Name: "f", Reachable: true},
			{Path: "a.go", Name: "g"},
		},
		Clones: []analysis.CloneGroup{{
			ID: "clone-1", Type: analysis.CloneExact, Similarity: 1,
			Fragments: []analysis.Fragment{
				{Path: "a.go", StartLine: 1, EndLine: 10},
				{Path: "b.go", StartLine: 5, EndLine: 14},
			},
		}},
	}

	metrics := Collect([]string{"b.go", "a.go", "c.go"}, out)
	require.Len(t, metrics, 3)
	assert.Equal(t, FileMetrics{
		Path: "a.go", Cyclomatic: 9, Commits: 3, Lines: 40,
		DebtWeight: 2.5, DuplicatedLines: 10, Symbols: 2, DeadSymbols: 1,
	}, metrics[0])
	assert.Equal(t, 10, metrics[1].DuplicatedLines)
	assert.Equal(t, FileMetrics{Path: "c.go"}, metrics[2])
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(math.NaN()))
	assert.Equal(t, 1.0, clamp(3))
	assert.Equal(t, 0.0, clamp(-1))
}
