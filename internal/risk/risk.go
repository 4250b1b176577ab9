// Package risk combines per-file metrics into a composite defect-risk score.
package risk

import (
	"fmt"
	"math"
	"sort"
)

// Level represents the risk level of a file
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Component names, also used to pick the recommendation.
const (
	ComponentComplexity  = "complexity"
	ComponentChurn       = "churn"
	ComponentDebt        = "debt"
	ComponentDuplication = "duplication"
	ComponentDeadCode    = "deadcode"
)

// Weights of the five components. They must sum to 1.
type Weights struct {
	Complexity  float64 `json:"complexity"`
	Churn       float64 `json:"churn"`
	Debt        float64 `json:"debt"`
	Duplication float64 `json:"duplication"`
	DeadCode    float64 `json:"deadCode"`
}

// DefaultWeights favour complexity and churn, the strongest defect predictors.
func DefaultWeights() Weights {
	return Weights{Complexity: 0.35, Churn: 0.30, Debt: 0.15, Duplication: 0.10, DeadCode: 0.10}
}

// Validate checks the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	sum := 0.0
	for _, v := range []float64{w.Complexity, w.Churn, w.Debt, w.Duplication, w.DeadCode} {
		if v < 0 {
			return fmt.Errorf("risk weight %v is negative", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("risk weights sum to %v, want 1", sum)
	}
	return nil
}

// FileMetrics is the raw input for one file.
type FileMetrics struct {
	Path string `json:"path"`
	// Cyclomatic is the file's total cyclomatic complexity.
	Cyclomatic int `json:"cyclomatic"`
	Commits    int `json:"commits"`
	Lines      int `json:"lines"`
	// DebtWeight is the severity-weighted count of debt items.
	DebtWeight      float64 `json:"debtWeight"`
	DuplicatedLines int     `json:"duplicatedLines"`
	Symbols         int     `json:"symbols"`
	DeadSymbols     int     `json:"deadSymbols"`
}

// Components are the normalized inputs of the composite, each in [0,1].
type Components struct {
	Complexity  float64 `json:"complexity"`
	Churn       float64 `json:"churn"`
	Debt        float64 `json:"debt"`
	Duplication float64 `json:"duplication"`
	DeadCode    float64 `json:"deadCode"`
}

// Score is the assessment of one file.
type Score struct {
	Path           string     `json:"path"`
	Composite      float64    `json:"composite"`
	Level          Level      `json:"level"`
	Components     Components `json:"components"`
	Dominant       string     `json:"dominant,omitempty"`
	Recommendation string     `json:"recommendation"`
}

// Stats summarises one raw distribution.
type Stats struct {
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Result holds every score, sorted by composite descending then path.
type Result struct {
	Scores     []Score `json:"scores"`
	Complexity Stats   `json:"complexity"`
	Churn      Stats   `json:"churn"`
	Weights    Weights `json:"weights"`
}

// ByPath returns the score for path.
func (r *Result) ByPath(path string) (Score, bool) {
	for _, s := range r.Scores {
		if s.Path == path {
			return s, true
		}
	}
	return Score{}, false
}

// Compute scores every file against the whole population.
func Compute(files []FileMetrics, w Weights) *Result {
	return NewScorer(files, w).Result()
}

// Scorer keeps the sorted distributions so that changed metrics can be
// applied without rebuilding them.
type Scorer struct {
	weights    Weights
	metrics    map[string]FileMetrics
	complexity *Distribution
	churn      *Distribution
}

// NewScorer builds the distributions for files.
func NewScorer(files []FileMetrics, w Weights) *Scorer {
	s := &Scorer{weights: w, metrics: make(map[string]FileMetrics, len(files))}
	cc := make([]float64, 0, len(files))
	commits := make([]float64, 0, len(files))
	for _, f := range files {
		s.metrics[f.Path] = f
		cc = append(cc, float64(f.Cyclomatic))
		commits = append(commits, float64(f.Commits))
	}
	s.complexity = NewDistribution(cc)
	s.churn = NewDistribution(commits)
	return s
}

// Update replaces the metrics of files already in the population. A path
// the scorer has never seen is an error: the file set changed and the
// caller must rescore from scratch.
func (s *Scorer) Update(changed []FileMetrics) error {
	for _, f := range changed {
		old, ok := s.metrics[f.Path]
		if !ok {
			return fmt.Errorf("risk: %s is not in the scored population", f.Path)
		}
		s.complexity.Replace(float64(old.Cyclomatic), float64(f.Cyclomatic))
		s.churn.Replace(float64(old.Commits), float64(f.Commits))
		s.metrics[f.Path] = f
	}
	return nil
}

// Result re-reads every percentile and returns the sorted scores.
func (s *Scorer) Result() *Result {
	result := &Result{
		Scores:     make([]Score, 0, len(s.metrics)),
		Complexity: Stats{Median: s.complexity.Median(), Max: s.complexity.Max()},
		Churn:      Stats{Median: s.churn.Median(), Max: s.churn.Max()},
		Weights:    s.weights,
	}
	for _, f := range s.metrics {
		c := Components{
			Complexity:  clamp(s.complexity.Percentile(float64(f.Cyclomatic)) / 100),
			Churn:       clamp(s.churn.Percentile(float64(f.Commits)) / 100),
			Debt:        debtDensity(f),
			Duplication: ratio(float64(f.DuplicatedLines), float64(f.Lines)),
			DeadCode:    ratio(float64(f.DeadSymbols), float64(f.Symbols)),
		}
		composite := clamp(s.weights.Complexity*c.Complexity +
			s.weights.Churn*c.Churn +
			s.weights.Debt*c.Debt +
			s.weights.Duplication*c.Duplication +
			s.weights.DeadCode*c.DeadCode)
		dominant := s.dominant(c)
		result.Scores = append(result.Scores, Score{
			Path:           f.Path,
			Composite:      composite,
			Level:          determineLevel(composite),
			Components:     c,
			Dominant:       dominant,
			Recommendation: recommend(dominant, f, c),
		})
	}

	sort.Slice(result.Scores, func(i, j int) bool {
		a, b := result.Scores[i], result.Scores[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		return a.Path < b.Path
	})
	return result
}

// debtDensity squashes severity-weighted items per 100 lines into [0,1).
func debtDensity(f FileMetrics) float64 {
	lines := math.Max(float64(f.Lines), 1)
	x := f.DebtWeight * 100 / lines
	return clamp(x / (x + 1))
}

func ratio(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return clamp(part / whole)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// determineLevel converts the composite to a level
func determineLevel(score float64) Level {
	if score >= 0.7 {
		return LevelHigh
	}
	if score >= 0.3 {
		return LevelMedium
	}
	return LevelLow
}

// dominant returns the component with the largest weighted contribution.
// Earlier components win ties.
func (s *Scorer) dominant(c Components) string {
	contributions := []struct {
		name  string
		value float64
	}{
		{ComponentComplexity, s.weights.Complexity * c.Complexity},
		{ComponentChurn, s.weights.Churn * c.Churn},
		{ComponentDebt, s.weights.Debt * c.Debt},
		{ComponentDuplication, s.weights.Duplication * c.Duplication},
		{ComponentDeadCode, s.weights.DeadCode * c.DeadCode},
	}
	best := contributions[0]
	for _, c := range contributions[1:] {
		if c.value > best.value {
			best = c
		}
	}
	if best.value == 0 {
		return ""
	}
	return best.name
}

func recommend(dominant string, f FileMetrics, c Components) string {
	switch dominant {
	case ComponentComplexity:
		return fmt.Sprintf("Split complex functions: total cyclomatic complexity %d is above %.0f%% of files.", f.Cyclomatic, c.Complexity*100)
	case ComponentChurn:
		return fmt.Sprintf("Stabilize with tests: %d commits in the analysis window.", f.Commits)
	case ComponentDebt:
		return fmt.Sprintf("Resolve the self-admitted debt comments (weighted %.1f).", f.DebtWeight)
	case ComponentDuplication:
		return fmt.Sprintf("Extract shared code: %d of %d lines are duplicated.", f.DuplicatedLines, f.Lines)
	case ComponentDeadCode:
		return fmt.Sprintf("Remove unreachable symbols: %d of %d are dead.", f.DeadSymbols, f.Symbols)
	default:
		return "No action needed."
	}
}
