// Package analysis defines the stage contract and the result variants that
// stages produce. Every result names the file it belongs to.
package analysis

// ComplexityMetrics aggregates the functions of one file.
type ComplexityMetrics struct {
	Path string `json:"path"`
	// Cyclomatic is the sum over all functions; MaxCyclomatic the worst one.
	Cyclomatic    int                  `json:"cyclomatic"`
	MaxCyclomatic int                  `json:"maxCyclomatic"`
	Cognitive     int                  `json:"cognitive"`
	Lines         int                  `json:"lines"`
	Parameters    int                  `json:"parameters"`
	Nesting       int                  `json:"nesting"`
	Functions     []FunctionComplexity `json:"functions,omitempty"`
}

// FunctionComplexity is the per-function breakdown.
type FunctionComplexity struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	Cyclomatic int    `json:"cyclomatic"`
	Cognitive  int    `json:"cognitive"`
	Lines      int    `json:"lines"`
	Parameters int    `json:"parameters"`
	Nesting    int    `json:"nesting"`
	Exported   bool   `json:"exported,omitempty"`
}

// ChurnMetrics summarises the change history of one file.
type ChurnMetrics struct {
	Path        string `json:"path"`
	CommitCount int    `json:"commitCount"`
	Authors     int    `json:"authors"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	// ChurnScore in [0,1], relative to the busiest file of the project.
	ChurnScore float64 `json:"churnScore"`
}

// Severity grades a debt item.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3, SeverityCritical: 4}

var severityByRank = []Severity{SeverityLow, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank orders severities from 1 (low) to 4 (critical).
func (s Severity) Rank() int {
	return severityRank[s]
}

// Escalate moves one level up, saturating at critical.
func (s Severity) Escalate() Severity {
	return severityByRank[min(s.Rank()+1, 4)]
}

// Reduce moves one level down, saturating at low.
func (s Severity) Reduce() Severity {
	return severityByRank[max(s.Rank()-1, 1)]
}

// Weight is the contribution of one item to debt density.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0.5
	}
}

// DebtItem is one self-admitted technical debt comment.
type DebtItem struct {
	Path     string   `json:"path"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Text     string   `json:"text"`
	// Function is the enclosing function, if any.
	Function string `json:"function,omitempty"`
}

// DeadCodeItem records the reachability of one symbol.
type DeadCodeItem struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"` // function, method or type
	Name      string `json:"name"`
	Line      int    `json:"line"`
	Reachable bool   `json:"reachable"`
	// Reason categorises unreachable symbols: zero_refs, self_only, test_only, unreachable.
	Reason string `json:"reason,omitempty"`
}

// CloneType follows the usual clone taxonomy.
type CloneType int

const (
	CloneExact    CloneType = 1 // identical tokens
	CloneRenamed  CloneType = 2 // identical after identifier/literal normalization
	CloneGapped   CloneType = 3 // similar token shingles
	CloneSemantic CloneType = 4 // reserved; not detected
)

// Fragment is one occurrence of a clone.
type Fragment struct {
	Path      string `json:"path"`
	Function  string `json:"function,omitempty"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Tokens    int    `json:"tokens"`
}

// Lines is the fragment span.
func (f Fragment) Lines() int {
	return f.EndLine - f.StartLine + 1
}

// CloneGroup is a set of mutually similar fragments.
type CloneGroup struct {
	ID         string     `json:"id"`
	Type       CloneType  `json:"type"`
	Similarity float64    `json:"similarity"`
	Fragments  []Fragment `json:"fragments"`
}

// DependencyEdge is a weighted "uses" relation between two graph nodes.
type DependencyEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
	Kind   string  `json:"kind"` // import, call or reference
}
