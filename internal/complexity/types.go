// Package complexity provides the per-file complexity stage. The metrics
// themselves are computed during AST extraction; this stage aggregates them.
package complexity

import (
	"codescope/internal/analysis"
	"codescope/internal/ast"
)

// Aggregate computes the file metrics from its functions.
func Aggregate(file *ast.File) analysis.ComplexityMetrics {
	m := analysis.ComplexityMetrics{Path: file.Path, Lines: file.Lines}
	for _, fn := range file.Functions {
		m.Cyclomatic += fn.Cyclomatic
		m.Cognitive += fn.Cognitive

		if fn.Cyclomatic > m.MaxCyclomatic {
			m.MaxCyclomatic = fn.Cyclomatic
		}
		if fn.Params > m.Parameters {
			m.Parameters = fn.Params
		}
		if fn.MaxNesting > m.Nesting {
			m.Nesting = fn.MaxNesting
		}

		m.Functions = append(m.Functions, analysis.FunctionComplexity{
			Name:       fn.QualifiedName(),
			Line:       fn.StartLine,
			Cyclomatic: fn.Cyclomatic,
			Cognitive:  fn.Cognitive,
			Lines:      fn.Lines(),
			Parameters: fn.Params,
			Nesting:    fn.MaxNesting,
			Exported:   fn.Exported,
		})
	}
	return m
}

// Average returns the mean cyclomatic complexity per function, 0 for none.
func Average(m analysis.ComplexityMetrics) float64 {
	if len(m.Functions) == 0 {
		return 0
	}
	return float64(m.Cyclomatic) / float64(len(m.Functions))
}
