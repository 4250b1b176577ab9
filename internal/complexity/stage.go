package complexity

import (
	"context"

	"codescope/internal/analysis"
)

// Stage emits one ComplexityMetrics per file.
type Stage struct{}

// NewStage creates the complexity stage.
func NewStage() *Stage {
	return &Stage{}
}

func (s *Stage) ID() analysis.StageID  { return analysis.StageComplexity }
func (s *Stage) Scope() analysis.Scope { return analysis.ScopePerFile }

// Run aggregates every file of the partition.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	out := &analysis.Output{Complexity: make([]analysis.ComplexityMetrics, 0, len(in.Files))}
	for _, f := range in.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.AST == nil {
			continue
		}
		out.Complexity = append(out.Complexity, Aggregate(f.AST))
	}
	return out, nil
}
