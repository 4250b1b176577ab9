package churn

import (
	"context"
	"fmt"

	"codescope/internal/analysis"
)

// Fallback approximates churn from modification times: a file touched
// inside the window counts as one change.
func (s *Stage) Fallback(ctx context.Context, in *analysis.Input, cause error) (*analysis.Output, error) {
	since := windowStart(in)
	stats := make(map[string]*fileStats)
	for _, f := range in.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.ModTime.After(since) {
			stats[f.Path] = &fileStats{commits: 1, authors: map[string]bool{}}
		}
	}
	return &analysis.Output{
		Churn: buildMetrics(in.Files, stats),
		Notes: []string{fmt.Sprintf("churn: history unavailable (%v); estimated from file modification times", cause)},
	}, nil
}
