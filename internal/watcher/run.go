package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"codescope/internal/engine"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/incremental"
	"codescope/internal/report"
	"codescope/internal/scan"
)

// Analyzer is the part of the engine watch mode drives.
type Analyzer interface {
	Analyze(ctx context.Context, path string, opts engine.Options) (*report.Report, error)
}

// Run analyzes root once and then again after every debounced batch of
// changes, writing one summary line per run to out. Runs never overlap;
// changes that arrive during a run schedule exactly one follow-up run.
// Failed runs are reported and watching continues. Run returns when ctx
// is done.
func Run(ctx context.Context, a Analyzer, root string, opts engine.Options, cfg Config, scanOpt scan.Options, out io.Writer, logger *slog.Logger) error {
	opts.Incremental = true

	trigger := make(chan struct{}, 1)
	w, err := New(root, cfg, scanOpt, logger, func(_ string, events []Event) {
		logger.Debug("Scheduling analysis", "changes", len(events))
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	analyze := func() {
		rep, err := a.Analyze(ctx, root, opts)
		switch {
		case err == nil:
			fmt.Fprintln(out, Summary(rep))
		case errors.Is(err, context.Canceled):
		default:
			fmt.Fprintf(out, "Analysis failed (%s): %v\n", scopeerrors.CodeOf(err), err)
		}
	}

	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	defer func() { _ = w.Stop() }()

	analyze()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			analyze()
		}
	}
}

// Summary is the one-line account of a run printed by watch mode.
func Summary(rep *report.Report) string {
	stats := incremental.Stats{
		Files:         rep.Summary.Files,
		ParseFailures: rep.Summary.ParseFailures,
		Full:          true,
	}
	if inc := rep.Metadata.Incremental; inc != nil {
		stats.Added = inc.Added
		stats.Modified = inc.Modified
		stats.Removed = inc.Removed
		stats.Affected = inc.Affected
		stats.CentralityReused = inc.CentralityReused
		stats.RiskMode = incremental.RiskMode(inc.RiskMode)
		stats.Full = inc.Full
	}
	return fmt.Sprintf("%s | max risk %.2f, %d high-risk files, %d ms",
		incremental.FormatStats(stats), rep.Summary.MaxRisk, rep.Summary.HighRisk, rep.Metadata.DurationMs)
}
