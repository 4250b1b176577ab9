package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codescope/internal/engine"
	"codescope/internal/report"
)

type analyzeFlags struct {
	stages      []string
	exclude     []string
	format      string
	maxBytes    int
	ttl         time.Duration
	workers     int
	incremental bool
	noCache     bool
	output      string
	failOnRisk  float64
}

func newAnalyzeCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	f := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a project and render a report",
		Long: `Run the analysis stages over a project and render the report.

Stages are complexity, churn, debt, deadcode, duplicates and graph. --stages and
--exclude take stage ids or comma lists; "all" selects every stage.

With --fail-on-risk the command exits 3 when any file's risk score is at or
above the threshold, after the report has been written.

Examples:
  codescope analyze
  codescope analyze ./service --format json --output report.json
  codescope analyze --stages complexity,graph --max-bytes 20000
  codescope analyze --incremental --fail-on-risk 0.8`,
		Args: optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, newEngine, f, args)
		},
	}

	cmd.Flags().StringSliceVar(&f.stages, "stages", nil, "Stages to run (default all)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Stages to skip")
	cmd.Flags().StringVar(&f.format, "format", "", "Output format: markdown, json, yaml or sarif (default from config)")
	cmd.Flags().IntVar(&f.maxBytes, "max-bytes", 0, "Report size budget in bytes (0 uses the configured budget)")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 0, "Lifetime of cached parse results for this run")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker pool size (0 uses the configured size)")
	cmd.Flags().BoolVar(&f.incremental, "incremental", false, "Reuse the previous snapshot for unchanged files")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Parse every file and store nothing")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Float64Var(&f.failOnRisk, "fail-on-risk", 0, "Exit 3 when a file's risk is at or above this score (0 disables)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, g *globalFlags, newEngine engineFactory, f *analyzeFlags, args []string) error {
	s, err := openSession(cmd, g, newEngine, args)
	if err != nil {
		return err
	}
	defer s.Close()

	if !cmd.Flags().Changed("format") {
		f.format = s.cfg.Output.Format
	}
	if !cmd.Flags().Changed("fail-on-risk") {
		f.failOnRisk = s.cfg.Risk.FailThreshold
	}
	opts, err := f.options()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return usageError(err)
	}

	rep, err := s.engine.Analyze(cmd.Context(), s.root, opts)
	if err != nil {
		return err
	}
	if len(rep.Metadata.Partial) > 0 {
		s.logger.Warn("Report is partial", "sections", rep.Metadata.Partial)
	}

	data, err := report.Render(rep, format)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := writeOutput(cmd, f.output, data); err != nil {
		return err
	}

	s.logger.Info("Analysis complete",
		"runId", rep.Metadata.RunID,
		"files", rep.Summary.Files,
		"maxRisk", rep.Summary.MaxRisk,
		"durationMs", rep.Metadata.DurationMs,
	)
	return qualityGate(rep.Summary, f.failOnRisk)
}

// options validates the flags that the engine does not check itself.
func (f *analyzeFlags) options() (engine.Options, error) {
	if f.ttl < 0 {
		return engine.Options{}, usageErrorf("--ttl must be positive, got %s", f.ttl)
	}
	if f.failOnRisk < 0 || f.failOnRisk > 1 {
		return engine.Options{}, usageErrorf("--fail-on-risk must be within [0, 1], got %g", f.failOnRisk)
	}
	return engine.Options{
		Stages:      f.stages,
		Exclude:     f.exclude,
		Format:      f.format,
		MaxBytes:    f.maxBytes,
		CacheTTL:    f.ttl,
		NoCache:     f.noCache,
		Workers:     f.workers,
		Incremental: f.incremental,
	}, nil
}

// qualityGate fails when the riskiest file reaches threshold; 0 disables it.
func qualityGate(summary report.Summary, threshold float64) error {
	if threshold <= 0 || summary.MaxRisk < threshold {
		return nil
	}
	return &exitError{
		code: exitQualityGate,
		err: fmt.Errorf("quality gate failed: max risk %.2f is at or above %.2f (%d high-risk files)",
			summary.MaxRisk, threshold, summary.HighRisk),
	}
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
