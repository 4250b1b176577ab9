// Package pipeline runs analysis stages under bounded concurrency, per-stage
// timeouts and a required/optional failure policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"codescope/internal/analysis"
	"codescope/internal/config"
	scopeerrors "codescope/internal/errors"
)

// DefaultPartitionSize bounds the files of one per-file task.
const DefaultPartitionSize = 64

// Runner executes stages from a registry.
type Runner struct {
	registry      *Registry
	workers       int
	partitionSize int
	logger        *slog.Logger
	now           func() time.Time
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	// Workers of 0 means runtime.NumCPU()
	Workers       int
	PartitionSize int
}

// NewRunner creates a runner.
func NewRunner(registry *Registry, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PartitionSize <= 0 {
		cfg.PartitionSize = DefaultPartitionSize
	}
	return &Runner{
		registry:      registry,
		workers:       cfg.Workers,
		partitionSize: cfg.PartitionSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Registry returns the runner's stage registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// RunInput describes one run.
type RunInput struct {
	Root   string
	Stages []analysis.StageID
	// Files is the full project.
	Files []*analysis.SourceFile
	// PerFile, when non-nil, restricts per-file stages to these files. The
	// incremental engine passes the affected set here.
	PerFile []*analysis.SourceFile
	Config  *config.Config
	Memo    *Memo
	Now     time.Time
}

// Result is the aggregated outcome of a run.
type Result struct {
	Outputs map[analysis.StageID]*analysis.Output
	Reports []StageReport
	Memo    *Memo
}

// Report returns the report of id.
func (res *Result) Report(id analysis.StageID) (StageReport, bool) {
	for _, rep := range res.Reports {
		if rep.ID == id {
			return rep, true
		}
	}
	return StageReport{}, false
}

// stageRun tracks one stage while its partitions are in flight.
type stageRun struct {
	stage  analysis.Stage
	policy Policy
	input  *analysis.Input
	parts  []*analysis.Input
	key    string
	report StageReport

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	outputs   []*analysis.Output
	errs      []error
	remaining atomic.Int32
	output    *analysis.Output
	// aborted is set when the stage was cut short by another stage's failure
	aborted bool
}

// Run executes the selected stages and aggregates their outputs once every
// stage is terminal. A required stage that fails or times out cancels the
// rest of the run and is returned as one aggregate error; optional failures
// only show up in the reports.
func (r *Runner) Run(ctx context.Context, in RunInput) (*Result, error) {
	if in.Now.IsZero() {
		in.Now = r.now()
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runs := make([]*stageRun, 0, len(in.Stages))
	memo := &Memo{Entries: make(map[analysis.StageID]MemoEntry)}

	for _, id := range in.Stages {
		stage, ok := r.registry.Get(id)
		if !ok {
			return nil, scopeerrors.New(scopeerrors.InvalidOptions, fmt.Sprintf("unknown stage %q", id), nil)
		}
		sr := r.prepare(ctx, stage, in)
		runs = append(runs, sr)

		if out, ok := in.Memo.Lookup(id, sr.key); ok {
			sr.report.MarkReused()
			sr.output = out
			memo.Entries[id] = MemoEntry{Key: sr.key, Output: out}
			r.logger.Debug("Reusing memoized stage output", "stage", id)
		}
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, sr := range runs {
		if sr.report.Reused {
			continue
		}
		if len(sr.parts) == 0 {
			sr.report.MarkStarted(r.now())
			sr.output = &analysis.Output{}
			sr.report.MarkSucceeded(r.now())
			continue
		}
		sr.remaining.Store(int32(len(sr.parts)))
		for i := range sr.parts {
			sr, i := sr, i
			p.Go(func() {
				r.runPartition(runCtx, cancelRun, sr, i)
			})
		}
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Outputs: make(map[analysis.StageID]*analysis.Output, len(runs)), Memo: memo}
	var fatal []StageReport
	for _, sr := range runs {
		if sr.report.Required && !sr.report.HasOutput() && !sr.aborted {
			fatal = append(fatal, sr.report)
		}
		if sr.report.HasOutput() && sr.output != nil {
			result.Outputs[sr.stage.ID()] = sr.output
			if sr.report.Status == StatusSucceeded {
				memo.Entries[sr.stage.ID()] = MemoEntry{Key: sr.key, Output: sr.output}
			}
		}
		result.Reports = append(result.Reports, sr.report)
	}
	sort.Slice(result.Reports, func(i, j int) bool { return result.Reports[i].ID < result.Reports[j].ID })

	if len(fatal) > 0 {
		return result, aggregateError(fatal)
	}
	return result, nil
}

func (r *Runner) prepare(ctx context.Context, stage analysis.Stage, in RunInput) *stageRun {
	files := in.Files
	if stage.Scope() == analysis.ScopePerFile && in.PerFile != nil {
		files = in.PerFile
	}
	input := &analysis.Input{
		Root:   in.Root,
		Files:  files,
		Config: in.Config,
		Logger: r.logger.With("stage", string(stage.ID())),
		Now:    in.Now,
	}
	policy := PolicyFor(stage.ID(), in.Config)

	sr := &stageRun{
		stage:  stage,
		policy: policy,
		input:  input,
		key:    InputKey(ctx, stage, input),
		report: StageReport{
			ID:       stage.ID(),
			Status:   StatusPending,
			Required: policy.Required,
			Files:    len(files),
		},
	}

	switch {
	case len(files) == 0 && stage.Scope() == analysis.ScopePerFile:
	case stage.Scope() == analysis.ScopePerFile:
		for start := 0; start < len(files); start += r.partitionSize {
			end := min(start+r.partitionSize, len(files))
			part := *input
			part.Files = files[start:end]
			sr.parts = append(sr.parts, &part)
		}
	default:
		sr.parts = []*analysis.Input{input}
	}
	sr.report.Partitions = len(sr.parts)
	sr.outputs = make([]*analysis.Output, len(sr.parts))
	sr.errs = make([]error, len(sr.parts))
	return sr
}

// runPartition runs one task. The stage deadline starts with its first task.
func (r *Runner) runPartition(runCtx context.Context, cancelRun context.CancelFunc, sr *stageRun, i int) {
	sr.startOnce.Do(func() {
		sr.ctx, sr.cancel = context.WithTimeout(runCtx, sr.policy.Timeout)
		sr.report.MarkStarted(r.now())
	})

	if err := sr.ctx.Err(); err != nil {
		sr.errs[i] = err
	} else {
		sr.outputs[i], sr.errs[i] = runTask(sr.ctx, sr.stage, sr.parts[i])
	}

	if sr.remaining.Add(-1) == 0 {
		r.finish(runCtx, cancelRun, sr)
	}
}

// runTask abandons the stage when its context ends first. The goroutine
// left behind finishes on its own and its result is dropped.
func runTask(ctx context.Context, stage analysis.Stage, in *analysis.Input) (*analysis.Output, error) {
	type result struct {
		out *analysis.Output
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("stage %s panicked: %v", stage.ID(), p)}
			}
		}()
		out, err := stage.Run(ctx, in)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.out == nil {
			res.out = &analysis.Output{}
		}
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish settles a stage after its last partition. Runs exactly once per stage.
func (r *Runner) finish(runCtx context.Context, cancelRun context.CancelFunc, sr *stageRun) {
	defer sr.cancel()
	id := sr.stage.ID()

	cause := errors.Join(sr.errs...)
	if cause == nil {
		merged := &analysis.Output{}
		for _, out := range sr.outputs {
			merged.Merge(out)
		}
		merged.Sort()
		sr.output = merged
		sr.report.MarkSucceeded(r.now())
		r.logger.Debug("Stage succeeded", "stage", id, "partitions", len(sr.parts), "duration_ms", sr.report.DurationMs)
		return
	}

	// Partial partition results are discarded
	sr.outputs = nil
	if runCtx.Err() != nil {
		sr.aborted = true
		sr.report.MarkFailed(r.now(), false, errors.New("aborted: run cancelled"))
		return
	}
	timedOut := errors.Is(sr.ctx.Err(), context.DeadlineExceeded)
	if timedOut {
		cause = fmt.Errorf("exceeded %s timeout: %w", sr.policy.Timeout, cause)
	}
	sr.report.MarkFailed(r.now(), timedOut, cause)

	if sr.policy.Required {
		r.logger.Error("Required stage failed, cancelling run", "stage", id, "status", sr.report.Status, "error", cause)
		cancelRun()
		return
	}

	r.logger.Warn("Optional stage failed", "stage", id, "status", sr.report.Status, "error", cause)
	fb, ok := sr.stage.(analysis.Fallback)
	if !ok {
		return
	}

	fbCtx, cancel := context.WithTimeout(runCtx, sr.policy.Timeout)
	defer cancel()
	out, err := fb.Fallback(fbCtx, sr.input, cause)
	if err != nil {
		r.logger.Warn("Stage fallback failed", "stage", id, "error", err)
		sr.report.Cause = fmt.Sprintf("%s; fallback: %v", sr.report.Cause, err)
		return
	}
	if out == nil {
		out = &analysis.Output{}
	}
	out.Sort()
	sr.output = out
	sr.report.MarkDegraded(r.now())
	r.logger.Info("Stage degraded to fallback", "stage", id)
}

// aggregateError folds every failed required stage into one error. A
// timeout of any of them takes precedence: the error is STAGE_TIMEOUT.
func aggregateError(fatal []StageReport) error {
	code := scopeerrors.StageFailure
	parts := make([]string, len(fatal))
	for i, rep := range fatal {
		if rep.Code == scopeerrors.StageTimeout {
			code = scopeerrors.StageTimeout
		}
		reason := rep.Cause
		if reason == "" {
			reason = string(rep.Status)
		}
		parts[i] = fmt.Sprintf("%s: %s", rep.ID, reason)
	}
	return scopeerrors.New(code, "required stage failed: "+strings.Join(parts, "; "), nil).WithDetails(fatal)
}
