package incremental

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"github.com/zeebo/xxh3"

	"codescope/internal/analysis"
	"codescope/internal/cache"
	"codescope/internal/config"
	"codescope/internal/depgraph"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/graph"
	"codescope/internal/pipeline"
	"codescope/internal/risk"
	"codescope/internal/scan"
	"codescope/internal/snapshot"
)

// mermaidNodes bounds the diagram embedded in a snapshot.
const mermaidNodes = 25

// Builder produces snapshots. It owns no state between builds: everything
// carried over comes from the previous snapshot passed to Update.
type Builder struct {
	cache   *cache.Manager
	runner  *pipeline.Runner
	cfg     *config.Config
	weights risk.Weights
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder creates a builder. The cache and runner are shared with the
// caller and not closed by the builder.
func NewBuilder(c *cache.Manager, runner *pipeline.Runner, cfg *config.Config, logger *slog.Logger) *Builder {
	workers := cfg.Pipeline.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{
		cache:   c,
		runner:  runner,
		cfg:     cfg,
		weights: risk.DefaultWeights(),
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

// Full analyzes every file.
func (b *Builder) Full(ctx context.Context, in Input) (*Result, error) {
	return b.build(ctx, nil, in, snapshot.Diff(nil, in.Files, in.Fingerprints))
}

// Update applies changes to prev. It falls back to a full build when prev
// is nil or was built with other settings.
func (b *Builder) Update(ctx context.Context, prev *snapshot.Snapshot, in Input, changes snapshot.Changeset) (*Result, error) {
	return b.build(ctx, prev, in, changes)
}

// build is the single aggregation path of Full and Update. base is the
// snapshot results are carried over from, or nil.
func (b *Builder) build(ctx context.Context, base *snapshot.Snapshot, in Input, changes snapshot.Changeset) (*Result, error) {
	start := b.now()
	files := append([]scan.File(nil), in.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	paths := scan.Paths(files)

	// Step 1: decide whether anything can be carried over
	key := b.configKey(in.Stages)
	if base != nil && !b.canCarry(base, key, in.Stages) {
		b.logger.Info("Previous snapshot not reusable, running full analysis", "snapshot", base.ID)
		base = nil
	}
	result := &Result{Changes: changes, Full: base == nil}

	// Step 2: changed files and their dependents in the previous graph
	var affected []string
	if base == nil {
		affected = paths
	} else {
		affected = union(changes.Changed(), dependentFiles(base.Results.Edges, changes.All(), paths))
	}

	// Step 3: records, reusing unchanged ones and loading the rest through the cache
	records, err := b.records(ctx, base, files, in.Fingerprints, start)
	if err != nil {
		return nil, err
	}
	sources, failed := sourceFiles(records, files)

	// Step 4: graph stage first so dependents in the new graph join the affected set
	memo := &pipeline.Memo{Entries: make(map[analysis.StageID]pipeline.MemoEntry)}
	var prevMemo *pipeline.Memo
	if base != nil {
		prevMemo = base.Memo
	}
	outputs := make(map[analysis.StageID]*analysis.Output)
	var reports []pipeline.StageReport

	graphStages, otherStages := splitStages(in.Stages)
	if len(graphStages) > 0 {
		res, err := b.runner.Run(ctx, pipeline.RunInput{
			Root: in.Root, Stages: graphStages, Files: sources, Config: b.cfg, Memo: prevMemo, Now: start,
		})
		if err != nil {
			return nil, err
		}
		collect(res, outputs, memo, &reports)
		if base != nil {
			if out, ok := outputs[analysis.StageGraph]; ok {
				affected = union(affected, dependentFiles(out.Edges, changes.All(), paths))
			}
		}
	}

	// Step 5: the remaining stages, per-file ones restricted to the affected set
	if len(otherStages) > 0 {
		run := pipeline.RunInput{
			Root: in.Root, Stages: otherStages, Files: sources, Config: b.cfg, Memo: prevMemo, Now: start,
		}
		if base != nil {
			run.PerFile = restrict(sources, affected)
		}
		res, err := b.runner.Run(ctx, run)
		if err != nil {
			return nil, err
		}
		collect(res, outputs, memo, &reports)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })

	// Step 6: merge, carrying over per-file results of unaffected files
	drop := toSet(union(affected, changes.Removed, failed))
	results := &analysis.Output{}
	for _, id := range in.Stages {
		out, ok := outputs[id]
		if !ok {
			continue
		}
		if base != nil && b.scope(id) == analysis.ScopePerFile {
			results.Merge(base.Results.Only(id).Without(drop))
		}
		results.Merge(out)
	}
	results.Sort()

	snap := &snapshot.Snapshot{
		ID:          uuid.NewString(),
		Root:        in.Root,
		GeneratedAt: start,
		Detection:   in.Detection,
		ConfigKey:   key,
		Files:       records,
		Results:     results,
		Stages:      reports,
		Memo:        memo,
	}
	for _, rec := range records {
		if rec.ParseError != "" {
			snap.ParseFailures = append(snap.ParseFailures, snapshot.ParseFailure{Path: rec.Path, Error: rec.ParseError})
		}
	}

	// Step 7: graph metrics, reusing centrality when the topology is unchanged
	if _, ok := outputs[analysis.StageGraph]; ok {
		reused, err := b.graph(ctx, base, snap, sources)
		if err != nil {
			return nil, err
		}
		result.CentralityReused = reused
	}

	// Step 8: risk
	snap.RiskInputs = risk.Collect(analysis.Paths(sources), results)
	snap.Risk, result.RiskMode = b.score(base, snap)

	result.Snapshot = snap
	result.Affected = restrictPaths(affected, paths)
	b.logger.Info(FormatStats(result.Stats()),
		"snapshot", snap.ID,
		"duration_ms", b.now().Sub(start).Milliseconds())
	return result, nil
}

// canCarry reports whether base was built with the same settings and holds
// complete per-file results for every selected stage.
func (b *Builder) canCarry(base *snapshot.Snapshot, key string, stages []analysis.StageID) bool {
	if base.ConfigKey != key || base.Results == nil {
		return false
	}
	for _, id := range stages {
		if b.scope(id) != analysis.ScopePerFile {
			continue
		}
		rep, ok := base.Stage(id)
		if !ok || rep.Status != pipeline.StatusSucceeded {
			return false
		}
	}
	return true
}

func (b *Builder) scope(id analysis.StageID) analysis.Scope {
	if stage, ok := b.runner.Registry().Get(id); ok {
		return stage.Scope()
	}
	return analysis.ScopeProject
}

// configKey hashes every setting that changes stage results.
func (b *Builder) configKey(stages []analysis.StageID) string {
	ids := append([]analysis.StageID(nil), stages...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	data, _ := json.Marshal(struct {
		Stages     []analysis.StageID
		Mode       cache.Mode
		Overrides  map[string]config.StageOverride
		Churn      config.ChurnConfig
		Debt       config.DebtConfig
		DeadCode   config.DeadCodeConfig
		Duplicates config.DuplicatesConfig
		Graph      config.GraphConfig
		Weights    risk.Weights
	}{ids, b.cache.Mode(), b.cfg.Pipeline.Stages, b.cfg.Churn, b.cfg.Debt, b.cfg.DeadCode, b.cfg.Duplicates, b.cfg.Graph, b.weights})
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// records builds the file records. A record whose fingerprint did not
// change is shared with base; one decoded from the store gets a copy
// holding its reloaded AST.
func (b *Builder) records(ctx context.Context, base *snapshot.Snapshot, files []scan.File, fps map[string]string, now time.Time) ([]*snapshot.FileRecord, error) {
	records := make([]*snapshot.FileRecord, len(files))
	var load []int
	for i, f := range files {
		if base != nil {
			if prev, ok := base.Record(f.Path); ok && prev.Fingerprint == fps[f.Path] && prev.Fingerprint != "" {
				if prev.AST != nil || prev.ParseError != "" {
					records[i] = prev
					continue
				}
				copied := *prev
				records[i] = &copied
			}
		}
		load = append(load, i)
	}

	errs := make([]error, len(files))
	loader := iter.Iterator[int]{MaxGoroutines: b.workers}
	loader.ForEachIdx(load, func(_ int, idx *int) {
		i := *idx
		f := files[i]
		file, fp, err := b.cache.GetOrParse(ctx, f)
		rec := records[i]
		if rec == nil {
			rec = &snapshot.FileRecord{
				Path:         f.Path,
				Language:     f.Language,
				Fingerprint:  string(fp),
				Size:         f.Size,
				ModTime:      f.ModTime,
				LastAnalyzed: now,
			}
			records[i] = rec
		}
		switch {
		case err == nil:
			rec.AST = file
		case scopeerrors.Is(err, scopeerrors.ParseFailure):
			rec.ParseError = parseCause(err)
			b.logger.Warn("Skipping unparseable file", "path", f.Path, "error", err)
		default:
			errs[i] = err
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// parseCause strips the error code wrapper for the report.
func parseCause(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}

// sourceFiles returns the stage view of every parsed record and the paths
// of the records that failed to parse.
func sourceFiles(records []*snapshot.FileRecord, files []scan.File) ([]*analysis.SourceFile, []string) {
	var sources []*analysis.SourceFile
	var failed []string
	for i, rec := range records {
		if rec.AST == nil {
			failed = append(failed, rec.Path)
			continue
		}
		sources = append(sources, &analysis.SourceFile{
			Path:        rec.Path,
			AbsPath:     files[i].AbsPath,
			Language:    rec.Language,
			Fingerprint: rec.Fingerprint,
			Size:        rec.Size,
			ModTime:     rec.ModTime,
			AST:         rec.AST,
		})
	}
	return sources, failed
}

func splitStages(stages []analysis.StageID) (graphStages, rest []analysis.StageID) {
	for _, id := range stages {
		if id == analysis.StageGraph {
			graphStages = append(graphStages, id)
		} else {
			rest = append(rest, id)
		}
	}
	return graphStages, rest
}

func collect(res *pipeline.Result, outputs map[analysis.StageID]*analysis.Output, memo *pipeline.Memo, reports *[]pipeline.StageReport) {
	for id, out := range res.Outputs {
		outputs[id] = out
	}
	for id, e := range res.Memo.Entries {
		memo.Entries[id] = e
	}
	*reports = append(*reports, res.Reports...)
}

// restrict keeps the sources whose path is in paths. The result is never
// nil so the runner treats it as a restriction.
func restrict(sources []*analysis.SourceFile, paths []string) []*analysis.SourceFile {
	keep := toSet(paths)
	out := make([]*analysis.SourceFile, 0, len(paths))
	for _, f := range sources {
		if keep[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

func restrictPaths(paths, within []string) []string {
	keep := toSet(within)
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if keep[p] {
			out = append(out, p)
		}
	}
	return out
}

// graph fills the graph section of snap and reports whether the centrality
// of base was reused.
func (b *Builder) graph(ctx context.Context, base *snapshot.Snapshot, snap *snapshot.Snapshot, sources []*analysis.SourceFile) (bool, error) {
	g := graph.FromEdges(nodes(b.cfg.Graph.Granularity, sources), toGraphEdges(snap.Results.Edges))
	snap.Graph = snapshot.GraphInfo{
		Nodes:        g.NumNodes(),
		Edges:        g.NumEdges(),
		TopologyHash: g.TopologyHash(),
	}

	reused := base != nil && base.Graph.TopologyHash == snap.Graph.TopologyHash && base.Centrality.Scores != nil
	if reused {
		snap.Centrality = base.Centrality
	} else {
		timeout := time.Duration(b.cfg.Graph.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = pipeline.PolicyFor(analysis.StageGraph, b.cfg).Timeout
		}
		prCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		pr, err := g.PageRank(prCtx, graph.PageRankOptions{
			Damping:       b.cfg.Graph.Damping,
			MaxIterations: b.cfg.Graph.MaxIterations,
			Tolerance:     b.cfg.Graph.Tolerance,
			Workers:       b.workers,
		})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, scopeerrors.New(scopeerrors.StageTimeout,
				fmt.Sprintf("centrality exceeded %s timeout", timeout), err)
		}
		snap.Centrality = snapshot.Centrality{Scores: pr.Scores, Iterations: pr.Iterations, Converged: pr.Converged}
	}
	if !snap.Centrality.Converged && snap.Graph.Nodes > 0 {
		snap.Notes = append(snap.Notes, fmt.Sprintf("graph: centrality stopped after %d iterations without converging", snap.Centrality.Iterations))
	}

	snap.Graph.Cycles = g.Cycles()
	snap.Graph.CriticalPaths = g.CriticalPaths(b.cfg.Graph.TopKPaths)
	snap.Graph.Coupling = g.Coupling()
	snap.Graph.Mermaid = g.Mermaid(snap.Centrality.Scores, mermaidNodes)
	return reused, nil
}

// nodes lists every node of the chosen granularity, so isolated files
// still receive centrality.
func nodes(granularity string, sources []*analysis.SourceFile) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range sources {
		switch depgraph.Granularity(granularity) {
		case depgraph.GranularityModule:
			if m := depgraph.ModuleOf(f.Path); !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		case depgraph.GranularityFunction:
			for _, fn := range f.AST.Functions {
				out = append(out, depgraph.FunctionNode(f.Path, fn.QualifiedName()))
			}
		default:
			out = append(out, f.Path)
		}
	}
	return out
}

// score rescores globally when there is no usable previous result, the
// topology moved or the file set changed. Otherwise only changed metrics
// are replaced in the previous distributions.
func (b *Builder) score(base *snapshot.Snapshot, snap *snapshot.Snapshot) (*risk.Result, RiskMode) {
	if base == nil || base.Risk == nil || base.Graph.TopologyHash != snap.Graph.TopologyHash ||
		!samePopulation(base.RiskInputs, snap.RiskInputs) {
		return risk.Compute(snap.RiskInputs, b.weights), RiskFull
	}

	var changed []risk.FileMetrics
	for i, m := range snap.RiskInputs {
		if m != base.RiskInputs[i] {
			changed = append(changed, m)
		}
	}
	if len(changed) == 0 {
		return base.Risk, RiskReused
	}

	scorer := risk.NewScorer(base.RiskInputs, b.weights)
	if err := scorer.Update(changed); err != nil {
		b.logger.Warn("Incremental rescoring failed, rescoring all files", "error", err)
		return risk.Compute(snap.RiskInputs, b.weights), RiskFull
	}
	return scorer.Result(), RiskIncremental
}

// samePopulation compares two sorted metric lists by path.
func samePopulation(a, b []risk.FileMetrics) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path {
			return false
		}
	}
	return true
}
