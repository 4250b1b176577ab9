// Package engine is the facade over the analysis pipeline. Every
// collaborator (CLI, HTTP, JSON-RPC, watch mode) maps its transport onto
// Engine.Analyze.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"codescope/internal/analysis"
	"codescope/internal/ast"
	"codescope/internal/cache"
	"codescope/internal/churn"
	"codescope/internal/complexity"
	"codescope/internal/compression"
	"codescope/internal/config"
	"codescope/internal/deadcode"
	"codescope/internal/debt"
	"codescope/internal/depgraph"
	"codescope/internal/duplicates"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/incremental"
	"codescope/internal/pipeline"
	"codescope/internal/project"
	"codescope/internal/report"
	"codescope/internal/scan"
	"codescope/internal/snapshot"
	"codescope/internal/storage"
)

// keepSnapshots is how many snapshots per root survive a save.
const keepSnapshots = 3

// Options are the per-call settings of Analyze.
type Options struct {
	// Stages and Exclude hold stage ids, comma lists or "all".
	Stages  []string `json:"stages,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	// Format is validated here and sizes the budget; the caller renders
	// through report.Render in the same format.
	Format string `json:"format,omitempty"`
	// MaxBytes of 0 falls back to the configured budget; both 0 is unlimited.
	MaxBytes int `json:"maxBytes,omitempty"`
	// CacheTTL overrides the persistent tier's entry lifetime for this call.
	CacheTTL time.Duration `json:"cacheTtl,omitempty"`
	// NoCache parses every file and neither reads nor writes snapshots.
	NoCache bool `json:"noCache,omitempty"`
	// Workers of 0 uses the configured pool size.
	Workers     int  `json:"workers,omitempty"`
	Incremental bool `json:"incremental,omitempty"`
}

// Engine owns the database, the parse cache and the snapshot store. It is
// safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	parser   ast.Parser
	db       *storage.DB
	cache    *cache.Manager
	store    *snapshot.Store
	registry *pipeline.Registry

	mu sync.Mutex
	// latest keeps the newest snapshot per root with its ASTs attached.
	latest map[string]*snapshot.Snapshot
	closed bool
}

// DefaultRegistry registers every built-in stage.
func DefaultRegistry() *pipeline.Registry {
	return pipeline.NewRegistry(
		complexity.NewStage(),
		churn.NewStage(),
		debt.NewStage(),
		deadcode.NewStage(),
		duplicates.NewStage(),
		depgraph.NewStage(),
	)
}

// New creates an engine with the tree-sitter parser.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	parser, err := ast.NewParser()
	if err != nil {
		return nil, scopeerrors.New(scopeerrors.InternalError, "parser unavailable", err)
	}
	return NewWithParser(cfg, parser, logger)
}

// NewWithParser creates an engine around parser. The database lives in
// cfg.Cache.Dir; with caching disabled or no directory configured it is
// kept in memory.
func NewWithParser(cfg *config.Config, parser ast.Parser, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, scopeerrors.New(scopeerrors.InvalidOptions, "invalid configuration", err)
	}

	var (
		db  *storage.DB
		err error
	)
	if cfg.Cache.Disabled || cfg.Cache.Dir == "" {
		db, err = storage.OpenMemory(logger)
	} else {
		db, err = storage.Open(cfg.Cache.Dir, logger)
	}
	if err != nil {
		return nil, scopeerrors.New(scopeerrors.StorageError, "failed to open database", err)
	}

	var persistent *cache.Persistent
	if !cfg.Cache.Disabled {
		persistent, err = cache.NewPersistent(db, persistentOptions(cfg, 0), logger)
		if err != nil {
			_ = db.Close()
			return nil, scopeerrors.New(scopeerrors.InternalError, "failed to create persistent cache", err)
		}
	}

	store, err := snapshot.NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, scopeerrors.New(scopeerrors.InternalError, "failed to create snapshot store", err)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		parser:   parser,
		db:       db,
		store:    store,
		registry: DefaultRegistry(),
		latest:   make(map[string]*snapshot.Snapshot),
	}
	e.cache = cache.NewManager(parser, cache.Options{
		Mode:           cache.Mode(cfg.Cache.FingerprintMode),
		SessionEntries: cfg.Cache.SessionEntries,
		ParseTimeout:   time.Duration(cfg.Pipeline.ParseTimeoutMs) * time.Millisecond,
		Persistent:     persistent,
	}, logger)

	logger.Debug("Engine ready", "db", db.Path(), "fingerprint_mode", cfg.Cache.FingerprintMode)
	return e, nil
}

func persistentOptions(cfg *config.Config, ttl time.Duration) cache.PersistentOptions {
	if ttl <= 0 {
		ttl = time.Duration(cfg.Cache.TTLSeconds) * time.Second
	}
	return cache.PersistentOptions{
		TTL:               ttl,
		MaxBytes:          cfg.Cache.MaxBytes,
		Compress:          cfg.Cache.Compression,
		CompressThreshold: cfg.Cache.CompressThresholdBytes,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Registry returns the stage registry.
func (e *Engine) Registry() *pipeline.Registry {
	return e.registry
}

// Analyze runs the pipeline over the tree at path and returns the pruned
// report. With opts.Incremental the previous snapshot of the same root is
// updated instead of rebuilt.
func (e *Engine) Analyze(ctx context.Context, path string, opts Options) (*report.Report, error) {
	start := time.Now()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	stages, err := e.validate(opts)
	if err != nil {
		return nil, err
	}
	// Validated above.
	format, _ := report.ParseFormat(opts.Format)
	root, err := resolveRoot(path)
	if err != nil {
		return nil, err
	}

	files, detection, err := e.discover(ctx, root)
	if err != nil {
		return nil, err
	}

	manager, release, err := e.managerFor(opts)
	if err != nil {
		return nil, err
	}
	defer release()

	fingerprints := make(map[string]string, len(files))
	for _, f := range files {
		fp, err := manager.Fingerprint(f)
		if err != nil {
			// Unreadable files surface as parse failures in the build
			e.logger.Debug("Failed to fingerprint file", "path", f.Path, "error", err)
		}
		fingerprints[f.Path] = string(fp)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = e.cfg.Pipeline.Workers
	}
	runner := pipeline.NewRunner(e.registry, pipeline.RunnerConfig{
		Workers:       workers,
		PartitionSize: e.cfg.Pipeline.PartitionSize,
	}, e.logger)
	cfg := *e.cfg
	cfg.Pipeline.Workers = workers
	builder := incremental.NewBuilder(manager, runner, &cfg, e.logger)

	in := incremental.Input{
		Root:         root,
		Files:        files,
		Detection:    detection,
		Fingerprints: fingerprints,
		Stages:       stages,
	}

	var result *incremental.Result
	var prev *snapshot.Snapshot
	if opts.Incremental && !opts.NoCache {
		prev = e.previous(ctx, root)
	}
	if prev != nil {
		changes := snapshot.Diff(prev, files, fingerprints)
		result, err = builder.Update(ctx, prev, in, changes)
	} else {
		result, err = builder.Full(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	if !opts.NoCache {
		e.remember(ctx, result.Snapshot)
	}

	buildOpts := report.BuildOptions{
		RunID:      uuid.NewString(),
		MaxBytes:   compression.BudgetFromConfig(e.cfg, opts.MaxBytes).MaxBytes,
		Format:     format,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if opts.Incremental {
		buildOpts.Incremental = &report.IncrementalInfo{
			Added:            len(result.Changes.Added),
			Modified:         len(result.Changes.Modified),
			Removed:          len(result.Changes.Removed),
			Affected:         len(result.Affected),
			CentralityReused: result.CentralityReused,
			RiskMode:         string(result.RiskMode),
			Full:             result.Full,
		}
	}
	if stats, err := manager.Stats(ctx); err == nil {
		buildOpts.Cache = &stats
	}
	return report.Build(result.Snapshot, buildOpts), nil
}

// Detect runs discovery and language detection only.
func (e *Engine) Detect(ctx context.Context, path string) (project.Detection, error) {
	root, err := resolveRoot(path)
	if err != nil {
		return project.Detection{}, err
	}
	_, detection, err := e.discover(ctx, root)
	return detection, err
}

// CacheStats reports both cache tiers and the stored snapshot count.
func (e *Engine) CacheStats(ctx context.Context) (CacheStats, error) {
	if err := e.checkOpen(); err != nil {
		return CacheStats{}, err
	}
	stats, err := e.cache.Stats(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	n, err := e.store.Count(ctx)
	if err != nil {
		return CacheStats{}, scopeerrors.New(scopeerrors.StorageError, "failed to count snapshots", err)
	}
	return CacheStats{Stats: stats, Snapshots: n, Database: e.db.Path()}, nil
}

// CacheStats is the cache report of the engine.
type CacheStats struct {
	cache.Stats
	Snapshots int    `json:"snapshots"`
	Database  string `json:"database"`
}

// PurgeCache drops every cached AST and snapshot and returns how many rows
// were removed.
func (e *Engine) PurgeCache(ctx context.Context) (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	entries, err := e.cache.Purge(ctx)
	if err != nil {
		return 0, err
	}
	snaps, err := e.store.Clear(ctx)
	if err != nil {
		return entries, err
	}
	e.mu.Lock()
	e.latest = make(map[string]*snapshot.Snapshot)
	e.mu.Unlock()
	e.logger.Info("Cache purged", "entries", entries, "snapshots", snaps)
	return entries + snaps, nil
}

// Close releases the cache and the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.latest = nil
	e.mu.Unlock()

	_ = e.cache.Close()
	e.store.Close()
	return e.db.Close()
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return scopeerrors.New(scopeerrors.InternalError, "engine is closed", nil)
	}
	return nil
}

func (e *Engine) validate(opts Options) ([]analysis.StageID, error) {
	if _, err := report.ParseFormat(opts.Format); err != nil {
		return nil, scopeerrors.New(scopeerrors.InvalidOptions, err.Error(), nil)
	}
	if opts.MaxBytes < 0 {
		return nil, scopeerrors.Newf(scopeerrors.InvalidOptions, "max bytes must not be negative, got %d", opts.MaxBytes)
	}
	if opts.Workers < 0 {
		return nil, scopeerrors.Newf(scopeerrors.InvalidOptions, "workers must not be negative, got %d", opts.Workers)
	}
	if opts.CacheTTL < 0 {
		return nil, scopeerrors.Newf(scopeerrors.InvalidOptions, "cache TTL must not be negative, got %s", opts.CacheTTL)
	}
	return e.registry.ResolveStages(opts.Stages, opts.Exclude)
}

func resolveRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return "", scopeerrors.New(scopeerrors.InvalidOptions, fmt.Sprintf("invalid path %q", path), err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", scopeerrors.New(scopeerrors.InvalidOptions, fmt.Sprintf("cannot read %s", root), err)
	}
	if !info.IsDir() {
		return "", scopeerrors.Newf(scopeerrors.InvalidOptions, "%s is not a directory", root)
	}
	return root, nil
}

// discover walks the tree and detects its languages. Only files in a
// supported language are returned.
func (e *Engine) discover(ctx context.Context, root string) ([]scan.File, project.Detection, error) {
	all, err := scan.Walk(ctx, root, scan.Options{
		MaxFileBytes: e.cfg.Detection.MaxFileBytes,
		Ignore:       e.cfg.Detection.Ignore,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, project.Detection{}, ctx.Err()
		}
		return nil, project.Detection{}, scopeerrors.New(scopeerrors.DetectionFailure, "failed to walk "+root, err)
	}

	detection := project.Detect(ctx, root, scan.Paths(all), project.Options{MinConfidence: e.cfg.Detection.MinConfidence})
	if detection.Undetected {
		return nil, detection, scopeerrors.New(scopeerrors.DetectionFailure, detection.Reason, nil).
			WithDetails(detection)
	}
	return scan.Sources(all), detection, nil
}

// managerFor returns the cache manager for one call. A TTL override or
// NoCache gets a call-scoped manager; release closes it.
func (e *Engine) managerFor(opts Options) (*cache.Manager, func(), error) {
	if !opts.NoCache && (opts.CacheTTL == 0 || e.cfg.Cache.Disabled) {
		return e.cache, func() {}, nil
	}

	var persistent *cache.Persistent
	if !opts.NoCache {
		var err error
		persistent, err = cache.NewPersistent(e.db, persistentOptions(e.cfg, opts.CacheTTL), e.logger)
		if err != nil {
			return nil, nil, scopeerrors.New(scopeerrors.InternalError, "failed to create persistent cache", err)
		}
	}
	m := cache.NewManager(e.parser, cache.Options{
		Mode:           cache.Mode(e.cfg.Cache.FingerprintMode),
		SessionEntries: e.cfg.Cache.SessionEntries,
		ParseTimeout:   time.Duration(e.cfg.Pipeline.ParseTimeoutMs) * time.Millisecond,
		Persistent:     persistent,
	}, e.logger)
	return m, func() { _ = m.Close() }, nil
}

// previous returns the newest snapshot of root, preferring the in-memory
// one because it still holds its ASTs.
func (e *Engine) previous(ctx context.Context, root string) *snapshot.Snapshot {
	e.mu.Lock()
	snap := e.latest[root]
	e.mu.Unlock()
	if snap != nil {
		return snap
	}

	snap, err := e.store.Latest(ctx, root)
	if err != nil {
		e.logger.Warn("Failed to load previous snapshot, running full analysis", "root", root, "error", err)
		return nil
	}
	return snap
}

// remember keeps snap in memory and persists it. A failed save only costs
// the next process a full build.
func (e *Engine) remember(ctx context.Context, snap *snapshot.Snapshot) {
	e.mu.Lock()
	if e.latest != nil {
		e.latest[snap.Root] = snap
	}
	e.mu.Unlock()

	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Warn("Failed to save snapshot", "root", snap.Root, "error", err)
		return
	}
	if _, err := e.store.Prune(ctx, keepSnapshots); err != nil {
		e.logger.Warn("Failed to prune snapshots", "error", err)
	}
}
