// Package cache implements the two-tier parse cache: a bounded in-memory
// session tier in front of a persistent sqlite tier, keyed by file
// fingerprint, with per-key single-flight parsing.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"codescope/internal/ast"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/scan"
)

// DefaultParseTimeout bounds a single parse.
const DefaultParseTimeout = 10 * time.Second

// Options configures a Manager.
type Options struct {
	Mode           Mode
	SessionEntries int
	ParseTimeout   time.Duration
	// Persistent may be nil to run with the session tier only.
	Persistent *Persistent
}

// TierStats holds the counters of one tier.
type TierStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Entries     int64 `json:"entries"`
	Bytes       int64 `json:"bytes,omitempty"`
	Evictions   int64 `json:"evictions"`
	Expired     int64 `json:"expired,omitempty"`
	Corruptions int64 `json:"corruptions,omitempty"`
}

// Stats reports both tiers plus parser activity.
type Stats struct {
	Session       TierStats  `json:"session"`
	Persistent    *TierStats `json:"persistent,omitempty"`
	Parses        int64      `json:"parses"`
	ParseFailures int64      `json:"parseFailures"`
}

// Manager owns both tiers. Construct one per engine and inject it into
// whatever needs ASTs.
type Manager struct {
	parser       ast.Parser
	session      *Session
	persistent   *Persistent
	mode         Mode
	parseTimeout time.Duration
	logger       *slog.Logger

	group singleflight.Group

	parses        atomic.Int64
	parseFailures atomic.Int64
	closed        atomic.Bool
}

// NewManager creates a manager around parser.
func NewManager(parser ast.Parser, opts Options, logger *slog.Logger) *Manager {
	if opts.Mode == "" {
		opts.Mode = ModeStat
	}
	if opts.ParseTimeout <= 0 {
		opts.ParseTimeout = DefaultParseTimeout
	}
	return &Manager{
		parser:       parser,
		session:      NewSession(opts.SessionEntries),
		persistent:   opts.Persistent,
		mode:         opts.Mode,
		parseTimeout: opts.ParseTimeout,
		logger:       logger,
	}
}

// Mode reports the fingerprint mode in use.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Fingerprint computes the cache key of f without touching the tiers.
func (m *Manager) Fingerprint(f scan.File) (Fingerprint, error) {
	fp, _, err := Compute(m.mode, f)
	return fp, err
}

// GetOrParse returns the AST for f, parsing only when neither tier holds its
// fingerprint. Concurrent callers for one fingerprint share a single parse.
// Parse failures come back as PARSE_FAILURE errors and are not cached.
func (m *Manager) GetOrParse(ctx context.Context, f scan.File) (*ast.File, Fingerprint, error) {
	if m.closed.Load() {
		return nil, "", scopeerrors.New(scopeerrors.InternalError, "cache manager is closed", nil)
	}

	fp, src, err := Compute(m.mode, f)
	if err != nil {
		return nil, "", scopeerrors.New(scopeerrors.ParseFailure, fmt.Sprintf("read %s", f.Path), err)
	}

	if file, ok := m.session.Get(f.Language, fp); ok {
		return file, fp, nil
	}

	ch := m.group.DoChan(string(fp), func() (interface{}, error) {
		// The shared load must not die with whichever caller arrived first
		return m.load(context.WithoutCancel(ctx), f, fp, src)
	})
	select {
	case <-ctx.Done():
		return nil, fp, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fp, res.Err
		}
		return res.Val.(*ast.File), fp, nil
	}
}

func (m *Manager) load(ctx context.Context, f scan.File, fp Fingerprint, src []byte) (*ast.File, error) {
	ctx, cancel := context.WithTimeout(ctx, m.parseTimeout)
	defer cancel()

	if m.persistent != nil {
		file, ok, err := m.persistent.Get(ctx, fp)
		switch {
		case ok:
			file.Path = f.Path
			m.session.Put(f.Language, fp, file)
			return file, nil
		case scopeerrors.Is(err, scopeerrors.CacheCorruption):
			m.logger.Warn("Discarded corrupt cache entry", "path", f.Path, "error", err)
		case err != nil:
			m.logger.Debug("Persistent cache unavailable", "path", f.Path, "error", err)
		}
	}

	if src == nil {
		var err error
		if src, err = os.ReadFile(f.AbsPath); err != nil {
			m.parseFailures.Add(1)
			return nil, scopeerrors.New(scopeerrors.ParseFailure, fmt.Sprintf("read %s", f.Path), err)
		}
	}

	m.parses.Add(1)
	file, err := m.parser.Parse(ctx, f.Path, src, f.Language)
	if err != nil {
		m.parseFailures.Add(1)
		return nil, scopeerrors.New(scopeerrors.ParseFailure, fmt.Sprintf("parse %s", f.Path), err).
			WithDetails(map[string]string{"path": f.Path})
	}

	m.session.Put(f.Language, fp, file)
	if m.persistent != nil {
		if err := m.persistent.Put(ctx, fp, f.Language, file); err != nil {
			m.logger.Warn("Failed to persist parsed file", "path", f.Path, "error", err)
		}
	}
	return file, nil
}

// Stats snapshots the counters of both tiers.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Session:       m.session.Stats(),
		Parses:        m.parses.Load(),
		ParseFailures: m.parseFailures.Load(),
	}
	if m.persistent != nil {
		ps, err := m.persistent.Stats(ctx)
		if err != nil {
			return stats, err
		}
		stats.Persistent = &ps
	}
	return stats, nil
}

// Purge clears both tiers and returns the number of persistent rows removed.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	m.session.Purge()
	if m.persistent == nil {
		return 0, nil
	}
	return m.persistent.Purge(ctx)
}

// Close flushes the session tier. It does not close the database.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.session.Purge()
	if m.persistent != nil {
		m.persistent.Close()
	}
	return nil
}
