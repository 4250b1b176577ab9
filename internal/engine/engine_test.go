package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/config"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/output"
	"codescope/internal/report"
	"codescope/internal/slogutil"
	"codescope/internal/testutil"
)

var tree = map[string]string{
	"main.go": `package main
func main
call Serve
end
`,
	"server.go": `package main
// FIXME: this leaks connections
func Serve cc=6
call decode
end
`,
	"codec.go": `package main
func decode cc=3
end
func Encode cc=2
end
`,
}

// analyzeOpts skips churn: fixtures are not git repositories and the
// modification-time fallback depends on the wall clock.
var analyzeOpts = Options{Exclude: []string{"churn"}}

func newEngine(t *testing.T, dir string) (*Engine, *testutil.StubParser) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = dir
	parser := testutil.NewStubParser()
	e, err := NewWithParser(cfg, parser, slogutil.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, parser
}

func TestAnalyze_ReusesCachedASTs(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)
	e, parser := newEngine(t, t.TempDir())

	first, err := e.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), parser.Calls())
	assert.Equal(t, 3, first.Summary.Files)
	assert.Equal(t, 4, first.Summary.Functions)
	assert.Nil(t, first.Metadata.Incremental)

	opts := analyzeOpts
	opts.Incremental = true
	second, err := e.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), parser.Calls(), "unchanged fingerprints must not be parsed again")
	require.NotNil(t, second.Metadata.Incremental)
	assert.Equal(t, "reused", second.Metadata.Incremental.RiskMode)
	assert.Equal(t, testutil.Normalize(t, first.Sections), testutil.Normalize(t, second.Sections))

	testutil.Touch(t, root, "codec.go", "package main\nfunc decode cc=8\nend\nfunc Encode cc=2\nend\n")
	third, err := e.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), parser.Calls())
	assert.Equal(t, 1, third.Metadata.Incremental.Modified)
}

func TestAnalyze_PersistsAcrossEngines(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)
	dir := t.TempDir()

	e1, _ := newEngine(t, dir)
	first, err := e1.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2, parser := newEngine(t, dir)
	opts := analyzeOpts
	opts.Incremental = true
	second, err := e2.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Zero(t, parser.Calls(), "ASTs come from the persistent tier")
	assert.Equal(t, testutil.Normalize(t, first.Sections), testutil.Normalize(t, second.Sections))
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAnalyze_IncrementalRendersLikeFull(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)

	inc, _ := newEngine(t, t.TempDir())
	_, err := inc.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)

	testutil.Touch(t, root, "server.go", "package main\n// FIXME: this leaks connections\nfunc Serve cc=14\ncall decode\ncall Encode\nend\n")
	opts := analyzeOpts
	opts.Incremental = true
	updated, err := inc.Analyze(ctx, root, opts)
	require.NoError(t, err)
	require.NotNil(t, updated.Metadata.Incremental)
	assert.False(t, updated.Metadata.Incremental.Full)

	fresh, _ := newEngine(t, t.TempDir())
	full, err := fresh.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)

	a, err := report.Render(updated, report.FormatJSON)
	require.NoError(t, err)
	b, err := report.Render(full, report.FormatJSON)
	require.NoError(t, err)
	equal, diff := output.CompareSnapshots(a, b)
	assert.True(t, equal, diff)
}

func TestAnalyze_CacheTTLOverride(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)
	e, parser := newEngine(t, t.TempDir())

	_, err := e.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)
	require.Equal(t, int64(3), parser.Calls())

	opts := analyzeOpts
	opts.CacheTTL = time.Hour
	_, err = e.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), parser.Calls(), "entries younger than the override are reused")

	time.Sleep(20 * time.Millisecond)
	opts.CacheTTL = 10 * time.Millisecond
	_, err = e.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(6), parser.Calls(), "entries older than the override are parsed again")
}

func TestAnalyze_NoCacheParsesEverything(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)
	e, parser := newEngine(t, t.TempDir())

	opts := analyzeOpts
	opts.NoCache = true
	for i := 1; i <= 2; i++ {
		_, err := e.Analyze(ctx, root, opts)
		require.NoError(t, err)
		assert.Equal(t, int64(3*i), parser.Calls())
	}

	stats, err := e.CacheStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Snapshots)
}

func TestAnalyze_InvalidOptions(t *testing.T) {
	root := testutil.WriteTree(t, tree)
	e, _ := newEngine(t, t.TempDir())

	tests := []struct {
		name string
		opts Options
	}{
		{"unknown stage", Options{Stages: []string{"complexity,nope"}}},
		{"empty selection", Options{Exclude: []string{"all"}}},
		{"unknown format", Options{Format: "pdf"}},
		{"negative budget", Options{MaxBytes: -1}},
		{"negative workers", Options{Workers: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Analyze(context.Background(), root, tt.opts)
			require.Error(t, err)
			assert.Equal(t, scopeerrors.InvalidOptions, scopeerrors.CodeOf(err))
		})
	}

	_, err := e.Analyze(context.Background(), root+"/missing", Options{})
	assert.Equal(t, scopeerrors.InvalidOptions, scopeerrors.CodeOf(err))
}

func TestAnalyze_DetectionFailure(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"notes.txt": "nothing to see\n"})
	e, _ := newEngine(t, t.TempDir())

	_, err := e.Analyze(context.Background(), root, Options{})
	require.Error(t, err)
	assert.Equal(t, scopeerrors.DetectionFailure, scopeerrors.CodeOf(err))

	det, err := e.Detect(context.Background(), root)
	require.Error(t, err)
	assert.True(t, det.Undetected)
}

func TestDetect(t *testing.T) {
	root := testutil.WriteTree(t, tree)
	e, _ := newEngine(t, t.TempDir())

	det, err := e.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "go", string(det.Primary()))
}

func TestPurgeCache(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, tree)
	e, parser := newEngine(t, t.TempDir())

	_, err := e.Analyze(ctx, root, analyzeOpts)
	require.NoError(t, err)

	stats, err := e.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Snapshots)
	require.NotNil(t, stats.Persistent)
	assert.Equal(t, int64(3), stats.Persistent.Entries)

	removed, err := e.PurgeCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	opts := analyzeOpts
	opts.Incremental = true
	_, err = e.Analyze(ctx, root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(6), parser.Calls(), "a purged cache parses again")
}

func TestAnalyze_RenderEveryFormat(t *testing.T) {
	root := testutil.WriteTree(t, tree)
	e, _ := newEngine(t, t.TempDir())

	r, err := e.Analyze(context.Background(), root, Options{Stages: []string{"complexity", "graph", "debt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		report.SectionHotspots, report.SectionRecommendations, report.SectionDuplicates, report.SectionFiles,
	}, r.Metadata.Partial)

	for _, f := range report.Formats {
		out, err := report.Render(r, f)
		require.NoError(t, err, f)
		assert.NotEmpty(t, out, f)
	}
}

func TestClose(t *testing.T) {
	e, _ := newEngine(t, t.TempDir())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Analyze(context.Background(), ".", Options{})
	assert.Equal(t, scopeerrors.InternalError, scopeerrors.CodeOf(err))
}
