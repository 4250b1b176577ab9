package incremental

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/analysis"
	"codescope/internal/cache"
	"codescope/internal/complexity"
	"codescope/internal/config"
	"codescope/internal/deadcode"
	"codescope/internal/debt"
	"codescope/internal/depgraph"
	"codescope/internal/duplicates"
	"codescope/internal/pipeline"
	"codescope/internal/report"
	"codescope/internal/scan"
	"codescope/internal/slogutil"
	"codescope/internal/snapshot"
	"codescope/internal/testutil"
)

var fixtureTree = map[string]string{
	"main.go": `package main
func main
call Serve
end
`,
	"server.go": `package main
func Serve cc=4
call parse
end
`,
	"util.go": `package main
// TODO: handle malformed input
func parse cc=2
end
func unused
end
`,
	"other.go": `package main
func Other cc=3
end
`,
}

var testStages = []analysis.StageID{
	analysis.StageComplexity,
	analysis.StageDeadCode,
	analysis.StageDebt,
	analysis.StageDuplicates,
	analysis.StageGraph,
}

type harness struct {
	builder *Builder
	cache   *cache.Manager
	parser  *testutil.StubParser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slogutil.NewDiscardLogger()
	cfg := config.DefaultConfig()
	cfg.Pipeline.Workers = 4

	parser := testutil.NewStubParser()
	manager := cache.NewManager(parser, cache.Options{Mode: cache.ModeStat, SessionEntries: 100}, logger)
	t.Cleanup(func() { _ = manager.Close() })

	registry := pipeline.NewRegistry(
		complexity.NewStage(),
		deadcode.NewStage(),
		debt.NewStage(),
		duplicates.NewStage(),
		depgraph.NewStage(),
	)
	runner := pipeline.NewRunner(registry, pipeline.RunnerConfig{Workers: 4}, logger)
	return &harness{builder: NewBuilder(manager, runner, cfg, logger), cache: manager, parser: parser}
}

func (h *harness) input(t *testing.T, root string) Input {
	t.Helper()
	files := scan.Sources(testutil.ScanFiles(t, root))
	fps := make(map[string]string, len(files))
	for _, f := range files {
		fp, err := h.cache.Fingerprint(f)
		require.NoError(t, err)
		fps[f.Path] = string(fp)
	}
	return Input{Root: root, Files: files, Fingerprints: fps, Stages: testStages}
}

// assertEquivalent compares everything a report is derived from.
func assertEquivalent(t *testing.T, want, got *snapshot.Snapshot) {
	t.Helper()
	assert.Equal(t, want.Paths(), got.Paths())
	assert.Equal(t, want.Fingerprints(), got.Fingerprints())
	assert.Equal(t, testutil.Normalize(t, want.Results), testutil.Normalize(t, got.Results))
	assert.Equal(t, testutil.Normalize(t, want.Graph), testutil.Normalize(t, got.Graph))
	assert.Equal(t, testutil.Normalize(t, want.Centrality), testutil.Normalize(t, got.Centrality))
	assert.Equal(t, want.RiskInputs, got.RiskInputs)
	assert.Equal(t, testutil.Normalize(t, want.Risk), testutil.Normalize(t, got.Risk))
	assert.Equal(t, want.ParseFailures, got.ParseFailures)

	wantReport := report.Build(want, report.BuildOptions{})
	gotReport := report.Build(got, report.BuildOptions{})
	assert.Equal(t, testutil.Normalize(t, wantReport.Sections), testutil.Normalize(t, gotReport.Sections))
	assert.Equal(t, wantReport.Summary, gotReport.Summary)
}

func TestUpdate_ModifiedFileMatchesFullBuild(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)
	require.True(t, first.Full)
	require.Len(t, first.Snapshot.Files, 4)
	assert.Equal(t, int64(4), h.parser.Calls())

	testutil.Touch(t, root, "util.go", `package main
// TODO: handle malformed input
func parse cc=9
end
func unused
end
`)
	in := h.input(t, root)
	changes := snapshot.Diff(first.Snapshot, in.Files, in.Fingerprints)
	require.Equal(t, []string{"util.go"}, changes.Modified)

	updated, err := h.builder.Update(ctx, first.Snapshot, in, changes)
	require.NoError(t, err)

	assert.False(t, updated.Full)
	assert.Equal(t, int64(5), h.parser.Calls(), "only the modified file is parsed again")
	assert.Equal(t, []string{"main.go", "server.go", "util.go"}, updated.Affected)
	assert.True(t, updated.CentralityReused)
	assert.Equal(t, RiskIncremental, updated.RiskMode)

	prevOther, _ := first.Snapshot.Record("other.go")
	nextOther, _ := updated.Snapshot.Record("other.go")
	assert.Same(t, prevOther, nextOther)

	fresh, err := newHarness(t).builder.Full(ctx, in)
	require.NoError(t, err)
	assertEquivalent(t, fresh.Snapshot, updated.Snapshot)
}

func TestUpdate_RemovedFileRescoresGlobally(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)

	testutil.Remove(t, root, "other.go")
	in := h.input(t, root)
	changes := snapshot.Diff(first.Snapshot, in.Files, in.Fingerprints)
	require.Equal(t, []string{"other.go"}, changes.Removed)

	updated, err := h.builder.Update(ctx, first.Snapshot, in, changes)
	require.NoError(t, err)
	assert.Equal(t, RiskFull, updated.RiskMode)
	assert.False(t, updated.CentralityReused)
	assert.Empty(t, updated.Affected)

	fresh, err := newHarness(t).builder.Full(ctx, in)
	require.NoError(t, err)
	assertEquivalent(t, fresh.Snapshot, updated.Snapshot)
}

func TestUpdate_AddedFileMatchesFullBuild(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)

	testutil.WriteFile(t, root, "client.go", `package main
func Dial cc=2
call Other
end
`)
	in := h.input(t, root)
	changes := snapshot.Diff(first.Snapshot, in.Files, in.Fingerprints)
	require.Equal(t, []string{"client.go"}, changes.Added)

	updated, err := h.builder.Update(ctx, first.Snapshot, in, changes)
	require.NoError(t, err)
	assert.Equal(t, []string{"client.go"}, updated.Affected)
	assert.Equal(t, RiskFull, updated.RiskMode)

	fresh, err := newHarness(t).builder.Full(ctx, in)
	require.NoError(t, err)
	assertEquivalent(t, fresh.Snapshot, updated.Snapshot)
}

func TestUpdate_NoChangesReusesEverything(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)
	calls := h.parser.Calls()

	in := h.input(t, root)
	changes := snapshot.Diff(first.Snapshot, in.Files, in.Fingerprints)
	require.True(t, changes.Empty())

	updated, err := h.builder.Update(ctx, first.Snapshot, in, changes)
	require.NoError(t, err)
	assert.Equal(t, calls, h.parser.Calls())
	assert.Empty(t, updated.Affected)
	assert.True(t, updated.CentralityReused)
	assert.Equal(t, RiskReused, updated.RiskMode)
	assert.Same(t, first.Snapshot.Risk, updated.Snapshot.Risk)
	assertEquivalent(t, first.Snapshot, updated.Snapshot)

	rep, ok := updated.Snapshot.Stage(analysis.StageGraph)
	require.True(t, ok)
	assert.True(t, rep.Reused, "graph stage should come from the memo")
}

func TestUpdate_StaleConfigRunsFull(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)

	stale := *first.Snapshot
	stale.ConfigKey = "stale"
	in := h.input(t, root)

	updated, err := h.builder.Update(ctx, &stale, in, snapshot.Diff(&stale, in.Files, in.Fingerprints))
	require.NoError(t, err)
	assert.True(t, updated.Full)
	assert.Len(t, updated.Affected, 4)
	assertEquivalent(t, first.Snapshot, updated.Snapshot)
}

func TestUpdate_HydratesStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	root := testutil.WriteTree(t, fixtureTree)
	h := newHarness(t)

	first, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)

	// A snapshot read back from the store carries no ASTs
	stored := *first.Snapshot
	stored.Files = nil
	for _, rec := range first.Snapshot.Files {
		copied := *rec
		copied.AST = nil
		stored.Files = append(stored.Files, &copied)
	}
	calls := h.parser.Calls()

	in := h.input(t, root)
	updated, err := h.builder.Update(ctx, &stored, in, snapshot.Diff(&stored, in.Files, in.Fingerprints))
	require.NoError(t, err)
	assert.Equal(t, calls, h.parser.Calls(), "hydration is served by the cache")
	for _, rec := range updated.Snapshot.Files {
		assert.NotNil(t, rec.AST, rec.Path)
	}
	for _, rec := range stored.Files {
		assert.Nil(t, rec.AST, "stored records must not be mutated")
	}
	assertEquivalent(t, first.Snapshot, updated.Snapshot)
}

func TestFull_ParseFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	tree := map[string]string{"broken.go": "package main\n!error\n"}
	for k, v := range fixtureTree {
		tree[k] = v
	}
	root := testutil.WriteTree(t, tree)
	h := newHarness(t)

	res, err := h.builder.Full(ctx, h.input(t, root))
	require.NoError(t, err)
	require.Len(t, res.Snapshot.ParseFailures, 1)
	assert.Equal(t, "broken.go", res.Snapshot.ParseFailures[0].Path)
	assert.Contains(t, res.Snapshot.ParseFailures[0].Error, "syntax error")

	rec, ok := res.Snapshot.Record("broken.go")
	require.True(t, ok)
	assert.Nil(t, rec.AST)
	for _, m := range res.Snapshot.RiskInputs {
		assert.NotEqual(t, "broken.go", m.Path)
	}
}

func TestDependentFiles(t *testing.T) {
	edges := []analysis.DependencyEdge{
		{From: "cmd/main.go", To: "pkg/a.go", Weight: 1, Kind: "import"},
		{From: "pkg/a.go", To: "pkg/b.go", Weight: 1, Kind: "call"},
		{From: "x.go", To: "y.go", Weight: 1, Kind: "call"},
	}
	files := []string{"cmd/main.go", "pkg/a.go", "pkg/b.go", "x.go", "y.go"}

	assert.Equal(t, []string{"cmd/main.go", "pkg/a.go"}, dependentFiles(edges, []string{"pkg/b.go"}, files))
	assert.Empty(t, dependentFiles(edges, []string{"cmd/main.go"}, files))
	assert.Nil(t, dependentFiles(nil, []string{"pkg/b.go"}, files))

	modules := []analysis.DependencyEdge{{From: "cmd", To: "pkg", Weight: 1, Kind: "import"}}
	assert.Equal(t, []string{"cmd/main.go"}, dependentFiles(modules, []string{"pkg/b.go"}, files))

	functions := []analysis.DependencyEdge{{From: "x.go#Run", To: "y.go#helper", Weight: 1, Kind: "call"}}
	assert.Equal(t, []string{"x.go"}, dependentFiles(functions, []string{"y.go"}, files))
}

func TestFormatStats(t *testing.T) {
	assert.Equal(t, "Full analysis: 4 files, 1 parse failures", FormatStats(Stats{Full: true, Files: 4, ParseFailures: 1}))
	assert.Equal(t, "No changes: 4 files, results reused", FormatStats(Stats{Files: 4}))
	assert.Equal(t,
		"Incremental analysis: +0 ~1 -0, 3 affected of 4 files, centrality reused, risk incremental",
		FormatStats(Stats{Files: 4, Modified: 1, Affected: 3, CentralityReused: true, RiskMode: RiskIncremental}))
}
