package depgraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"codescope/internal/analysis"
	"codescope/internal/testutil"
)

func edgeSet(out *analysis.Output) map[string]float64 {
	set := make(map[string]float64)
	for _, e := range out.Edges {
		set[e.From+" -> "+e.To+" ("+e.Kind+")"] = e.Weight
	}
	return set
}

func runStage(t *testing.T, in *analysis.Input) *analysis.Output {
	t.Helper()
	out, err := NewStage().Run(context.Background(), in)
	require.NoError(t, err)
	return out
}

func TestRun_GoModuleImportsAndCalls(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"cmd/app/main.go":              "package main\nimport example.com/app/internal/store\nimport fmt\nfunc main\ncall store.Open\ncall fmt.Println\nend\n",
		"internal/store/store.go":      "package store\nfunc Open\nend\n",
		"internal/store/store_test.go": "package store\nfunc TestOpen\ncall Open\nend\n",
	})
	testutil.WriteFile(t, in.Root, "go.mod", "module example.com/app\n\ngo 1.24\n")

	got := edgeSet(runStage(t, in))
	assert.Equal(t, map[string]float64{
		"cmd/app/main.go -> internal/store/store.go (import)":            1,
		"cmd/app/main.go -> internal/store/store.go (call)":              1,
		"internal/store/store_test.go -> internal/store/store.go (call)": 1,
	}, got)
}

func TestRun_GoWithoutModuleFile(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"main.go":       "package main\nimport github.com/acme/tool/pkg/util\n",
		"pkg/util/a.go": "package util\n",
		"pkg/util/b.go": "package util\n",
	})
	got := edgeSet(runStage(t, in))
	assert.Equal(t, map[string]float64{
		"main.go -> pkg/util/a.go (import)": 0.5,
		"main.go -> pkg/util/b.go (import)": 0.5,
	}, got)
}

func TestRun_OtherLanguages(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"web/app.ts":     "import ./util\nimport react\n",
		"web/util.ts":    "func helper\nend\n",
		"pkg/main.py":    "import pkg.models\nimport .helpers\n",
		"pkg/models.py":  "type User\n",
		"pkg/helpers.py": "func slug\nend\n",
		"src/main.rs":    "import crate::config::{Config, load}\nimport std::fs\n",
		"src/config.rs":  "type Config\n",

		"src/main/java/com/acme/App.java":          "import com.acme.util.Strings\n",
		"src/main/java/com/acme/util/Strings.java": "type Strings\n",
	})
	got := edgeSet(runStage(t, in))
	for _, want := range []string{
		"web/app.ts -> web/util.ts (import)",
		"pkg/main.py -> pkg/models.py (import)",
		"pkg/main.py -> pkg/helpers.py (import)",
		"src/main.rs -> src/config.rs (import)",
		"src/main/java/com/acme/App.java -> src/main/java/com/acme/util/Strings.java (import)",
	} {
		assert.Contains(t, got, want)
	}
	assert.Len(t, got, 5, "package imports stay out of the graph: %v", got)
}

func TestRun_AmbiguousCallsSkipped(t *testing.T) {
	files := map[string]string{"main.go": "func main\ncall String\ncall render\nend\n"}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		files[name+".go"] = "func String\nend\n"
	}
	files["view.go"] = "func render\nend\n"

	got := edgeSet(runStage(t, testutil.StubInput(t, files)))
	assert.Equal(t, map[string]float64{"main.go -> view.go (call)": 1}, got)
}

func TestRun_ModuleGranularity(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"api/handler.go": "func Handle\ncall Save\ncall validate\nend\nfunc validate\nend\n",
		"store/db.go":    "func Save\nend\n",
		"store/cache.go": "func Get\ncall Save\nend\n",
	})
	in.Config.Graph.Granularity = "module"
	got := edgeSet(runStage(t, in))
	assert.Equal(t, map[string]float64{"api -> store (call)": 1}, got)
}

func TestRun_FunctionGranularity(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"a.go": "func main\ncall run\nend\nfunc run\ncall run\ncall Server.Start\nend\n",
		"b.go": "func Server.Start\nend\n",
	})
	in.Config.Graph.Granularity = "function"
	got := edgeSet(runStage(t, in))
	assert.Equal(t, map[string]float64{
		"a.go#main -> a.go#run (call)":         1,
		"a.go#run -> b.go#Server.Start (call)": 1,
	}, got)
	assert.Equal(t, "b.go", NodeFile("b.go#Server.Start"))
}

func writeIndex(t *testing.T, root string, index *scippb.Index) {
	t.Helper()
	data, err := proto.Marshal(index)
	require.NoError(t, err)
	p := filepath.Join(root, ".scip", "index.scip")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestRun_MergesSCIPReferences(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package a\n",
	})
	const sym = "scip-go gomod example.com/app v1 `example.com/app`/Load()."
	writeIndex(t, in.Root, &scippb.Index{
		Documents: []*scippb.Document{
			{RelativePath: "a.go", Occurrences: []*scippb.Occurrence{
				{Range: []int32{3, 5, 9}, Symbol: sym, SymbolRoles: int32(scippb.SymbolRole_Definition)},
			}},
			{RelativePath: "b.go", Occurrences: []*scippb.Occurrence{
				{Range: []int32{7, 1, 5}, Symbol: sym},
				{Range: []int32{8, 1, 5}, Symbol: sym},
				{Range: []int32{9, 1, 2}, Symbol: "local 4"},
			}},
			{RelativePath: "vendor/x.go", Occurrences: []*scippb.Occurrence{
				{Range: []int32{1, 1, 5}, Symbol: sym},
			}},
		},
	})

	got := edgeSet(runStage(t, in))
	assert.InDelta(t, 1.6, got["b.go -> a.go (reference)"], 1e-9)
	assert.Len(t, got, 1)
}

func TestRun_CorruptSCIPIndexIsNoted(t *testing.T) {
	in := testutil.StubInput(t, map[string]string{"a.go": "package a\n"})
	testutil.WriteFile(t, in.Root, ".scip/index.scip", "not a protobuf \xff\xff\xff")

	out := runStage(t, in)
	assert.Empty(t, out.Edges)
	require.Len(t, out.Notes, 1)
	assert.True(t, strings.HasPrefix(out.Notes[0], "graph: SCIP index ignored"))
}

func TestSuffixes(t *testing.T) {
	assert.Equal(t, []string{"a/b/c", "b/c", "c"}, suffixes("a/b/c"))
	assert.Nil(t, suffixes("."))
}

func TestFileScores(t *testing.T) {
	files := []string{"a.go", "pkg/b.go", "pkg/c.go"}
	got := FileScores(map[string]float64{
		"a.go#Run":   0.1,
		"a.go#Stop":  0.2,
		"pkg/b.go":   0.3,
		"pkg":        0.4,
		"elsewhere/": 0.5,
	}, files)

	assert.InDelta(t, 0.3, got["a.go"], 1e-9)
	assert.InDelta(t, 0.5, got["pkg/b.go"], 1e-9)
	assert.InDelta(t, 0.2, got["pkg/c.go"], 1e-9)
	assert.Len(t, got, 3)
}
