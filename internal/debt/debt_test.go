package debt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/analysis"
	"codescope/internal/project"
	"codescope/internal/testutil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text     string
		category Category
		severity analysis.Severity
	}{
		{"// TODO: add retries", CategoryRequirement, analysis.SeverityLow},
		{"// FIXME this is broken", CategoryDefect, analysis.SeverityHigh},
		{"# hack around the API", CategoryDesign, analysis.SeverityMedium},
		{"// possible CVE here", CategorySecurity, analysis.SeverityCritical},
		{"// known performance issue", CategoryPerformance, analysis.SeverityMedium},
		{"// test is disabled on windows", CategoryTest, analysis.SeverityMedium},
		{"/* technical debt */", CategoryDesign, analysis.SeverityMedium},
		{"// temporary workaround", CategoryDesign, analysis.SeverityLow},
		{"// this loop is slow", CategoryPerformance, analysis.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, ok := Classify(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.category, p.Category)
			assert.Equal(t, tt.severity, p.Severity)
		})
	}

	_, ok := Classify("// returns the todos list")
	assert.False(t, ok, "word boundaries must hold")
	_, ok = Classify("// plain explanation")
	assert.False(t, ok)
}

func TestScan_ContextAdjustsSeverity(t *testing.T) {
	src := `// TODO: top level
func Tangled cc=25
// TODO: split
end
func validateToken cc=2
// TODO: harden
end
func calm cc=2
// TODO: rename
end
`
	file, err := testutil.ParseStub("pkg/a.go", []byte(src), project.LangGo)
	require.NoError(t, err)

	items := Scan(file, DefaultEscalateComplexity)
	require.Len(t, items, 4)
	assert.Equal(t, analysis.SeverityLow, items[0].Severity)
	assert.Equal(t, "", items[0].Function)
	assert.Equal(t, analysis.SeverityMedium, items[1].Severity, "complex function escalates")
	assert.Equal(t, "Tangled", items[1].Function)
	assert.Equal(t, analysis.SeverityMedium, items[2].Severity, "sensitive function escalates")
	assert.Equal(t, analysis.SeverityLow, items[3].Severity)
	assert.Equal(t, "TODO: split", items[1].Text)
}

func TestScan_TestFilesReduce(t *testing.T) {
	file, err := testutil.ParseStub("pkg/a_test.go", []byte("// FIXME flaky\n"), project.LangGo)
	require.NoError(t, err)
	items := Scan(file, DefaultEscalateComplexity)
	require.Len(t, items, 1)
	assert.Equal(t, analysis.SeverityMedium, items[0].Severity)
}

func TestStage_Run(t *testing.T) {
	a, _ := testutil.ParseStub("a.go", []byte("// BUG: off by one\n"), project.LangGo)
	out, err := NewStage().Run(context.Background(), &analysis.Input{
		Files: []*analysis.SourceFile{{Path: "a.go", AST: a}},
	})
	require.NoError(t, err)
	require.Len(t, out.Debt, 1)
	assert.Equal(t, "defect", out.Debt[0].Category)
	assert.Len(t, Unresolved(out.Debt, analysis.SeverityMedium), 1)
	assert.Empty(t, Unresolved(nil, analysis.SeverityLow))
}

func TestUnresolved_FiltersBySeverity(t *testing.T) {
	items := []analysis.DebtItem{
		{Path: "a.go", Line: 1, Severity: analysis.SeverityLow},
		{Path: "a.go", Line: 2, Severity: analysis.SeverityMedium},
		{Path: "a.go", Line: 3, Severity: analysis.SeverityCritical},
	}
	got := Unresolved(items, analysis.SeverityMedium)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Line)
	assert.Equal(t, 3, got[1].Line)
}
