// Package debt detects self-admitted technical debt in source comments.
package debt

import (
	"context"
	"strings"
	"unicode/utf8"

	"codescope/internal/analysis"
	"codescope/internal/ast"
	"codescope/internal/project"
)

// DefaultEscalateComplexity is the cyclomatic complexity above which a debt
// comment inside the function is one severity level worse.
const DefaultEscalateComplexity = 20

const maxTextRunes = 200

// Stage scans the comments of each file.
type Stage struct{}

// NewStage creates the debt stage.
func NewStage() *Stage {
	return &Stage{}
}

func (s *Stage) ID() analysis.StageID  { return analysis.StageDebt }
func (s *Stage) Scope() analysis.Scope { return analysis.ScopePerFile }

// Run classifies every comment of the partition.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	threshold := DefaultEscalateComplexity
	if in.Config != nil && in.Config.Debt.EscalateComplexity > 0 {
		threshold = in.Config.Debt.EscalateComplexity
	}

	out := &analysis.Output{}
	for _, f := range in.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.AST == nil {
			continue
		}
		out.Debt = append(out.Debt, Scan(f.AST, threshold)...)
	}
	return out, nil
}

// Scan returns the debt items of one file.
func Scan(file *ast.File, escalateAbove int) []analysis.DebtItem {
	isTest := project.IsTestPath(file.Path)
	var items []analysis.DebtItem
	for _, c := range file.Comments {
		p, ok := Classify(c.Text)
		if !ok {
			continue
		}
		item := analysis.DebtItem{
			Path:     file.Path,
			Category: string(p.Category),
			Severity: p.Severity,
			Line:     c.Line,
			Text:     cleanComment(c.Text),
		}

		fn := file.FunctionAt(c.Line)
		switch {
		case isTest:
			item.Severity = item.Severity.Reduce()
		case fn != nil && sensitiveFunction.MatchString(fn.Name):
			item.Severity = item.Severity.Escalate()
		case fn != nil && fn.Cyclomatic > escalateAbove:
			item.Severity = item.Severity.Escalate()
		}
		if fn != nil {
			item.Function = fn.QualifiedName()
		}
		items = append(items, item)
	}
	return items
}

// cleanComment strips comment markers and bounds the length.
func cleanComment(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"///", "//", "/**", "/*", "#", "--"} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			break
		}
	}
	text = strings.TrimSpace(strings.TrimSuffix(text, "*/"))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		runes := []rune(text)
		text = string(runes[:maxTextRunes]) + "..."
	}
	return text
}

// Unresolved returns the items at or above min, in order.
func Unresolved(items []analysis.DebtItem, min analysis.Severity) []analysis.DebtItem {
	var out []analysis.DebtItem
	for _, it := range items {
		if it.Severity.Rank() >= min.Rank() {
			out = append(out, it)
		}
	}
	return out
}
