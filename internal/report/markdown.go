package report

import (
	"fmt"
	"strings"

	"codescope/internal/compression"
	"codescope/internal/output"
)

func renderMarkdown(r *Report) string {
	var b strings.Builder

	b.WriteString("# codescope report\n\n")
	writeOverview(&b, r)

	for _, sec := range r.Sections {
		b.WriteString(fmt.Sprintf("## %s\n\n", sec.Title))
		if sec.Partial {
			b.WriteString(fmt.Sprintf("> Partial: %s\n\n", sec.Note))
		}
		if len(sec.Items) == 0 {
			b.WriteString("_Nothing to report._\n\n")
			continue
		}
		switch sec.ID {
		case SectionHotspots:
			writeHotspots(&b, r)
		case SectionFiles:
			writeFiles(&b, sec.Items)
		default:
			for _, it := range sec.Items {
				writeItem(&b, it)
			}
			b.WriteString("\n")
		}
	}

	if r.Mermaid != "" {
		b.WriteString("## Dependency graph\n\n```mermaid\n")
		b.WriteString(r.Mermaid)
		if !strings.HasSuffix(r.Mermaid, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n\n")
	}

	writeRunDetails(&b, r)
	return b.String()
}

func writeOverview(b *strings.Builder, r *Report) {
	s := r.Summary
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|:-------|------:|\n")
	if lang := r.Metadata.Detection.Primary(); lang.Known() {
		b.WriteString(fmt.Sprintf("| Primary language | %s |\n", lang))
	}
	b.WriteString(fmt.Sprintf("| Files | %d |\n", s.Files))
	b.WriteString(fmt.Sprintf("| Functions | %d |\n", s.Functions))
	b.WriteString(fmt.Sprintf("| Dependency edges | %d |\n", s.Edges))
	b.WriteString(fmt.Sprintf("| Cycles | %d |\n", s.Cycles))
	b.WriteString(fmt.Sprintf("| Clone groups | %d |\n", s.CloneGroups))
	b.WriteString(fmt.Sprintf("| Debt items | %d |\n", s.DebtItems))
	b.WriteString(fmt.Sprintf("| Dead symbols | %d |\n", s.DeadSymbols))
	b.WriteString(fmt.Sprintf("| High-risk files | %d |\n", s.HighRisk))
	b.WriteString(fmt.Sprintf("| Median risk | %s |\n", output.FormatFloat(s.MedianRisk)))
	b.WriteString(fmt.Sprintf("| Max risk | %s |\n", output.FormatFloat(s.MaxRisk)))
	b.WriteString("\n")

	if len(r.Metadata.Partial) > 0 {
		b.WriteString(fmt.Sprintf("**Partial sections:** %s\n\n", strings.Join(r.Metadata.Partial, ", ")))
	}
	if t := r.Metadata.Truncation; t.WasTruncated() {
		b.WriteString(fmt.Sprintf("**Truncated:** %s\n\n", t))
	}
}

func writeHotspots(b *strings.Builder, r *Report) {
	b.WriteString("| File | Risk | Level | Complexity | Churn | Debt | Duplication | Dead code |\n")
	b.WriteString("|:-----|-----:|:------|-----------:|------:|-----:|------------:|----------:|\n")
	for _, s := range r.Hotspots {
		c := s.Components
		b.WriteString(fmt.Sprintf("| `%s` | %.2f | %s | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
			s.Path, s.Composite, s.Level, c.Complexity, c.Churn, c.Debt, c.Duplication, c.DeadCode))
	}
	b.WriteString("\n")
}

func writeFiles(b *strings.Builder, items []compression.Item) {
	for _, it := range items {
		if it.IsContainer() {
			b.WriteString(fmt.Sprintf("\n### `%s`\n\n", it.Title))
			continue
		}
		writeItem(b, it)
	}
	b.WriteString("\n")
}

func writeItem(b *strings.Builder, it compression.Item) {
	line := fmt.Sprintf("- **%s**", it.Title)
	if it.Line > 0 && it.Kind != compression.KindCloneGroup {
		line += fmt.Sprintf(" (`%s:%d`)", it.Path, it.Line)
	}
	if it.Body != "" {
		line += ": " + it.Body
	}
	b.WriteString(line + "\n")
}

func writeRunDetails(b *strings.Builder, r *Report) {
	m := r.Metadata
	b.WriteString("<details>\n<summary>Run details</summary>\n\n")
	b.WriteString(fmt.Sprintf("Run `%s`, snapshot `%s`, codescope %s.\n\n", m.RunID, m.SnapshotID, m.Version))

	b.WriteString("| Stage | Status | Required | Reused | Duration | Cause |\n")
	b.WriteString("|:------|:-------|:--------:|:------:|---------:|:------|\n")
	for _, st := range m.Stages {
		b.WriteString(fmt.Sprintf("| %s | %s | %v | %v | %dms | %s |\n",
			st.ID, st.Status, st.Required, st.Reused, st.DurationMs, st.Cause))
	}
	b.WriteString("\n")

	if len(m.ParseFailures) > 0 {
		b.WriteString("Parse failures:\n\n")
		for _, f := range m.ParseFailures {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", f.Path, f.Error))
		}
		b.WriteString("\n")
	}
	if len(m.Notes) > 0 {
		b.WriteString("Notes:\n\n")
		for _, n := range m.Notes {
			b.WriteString("- " + n + "\n")
		}
		b.WriteString("\n")
	}
	if inc := m.Incremental; inc != nil {
		b.WriteString(fmt.Sprintf("Incremental: +%d ~%d -%d, %d affected, centrality reused: %v, risk: %s.\n\n",
			inc.Added, inc.Modified, inc.Removed, inc.Affected, inc.CentralityReused, inc.RiskMode))
	}
	b.WriteString("</details>\n")
}
