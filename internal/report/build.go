package report

import (
	"fmt"
	"strings"

	"codescope/internal/analysis"
	"codescope/internal/ast"
	"codescope/internal/cache"
	"codescope/internal/compression"
	"codescope/internal/debt"
	"codescope/internal/depgraph"
	"codescope/internal/pipeline"
	"codescope/internal/risk"
	"codescope/internal/snapshot"
	"codescope/internal/version"
)

// BuildOptions carries the per-run values that are not part of a snapshot.
type BuildOptions struct {
	RunID string
	// MaxBytes bounds the report rendered in Format; 0 is unlimited.
	MaxBytes    int
	Format      Format
	DurationMs  int64
	Incremental *IncrementalInfo
	Cache       *cache.Stats
}

// Build turns a snapshot into a pruned report. It never fails: missing
// stage results leave their sections empty and marked partial.
func Build(snap *snapshot.Snapshot, opts BuildOptions) *Report {
	results := snap.Results
	if results == nil {
		results = &analysis.Output{}
	}

	items := Items(snap)
	compression.Score(items, scoringContext(snap, results))
	if opts.MaxBytes <= 0 {
		return assemble(snap, results, items, compression.Budget{}, opts, frameLimits[0])
	}
	return fit(snap, results, items, opts)
}

// frameLimit caps the parts of a report that grow with the project but are
// not pruned items. A negative cap keeps every entry.
type frameLimit struct {
	omitMermaid   bool
	parseFailures int
	notes         int
}

// frameLimits are tried in order until the framing leaves room for items.
var frameLimits = []frameLimit{
	{parseFailures: -1, notes: -1},
	{omitMermaid: true, parseFailures: -1, notes: -1},
	{omitMermaid: true, parseFailures: 10, notes: 10},
	{omitMermaid: true},
}

// fit picks the least restrictive frame limit whose item-free report takes
// at most half of MaxBytes, or failing that fits at all, then shrinks the
// item budget until the rendered report fits. The result exceeds MaxBytes
// only when even the most restricted framing does.
func fit(snap *snapshot.Snapshot, results *analysis.Output, items []compression.Item, opts BuildOptions) *Report {
	size := func(r *Report) int {
		out, err := Render(r, opts.Format)
		if err != nil {
			return 0
		}
		return len(out)
	}
	// A one-byte budget admits no item.
	empty := compression.Budget{MaxBytes: 1}

	framing := make([]int, len(frameLimits))
	for i, lim := range frameLimits {
		framing[i] = size(assemble(snap, results, items, empty, opts, lim))
	}
	choice := len(frameLimits) - 1
	for _, within := range []int{opts.MaxBytes / 2, opts.MaxBytes} {
		if i := firstWithin(framing, within); i >= 0 {
			choice = i
			break
		}
	}
	lim, frame := frameLimits[choice], framing[choice]

	budget := opts.MaxBytes - frame
	for attempt := 0; ; attempt++ {
		if budget < 1 {
			budget = 1
		}
		r := assemble(snap, results, items, compression.Budget{MaxBytes: budget}, opts, lim)
		n := size(r)
		if n <= opts.MaxBytes || budget == 1 {
			return r
		}
		// Rendered items cost more than their estimates; scale the budget
		// by how far the items overshot the room they had.
		next := 1
		if n > frame && opts.MaxBytes > frame {
			next = int(int64(budget) * int64(opts.MaxBytes-frame) / int64(n-frame))
		}
		if attempt >= 8 {
			next = min(next, budget/2)
		}
		budget = min(next, budget-1)
	}
}

func firstWithin(sizes []int, limit int) int {
	for i, n := range sizes {
		if n <= limit {
			return i
		}
	}
	return -1
}

func assemble(snap *snapshot.Snapshot, results *analysis.Output, items []compression.Item, budget compression.Budget, opts BuildOptions, lim frameLimit) *Report {
	pruned := compression.Prune(items, budget)

	r := &Report{
		Metadata: Metadata{
			RunID:         opts.RunID,
			SnapshotID:    snap.ID,
			Root:          snap.Root,
			Version:       version.Version,
			GeneratedAt:   snap.GeneratedAt,
			DurationMs:    opts.DurationMs,
			Detection:     snap.Detection,
			Stages:        snap.Stages,
			ParseFailures: snap.ParseFailures,
			Centrality:    CentralityInfo{Iterations: snap.Centrality.Iterations, Converged: snap.Centrality.Converged},
			Truncation:    pruned.Truncation,
			Compression:   pruned.Metrics,
			Notes:         append(append([]string(nil), snap.Notes...), results.Notes...),
			Incremental:   opts.Incremental,
			Cache:         opts.Cache,
		},
		Summary: summarize(snap, results),
		Mermaid: snap.Graph.Mermaid,
	}
	applyFrameLimit(r, lim)

	for _, def := range sectionOrder {
		sec := Section{ID: def.id, Title: def.title}
		sec.Partial, sec.Note = partial(snap, def.stages)
		sec.Items = sectionItems(pruned, def.kinds)
		if sec.Partial {
			r.Metadata.Partial = append(r.Metadata.Partial, sec.ID)
		}
		r.Sections = append(r.Sections, sec)
	}

	if snap.Risk != nil {
		for _, s := range snap.Risk.Scores {
			if pruned.Has(hotspotID(s.Path)) {
				r.Hotspots = append(r.Hotspots, s)
			}
		}
	}
	return r
}

// applyFrameLimit trims the report's unbounded lists and notes each cut.
func applyFrameLimit(r *Report, lim frameLimit) {
	m := &r.Metadata
	var omitted []string
	if lim.notes >= 0 && len(m.Notes) > lim.notes {
		omitted = append(omitted, fmt.Sprintf("%d notes omitted to fit the size budget", len(m.Notes)-lim.notes))
		m.Notes = m.Notes[:lim.notes]
	}
	if lim.parseFailures >= 0 && len(m.ParseFailures) > lim.parseFailures {
		omitted = append(omitted, fmt.Sprintf("%d parse failures omitted to fit the size budget", len(m.ParseFailures)-lim.parseFailures))
		m.ParseFailures = m.ParseFailures[:lim.parseFailures]
	}
	if lim.omitMermaid && r.Mermaid != "" {
		omitted = append(omitted, "dependency graph omitted to fit the size budget")
		r.Mermaid = ""
	}
	m.Notes = append(m.Notes, omitted...)
	if len(m.ParseFailures) == 0 {
		m.ParseFailures = nil
	}
	if len(m.Notes) == 0 {
		m.Notes = nil
	}
}

// Items builds every candidate item of the snapshot, unscored.
func Items(snap *snapshot.Snapshot) []compression.Item {
	results := snap.Results
	if results == nil {
		results = &analysis.Output{}
	}

	dead := make(map[string]analysis.DeadCodeItem)
	for _, d := range results.DeadCode {
		if !d.Reachable {
			dead[d.Path+"\x00"+d.Name] = d
		}
	}

	var items []compression.Item
	for _, rec := range snap.Files {
		items = append(items, compression.NewContainer(rec.Path))
		if rec.AST == nil {
			continue
		}
		container := compression.ContainerID(rec.Path)
		for _, fn := range rec.AST.Functions {
			name := fn.QualifiedName()
			kind := compression.KindFunction
			switch {
			case fn.EntryPoint:
				kind = compression.KindEntryPoint
			case fn.Exported:
				kind = compression.KindPublicAPI
			}
			it := compression.Item{
				ID:         depgraph.FunctionNode(rec.Path, name),
				Kind:       kind,
				Title:      "func " + name,
				Body:       fmt.Sprintf("cc %d, cognitive %d, %d lines", fn.Cyclomatic, fn.Cognitive, fn.Lines()),
				Container:  container,
				Path:       rec.Path,
				Line:       fn.StartLine,
				Term:       fn.Name,
				Cyclomatic: fn.Cyclomatic,
			}
			markDead(&it, dead[rec.Path+"\x00"+name])
			items = append(items, it)
		}
		for _, t := range rec.AST.Types {
			kind := compression.KindCoreType
			if t.Exported {
				kind = compression.KindPublicAPI
			}
			it := compression.Item{
				ID:        typeID(rec.Path, t.Name),
				Kind:      kind,
				Title:     t.Kind + " " + t.Name,
				Container: container,
				Path:      rec.Path,
				Line:      t.StartLine,
				Term:      t.Name,
			}
			markDead(&it, dead[rec.Path+"\x00"+t.Name])
			items = append(items, it)
		}
	}

	if snap.Risk != nil {
		for _, s := range snap.Risk.Scores {
			if s.Level == risk.LevelLow {
				continue
			}
			container := compression.ContainerID(s.Path)
			items = append(items,
				compression.Item{
					ID:        hotspotID(s.Path),
					Kind:      compression.KindHotspot,
					Title:     s.Path,
					Body:      fmt.Sprintf("risk %.2f (%s), driven by %s", s.Composite, s.Level, s.Dominant),
					Container: container,
					Path:      s.Path,
					Rule:      "risk/" + string(s.Level),
					Level:     riskLevel(s.Level),
				},
				compression.Item{
					ID:        "recommendation:" + s.Path,
					Kind:      compression.KindRecommendation,
					Title:     s.Path,
					Body:      s.Recommendation,
					Container: container,
					Path:      s.Path,
				},
			)
		}
	}

	for _, cycle := range snap.Graph.Cycles {
		if len(cycle) == 0 {
			continue
		}
		closed := append(append([]string(nil), cycle...), cycle[0])
		items = append(items, compression.Item{
			ID:    "cycle:" + strings.Join(cycle, ">"),
			Kind:  compression.KindCycle,
			Title: strings.Join(closed, " -> "),
			Body:  fmt.Sprintf("%d-node dependency cycle", len(cycle)),
			Path:  depgraph.NodeFile(cycle[0]),
			Rule:  "graph/cycle",
			Level: "warning",
		})
	}

	for _, g := range results.Clones {
		if len(g.Fragments) == 0 {
			continue
		}
		spans := make([]string, len(g.Fragments))
		for i, f := range g.Fragments {
			spans[i] = fmt.Sprintf("%s:%d-%d", f.Path, f.StartLine, f.EndLine)
		}
		first := g.Fragments[0]
		items = append(items, compression.Item{
			ID:    g.ID,
			Kind:  compression.KindCloneGroup,
			Title: fmt.Sprintf("type-%d clone, %d fragments, similarity %.2f", g.Type, len(g.Fragments), g.Similarity),
			Body:  strings.Join(spans, ", "),
			Path:  first.Path,
			Line:  first.StartLine,
			Term:  first.Function,
			Rule:  fmt.Sprintf("duplicates/type-%d", g.Type),
			Level: "note",
		})
	}

	for _, d := range results.Debt {
		items = append(items, compression.Item{
			ID:        debtID(d),
			Kind:      compression.KindDebt,
			Title:     fmt.Sprintf("[%s] %s", d.Severity, d.Text),
			Body:      d.Category,
			Container: compression.ContainerID(d.Path),
			Path:      d.Path,
			Line:      d.Line,
			Rule:      "debt/" + d.Category,
			Level:     severityLevel(d.Severity),
		})
	}
	return items
}

func hotspotID(path string) string {
	return "hotspot:" + path
}

func typeID(path, name string) string {
	return path + "#type:" + name
}

func debtID(d analysis.DebtItem) string {
	return fmt.Sprintf("debt:%s:%d", d.Path, d.Line)
}

func markDead(it *compression.Item, d analysis.DeadCodeItem) {
	if d.Path == "" {
		return
	}
	if it.Body != "" {
		it.Body += ", "
	}
	it.Body += "unreachable (" + d.Reason + ")"
	it.Rule = "deadcode/" + d.Reason
	it.Level = "note"
}

// scoringContext gathers centrality per file, identifier rarity and the
// items carrying medium-or-worse debt: the debt items themselves and the
// functions and types whose lines enclose them.
func scoringContext(snap *snapshot.Snapshot, results *analysis.Output) compression.Context {
	terms := make(map[string][]string, len(snap.Files))
	asts := make(map[string]*ast.File, len(snap.Files))
	for _, rec := range snap.Files {
		if rec.AST != nil {
			terms[rec.Path] = rec.AST.Identifiers()
			asts[rec.Path] = rec.AST
		}
	}

	indebted := make(map[string]bool)
	for _, d := range debt.Unresolved(results.Debt, analysis.SeverityMedium) {
		indebted[debtID(d)] = true
		file := asts[d.Path]
		if file == nil {
			continue
		}
		for _, fn := range file.Functions {
			if fn.StartLine <= d.Line && d.Line <= fn.EndLine {
				indebted[depgraph.FunctionNode(d.Path, fn.QualifiedName())] = true
			}
		}
		for _, t := range file.Types {
			if t.StartLine <= d.Line && d.Line <= t.EndLine {
				indebted[typeID(d.Path, t.Name)] = true
			}
		}
	}

	return compression.Context{
		Centrality: depgraph.FileScores(snap.Centrality.Scores, snap.Paths()),
		DocFreq:    compression.DocumentFrequency(terms),
		Files:      len(snap.Files),
		Indebted:   indebted,
	}
}

// partial reports whether any of stages is missing or did not succeed, with
// a note naming each.
func partial(snap *snapshot.Snapshot, stages []analysis.StageID) (bool, string) {
	var notes []string
	for _, id := range stages {
		rep, ok := snap.Stage(id)
		switch {
		case !ok:
			notes = append(notes, fmt.Sprintf("%s not run", id))
		case rep.Partial():
			notes = append(notes, stageNote(rep))
		}
	}
	return len(notes) > 0, strings.Join(notes, "; ")
}

func stageNote(rep pipeline.StageReport) string {
	if rep.Cause == "" {
		return fmt.Sprintf("%s %s", rep.ID, rep.Status)
	}
	return fmt.Sprintf("%s %s: %s", rep.ID, rep.Status, rep.Cause)
}

// sectionItems picks the selected items of kinds. File sections list each
// container followed by its members.
func sectionItems(pruned *compression.Pruned, kinds []compression.Kind) []compression.Item {
	want := make(map[compression.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	if !want[compression.KindContainer] {
		var out []compression.Item
		for _, it := range pruned.Items {
			if want[it.Kind] {
				out = append(out, it)
			}
		}
		return out
	}

	children := pruned.ByContainer()
	var out []compression.Item
	for _, it := range pruned.Items {
		if !it.IsContainer() {
			continue
		}
		out = append(out, it)
		for _, child := range children[it.ID] {
			if want[child.Kind] {
				out = append(out, child)
			}
		}
	}
	return out
}

func summarize(snap *snapshot.Snapshot, results *analysis.Output) Summary {
	s := Summary{
		Files:         len(snap.Files),
		Edges:         snap.Graph.Edges,
		Cycles:        len(snap.Graph.Cycles),
		CloneGroups:   len(results.Clones),
		DebtItems:     len(results.Debt),
		ParseFailures: len(snap.ParseFailures),
	}
	for _, rec := range snap.Files {
		if rec.AST != nil {
			s.Functions += len(rec.AST.Functions)
		}
	}
	for _, d := range results.DeadCode {
		if !d.Reachable {
			s.DeadSymbols++
		}
	}
	if snap.Risk != nil && len(snap.Risk.Scores) > 0 {
		composites := make([]float64, len(snap.Risk.Scores))
		for i, sc := range snap.Risk.Scores {
			composites[i] = sc.Composite
			if sc.Level == risk.LevelHigh {
				s.HighRisk++
			}
		}
		dist := risk.NewDistribution(composites)
		s.MedianRisk = dist.Median()
		s.MaxRisk = dist.Max()
	}
	return s
}

func riskLevel(l risk.Level) string {
	if l == risk.LevelHigh {
		return "error"
	}
	return "warning"
}

// severityLevel converts a debt severity to a SARIF level.
func severityLevel(s analysis.Severity) string {
	switch s {
	case analysis.SeverityCritical, analysis.SeverityHigh:
		return "error"
	case analysis.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
