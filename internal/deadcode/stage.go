package deadcode

import (
	"context"
	"strings"

	"codescope/internal/analysis"
	"codescope/internal/ast"
	"codescope/internal/project"
)

// Stage runs reachability over the whole project.
type Stage struct{}

// NewStage creates the dead-code stage.
func NewStage() *Stage {
	return &Stage{}
}

func (s *Stage) ID() analysis.StageID { return analysis.StageDeadCode }

// Scope is project-wide: reachability needs every caller.
func (s *Stage) Scope() analysis.Scope { return analysis.ScopeProject }

// symbol is one definition in the project.
type symbol struct {
	info      SymbolInfo
	line      int
	container string
	calls     []string
	test      bool
	root      string // why the symbol is a root, empty otherwise
}

func (s *symbol) key() string {
	return s.info.Path + "#" + s.container + "." + s.info.Name + "#" + s.info.Kind
}

// Run reports every function, method and type with its reachability.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	var includeExported bool
	var patterns []string
	if in.Config != nil {
		includeExported = in.Config.DeadCode.IncludeExported
		patterns = in.Config.DeadCode.Exclude
	}
	a := &analyzer{
		exclusions:      NewExclusionRules(patterns),
		includeExported: includeExported,
		byName:          make(map[string][]*symbol),
	}
	for _, f := range in.Files {
		if f.AST != nil {
			a.collect(f.Path, f.AST)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reachable := a.reach()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := a.classify(reachable)

	dead := 0
	for _, item := range items {
		if !item.Reachable {
			dead++
		}
	}
	in.Logger.Debug("Dead code analysis completed",
		"symbols", len(items),
		"roots", a.roots,
		"dead", dead)

	return &analysis.Output{DeadCode: items}, nil
}

type analyzer struct {
	exclusions      *ExclusionRules
	includeExported bool

	symbols []*symbol
	byName  map[string][]*symbol
	// fileCalls are call targets at file scope; module bodies run on load.
	fileCalls []string
	roots     int
}

func (a *analyzer) collect(path string, file *ast.File) {
	test := project.IsTestPath(path)
	for _, fn := range file.Functions {
		kind := "function"
		if fn.Container != "" {
			kind = "method"
		}
		sym := &symbol{
			info:      SymbolInfo{Name: fn.Name, Kind: kind, Path: path, Exported: fn.Exported},
			line:      fn.StartLine,
			container: fn.Container,
			calls:     fn.Calls,
			test:      test,
		}
		switch {
		case fn.EntryPoint:
			sym.root = "entry point"
		case test:
			sym.root = "test code"
		}
		a.add(sym)
	}
	for _, t := range file.Types {
		a.add(&symbol{
			info: SymbolInfo{Name: t.Name, Kind: "type", Path: path, Exported: t.Exported},
			line: t.StartLine,
			test: test,
		})
	}
	if !test {
		a.fileCalls = append(a.fileCalls, file.Calls...)
	}
}

func (a *analyzer) add(sym *symbol) {
	if sym.root == "" && sym.info.Exported && !a.includeExported {
		sym.root = "exported"
	}
	if sym.root == "" {
		sym.root = a.exclusions.ShouldExclude(sym.info)
	}
	a.symbols = append(a.symbols, sym)
	a.byName[sym.info.Name] = append(a.byName[sym.info.Name], sym)
}

// targets resolves a call name such as "pkg.Func" or "obj.method" by its
// last segment. Name resolution is deliberately loose: a false edge only
// hides dead code, it never reports live code as dead.
func (a *analyzer) targets(call string) []*symbol {
	if i := strings.LastIndexAny(call, ".:>"); i >= 0 {
		call = call[i+1:]
	}
	return a.byName[call]
}

// reach walks call edges from the roots. A reached method keeps its
// receiver type alive and a reached type keeps nothing else alive. Test
// code is live but only keeps other test code alive, so production code
// exercised solely by tests is still reported.
func (a *analyzer) reach() map[*symbol]bool {
	reachable := make(map[*symbol]bool)
	var queue []*symbol
	visit := func(sym *symbol) {
		if !reachable[sym] {
			reachable[sym] = true
			queue = append(queue, sym)
		}
	}

	for _, sym := range a.symbols {
		if sym.root != "" {
			a.roots++
			visit(sym)
		}
	}
	for _, call := range a.fileCalls {
		for _, target := range a.targets(call) {
			visit(target)
		}
	}

	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		for _, call := range sym.calls {
			for _, target := range a.targets(call) {
				if sym.test && !target.test {
					continue
				}
				visit(target)
			}
		}
		if sym.container != "" {
			for _, owner := range a.byName[sym.container] {
				if owner.info.Kind == "type" {
					visit(owner)
				}
			}
		}
	}
	return reachable
}

func (a *analyzer) classify(reachable map[*symbol]bool) []analysis.DeadCodeItem {
	stats := a.referenceStats()
	items := make([]analysis.DeadCodeItem, 0, len(a.symbols))
	seen := make(map[string]bool, len(a.symbols))
	for _, sym := range a.symbols {
		// Overloads and repeated declarations collapse into one item
		if seen[sym.key()] {
			continue
		}
		seen[sym.key()] = true

		item := analysis.DeadCodeItem{
			Path:      sym.info.Path,
			Kind:      sym.info.Kind,
			Name:      qualified(sym),
			Line:      sym.line,
			Reachable: reachable[sym],
		}
		if !item.Reachable {
			item.Reason = string(categorize(stats[sym]))
		}
		items = append(items, item)
	}
	return items
}

// referenceStats counts incoming call references per symbol.
func (a *analyzer) referenceStats() map[*symbol]referenceStats {
	stats := make(map[*symbol]referenceStats)
	for _, caller := range a.symbols {
		for _, call := range caller.calls {
			for _, target := range a.targets(call) {
				st := stats[target]
				st.total++
				switch {
				case target == caller:
					st.fromSelf++
				case caller.test:
					st.fromTests++
				}
				stats[target] = st
			}
		}
	}
	for _, sym := range a.symbols {
		if sym.container == "" {
			continue
		}
		for _, owner := range a.byName[sym.container] {
			if owner.info.Kind == "type" {
				st := stats[owner]
				st.total++
				if sym.test {
					st.fromTests++
				}
				stats[owner] = st
			}
		}
	}
	return stats
}

func categorize(st referenceStats) Category {
	others := st.total - st.fromSelf
	switch {
	case others == 0 && st.fromSelf > 0:
		return CategorySelfOnly
	case others == 0:
		return CategoryZeroRefs
	case st.fromTests == others:
		return CategoryTestOnly
	default:
		return CategoryUnreachable
	}
}

func qualified(sym *symbol) string {
	if sym.container == "" {
		return sym.info.Name
	}
	return sym.container + "." + sym.info.Name
}
