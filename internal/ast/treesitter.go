//go:build cgo

package ast

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"codescope/internal/project"
)

// maxCommentBytes bounds stored comment text; debt detection only needs the head.
const maxCommentBytes = 512

// TreeSitterParser parses every supported language with tree-sitter.
// sitter.Parser is not safe for concurrent use, so parsers are pooled.
type TreeSitterParser struct {
	pool sync.Pool
}

// NewParser creates the tree-sitter backed parser.
func NewParser() (Parser, error) {
	return &TreeSitterParser{
		pool: sync.Pool{New: func() any { return sitter.NewParser() }},
	}, nil
}

// Available reports whether tree-sitter parsing is compiled in.
func Available() bool {
	return true
}

// Parse extracts the File model from src.
func (p *TreeSitterParser) Parse(ctx context.Context, path string, src []byte, lang project.Language) (*File, error) {
	support := SupportFor(lang)
	if support == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	parser := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(parser)

	parser.SetLanguage(support.Grammar())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse %s: no tree produced", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	x := &extractor{
		support:  support,
		src:      src,
		path:     path,
		funcs:    toSet(support.FunctionKinds()),
		types:    support.TypeKinds(),
		imports:  toSet(support.ImportKinds()),
		calls:    toSet(support.CallKinds()),
		comments: toSet(support.CommentKinds()),
		decision: toSet(support.DecisionKinds()),
		nesting:  toSet(support.NestingKinds()),
		file: &File{
			Path:     path,
			Language: lang,
			Package:  support.PackageName(root, src),
			Lines:    CountLines(src),
			Partial:  root.HasError(),
		},
	}
	x.walk(root, -1)
	return x.file, nil
}

type extractor struct {
	support LanguageSupport
	src     []byte
	path    string
	file    *File

	funcs    map[string]bool
	types    map[string]string
	imports  map[string]bool
	calls    map[string]bool
	comments map[string]bool
	decision map[string]bool
	nesting  map[string]bool
}

// walk visits n, attributing calls to the innermost named function (fn is
// an index into file.Functions, -1 at file scope).
func (x *extractor) walk(n *sitter.Node, fn int) {
	if n == nil {
		return
	}
	kind := n.Type()

	switch {
	case x.funcs[kind]:
		if name := x.support.FunctionName(n, x.src); name != "" {
			x.file.Functions = append(x.file.Functions, x.function(n, name))
			fn = len(x.file.Functions) - 1
		}
	case x.types[kind] != "":
		if name := x.support.TypeName(n, x.src); name != "" {
			x.file.Types = append(x.file.Types, Type{
				Name:      name,
				Kind:      x.typeKind(n, kind),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
				Exported:  x.support.IsExported(name, n, x.src),
			})
		}
	case x.imports[kind]:
		for _, p := range x.support.ImportPaths(n, x.src) {
			if p != "" {
				x.file.Imports = append(x.file.Imports, Import{Path: p, Line: int(n.StartPoint().Row) + 1})
			}
		}
	case x.calls[kind]:
		if target := x.support.CallTarget(n, x.src); target != "" {
			if fn >= 0 {
				x.file.Functions[fn].Calls = appendUnique(x.file.Functions[fn].Calls, target)
			} else {
				x.file.Calls = appendUnique(x.file.Calls, target)
			}
		}
	case x.comments[kind]:
		text := n.Content(x.src)
		if len(text) > maxCommentBytes {
			text = text[:maxCommentBytes]
		}
		x.file.Comments = append(x.file.Comments, Comment{Text: text, Line: int(n.StartPoint().Row) + 1})
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		x.walk(n.Child(i), fn)
	}
}

func (x *extractor) function(n *sitter.Node, name string) Function {
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1
	cognitive, maxNesting := x.cognitive(n, 0)
	return Function{
		Name:       name,
		Container:  x.support.Receiver(n, x.src),
		StartLine:  start,
		EndLine:    end,
		Params:     x.support.ParamCount(n, x.src),
		Cyclomatic: x.cyclomatic(n),
		Cognitive:  cognitive,
		MaxNesting: maxNesting,
		Exported:   x.support.IsExported(name, n, x.src),
		EntryPoint: x.support.IsEntryPoint(name, x.path, n, x.src),
	}
}

// typeKind refines the generic kind where the grammar exposes more detail.
func (x *extractor) typeKind(n *sitter.Node, kind string) string {
	if kind == "type_spec" {
		if t := n.ChildByFieldName("type"); t != nil {
			switch t.Type() {
			case "struct_type":
				return "struct"
			case "interface_type":
				return "interface"
			}
		}
		return "type"
	}
	if kind == "class_declaration" && x.file.Language == project.LangKotlin {
		if strings.HasPrefix(strings.TrimSpace(n.Content(x.src)), "interface") {
			return "interface"
		}
	}
	return x.types[kind]
}

// cyclomatic counts decision points plus one.
func (x *extractor) cyclomatic(n *sitter.Node) int {
	complexity := 1
	var visit func(*sitter.Node)
	visit = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if x.isDecision(node) {
			complexity++
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		visit(n.Child(i))
	}
	return complexity
}

// cognitive weights each decision by its nesting depth and reports the
// deepest nesting seen.
func (x *extractor) cognitive(n *sitter.Node, level int) (int, int) {
	total, deepest := 0, level
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if x.isDecision(child) {
			total += 1 + level
		}
		next := level
		if x.nesting[child.Type()] {
			next++
		}
		sub, depth := x.cognitive(child, next)
		total += sub
		if depth > deepest {
			deepest = depth
		}
	}
	return total, deepest
}

func (x *extractor) isDecision(n *sitter.Node) bool {
	kind := n.Type()
	if !x.decision[kind] {
		return false
	}
	if kind == "binary_expression" || kind == "boolean_operator" {
		return x.support.IsBooleanOperator(n, x.src)
	}
	return true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
