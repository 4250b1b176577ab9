//go:build cgo

package ast

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codescope/internal/project"
)

// LanguageSupport is the per-language capability set the extractor needs.
type LanguageSupport interface {
	Grammar() *sitter.Language

	// Node-kind tables
	FunctionKinds() []string
	TypeKinds() map[string]string
	ImportKinds() []string
	CallKinds() []string
	CommentKinds() []string
	DecisionKinds() []string
	NestingKinds() []string

	// Extraction
	PackageName(root *sitter.Node, src []byte) string
	FunctionName(n *sitter.Node, src []byte) string
	Receiver(n *sitter.Node, src []byte) string
	TypeName(n *sitter.Node, src []byte) string
	ImportPaths(n *sitter.Node, src []byte) []string
	CallTarget(n *sitter.Node, src []byte) string
	ParamCount(n *sitter.Node, src []byte) int
	IsBooleanOperator(n *sitter.Node, src []byte) bool

	// Visibility and roots
	IsExported(name string, n *sitter.Node, src []byte) bool
	IsEntryPoint(name, filePath string, n *sitter.Node, src []byte) bool
}

// SupportFor returns the capability set for lang, or nil if unsupported.
func SupportFor(lang project.Language) LanguageSupport {
	switch lang {
	case project.LangGo:
		return goSupport{}
	case project.LangJavaScript:
		return jsSupport{grammar: javascript.GetLanguage()}
	case project.LangTypeScript:
		return jsSupport{grammar: typescript.GetLanguage()}
	case project.LangTSX:
		return jsSupport{grammar: tsx.GetLanguage()}
	case project.LangPython:
		return pythonSupport{}
	case project.LangRust:
		return rustSupport{}
	case project.LangJava:
		return javaSupport{}
	case project.LangKotlin:
		return kotlinSupport{}
	default:
		return nil
	}
}

// commonSupport carries the defaults most grammars share.
type commonSupport struct{}

func (commonSupport) CommentKinds() []string {
	return []string{"comment", "line_comment", "block_comment", "multiline_comment"}
}

func (commonSupport) PackageName(*sitter.Node, []byte) string { return "" }

func (commonSupport) Receiver(*sitter.Node, []byte) string { return "" }

func (commonSupport) FunctionName(n *sitter.Node, src []byte) string {
	return fieldText(n, "name", src)
}

func (commonSupport) TypeName(n *sitter.Node, src []byte) string {
	return fieldText(n, "name", src)
}

func (commonSupport) ParamCount(n *sitter.Node, _ []byte) int {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	return int(params.NamedChildCount())
}

func (commonSupport) IsBooleanOperator(n *sitter.Node, src []byte) bool {
	if n.Type() != "binary_expression" {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || child.IsNamed() {
			continue
		}
		switch child.Content(src) {
		case "&&", "||":
			return true
		}
	}
	return false
}

// Go

type goSupport struct{ commonSupport }

func (goSupport) Grammar() *sitter.Language { return golang.GetLanguage() }

func (goSupport) FunctionKinds() []string {
	return []string{"function_declaration", "method_declaration"}
}

func (goSupport) TypeKinds() map[string]string {
	return map[string]string{"type_spec": "type"}
}

func (goSupport) ImportKinds() []string { return []string{"import_spec"} }

func (goSupport) CallKinds() []string { return []string{"call_expression"} }

func (goSupport) CommentKinds() []string { return []string{"comment"} }

func (goSupport) DecisionKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"expression_case",
		"type_case",
		"communication_case",
		"binary_expression",
	}
}

func (goSupport) NestingKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"select_statement",
		"type_switch_statement",
		"expression_switch_statement",
		"func_literal",
	}
}

func (goSupport) PackageName(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if id := child.NamedChild(j); id.Type() == "package_identifier" {
				return id.Content(src)
			}
		}
	}
	return ""
}

func (goSupport) Receiver(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	decl := recv.NamedChild(0)
	typ := decl.ChildByFieldName("type")
	if typ == nil {
		return ""
	}
	name := strings.TrimLeft(typ.Content(src), "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func (goSupport) TypeName(n *sitter.Node, src []byte) string {
	return fieldText(n, "name", src)
}

func (goSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	p := n.ChildByFieldName("path")
	if p == nil {
		return nil
	}
	return []string{unquote(p.Content(src))}
}

func (goSupport) CallTarget(n *sitter.Node, src []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "selector_expression":
		return fieldText(fn, "field", src)
	}
	return ""
}

func (goSupport) ParamCount(n *sitter.Node, _ []byte) int {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		decl := params.NamedChild(i)
		names := 0
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			if decl.NamedChild(j).Type() == "identifier" {
				names++
			}
		}
		if names == 0 {
			names = 1
		}
		count += names
	}
	return count
}

func (goSupport) IsExported(name string, _ *sitter.Node, _ []byte) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func (goSupport) IsEntryPoint(name, filePath string, n *sitter.Node, _ []byte) bool {
	if n.Type() == "method_declaration" {
		return false
	}
	if name == "main" || name == "init" {
		return true
	}
	if strings.HasSuffix(filePath, "_test.go") {
		return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") ||
			strings.HasPrefix(name, "Fuzz") || strings.HasPrefix(name, "Example")
	}
	return false
}

// JavaScript, TypeScript and TSX

type jsSupport struct {
	commonSupport
	grammar *sitter.Language
}

func (s jsSupport) Grammar() *sitter.Language { return s.grammar }

func (jsSupport) FunctionKinds() []string {
	return []string{
		"function_declaration",
		"generator_function_declaration",
		"method_definition",
		"arrow_function",
		"function_expression",
		"function",
	}
}

func (jsSupport) TypeKinds() map[string]string {
	return map[string]string{
		"class_declaration":          "class",
		"abstract_class_declaration": "class",
		"interface_declaration":      "interface",
		"type_alias_declaration":     "type",
		"enum_declaration":           "enum",
	}
}

func (jsSupport) ImportKinds() []string { return []string{"import_statement", "export_statement"} }

func (jsSupport) CallKinds() []string { return []string{"call_expression", "new_expression"} }

func (jsSupport) CommentKinds() []string { return []string{"comment"} }

func (jsSupport) DecisionKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"for_in_statement",
		"while_statement",
		"do_statement",
		"switch_case",
		"catch_clause",
		"ternary_expression",
		"binary_expression",
	}
}

func (jsSupport) NestingKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"for_in_statement",
		"while_statement",
		"do_statement",
		"switch_statement",
		"try_statement",
		"arrow_function",
		"function_expression",
	}
}

// FunctionName names anonymous functions after the variable they are bound to.
func (jsSupport) FunctionName(n *sitter.Node, src []byte) string {
	if name := fieldText(n, "name", src); name != "" {
		return name
	}
	switch n.Type() {
	case "arrow_function", "function_expression", "function":
		if p := n.Parent(); p != nil && p.Type() == "variable_declarator" {
			if id := p.ChildByFieldName("name"); id != nil && id.Type() == "identifier" {
				return id.Content(src)
			}
		}
	}
	return ""
}

func (jsSupport) Receiver(n *sitter.Node, src []byte) string {
	if n.Type() != "method_definition" {
		return ""
	}
	return enclosingTypeName(n, src, "class_declaration", "abstract_class_declaration", "class")
}

func (jsSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	source := n.ChildByFieldName("source")
	if source == nil {
		return nil
	}
	return []string{unquote(source.Content(src))}
}

func (jsSupport) CallTarget(n *sitter.Node, src []byte) string {
	field := "function"
	if n.Type() == "new_expression" {
		field = "constructor"
	}
	fn := n.ChildByFieldName(field)
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "member_expression":
		return fieldText(fn, "property", src)
	}
	return ""
}

func (jsSupport) IsExported(_ string, n *sitter.Node, _ []byte) bool {
	for p, depth := n.Parent(), 0; p != nil && depth < 4; p, depth = p.Parent(), depth+1 {
		switch p.Type() {
		case "export_statement":
			return true
		case "statement_block", "program":
			return false
		}
	}
	return false
}

func (jsSupport) IsEntryPoint(name, filePath string, _ *sitter.Node, _ []byte) bool {
	if name == "main" {
		return true
	}
	return project.IsTestPath(filePath) && (name == "describe" || name == "it" || strings.HasPrefix(name, "test"))
}

// Python

type pythonSupport struct{ commonSupport }

func (pythonSupport) Grammar() *sitter.Language { return python.GetLanguage() }

func (pythonSupport) FunctionKinds() []string { return []string{"function_definition"} }

func (pythonSupport) TypeKinds() map[string]string {
	return map[string]string{"class_definition": "class"}
}

func (pythonSupport) ImportKinds() []string {
	return []string{"import_statement", "import_from_statement"}
}

func (pythonSupport) CallKinds() []string { return []string{"call"} }

func (pythonSupport) CommentKinds() []string { return []string{"comment"} }

func (pythonSupport) DecisionKinds() []string {
	return []string{
		"if_statement",
		"elif_clause",
		"for_statement",
		"while_statement",
		"except_clause",
		"with_statement",
		"boolean_operator",
		"conditional_expression",
		"list_comprehension",
		"dictionary_comprehension",
		"set_comprehension",
		"generator_expression",
	}
}

func (pythonSupport) NestingKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"while_statement",
		"try_statement",
		"with_statement",
		"lambda",
		"list_comprehension",
		"dictionary_comprehension",
		"set_comprehension",
		"generator_expression",
	}
}

func (pythonSupport) IsBooleanOperator(n *sitter.Node, _ []byte) bool {
	if n.Type() != "boolean_operator" {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && (c.Type() == "and" || c.Type() == "or") {
			return true
		}
	}
	return false
}

func (pythonSupport) Receiver(n *sitter.Node, src []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_definition":
			return fieldText(p, "name", src)
		case "function_definition", "module":
			return ""
		}
	}
	return ""
}

func (pythonSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	if n.Type() == "import_from_statement" {
		if m := n.ChildByFieldName("module_name"); m != nil {
			return []string{m.Content(src)}
		}
		return nil
	}
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, child.Content(src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				out = append(out, name.Content(src))
			}
		}
	}
	return out
}

func (pythonSupport) CallTarget(n *sitter.Node, src []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		return fieldText(fn, "attribute", src)
	}
	return ""
}

func (pythonSupport) ParamCount(n *sitter.Node, src []byte) int {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if i == 0 && p.Type() == "identifier" {
			if text := p.Content(src); text == "self" || text == "cls" {
				continue
			}
		}
		count++
	}
	return count
}

func (pythonSupport) IsExported(name string, _ *sitter.Node, _ []byte) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return !strings.HasPrefix(name, "_")
}

func (pythonSupport) IsEntryPoint(name, filePath string, _ *sitter.Node, _ []byte) bool {
	if name == "main" || name == "__init__" {
		return true
	}
	return project.IsTestPath(filePath) && strings.HasPrefix(name, "test")
}

// Rust

type rustSupport struct{ commonSupport }

func (rustSupport) Grammar() *sitter.Language { return rust.GetLanguage() }

func (rustSupport) FunctionKinds() []string { return []string{"function_item"} }

func (rustSupport) TypeKinds() map[string]string {
	return map[string]string{
		"struct_item": "struct",
		"enum_item":   "enum",
		"trait_item":  "trait",
		"type_item":   "type",
		"union_item":  "union",
	}
}

func (rustSupport) ImportKinds() []string { return []string{"use_declaration", "mod_item"} }

func (rustSupport) CallKinds() []string { return []string{"call_expression"} }

func (rustSupport) CommentKinds() []string { return []string{"line_comment", "block_comment"} }

func (rustSupport) DecisionKinds() []string {
	return []string{
		"if_expression",
		"match_arm",
		"while_expression",
		"loop_expression",
		"for_expression",
		"binary_expression",
	}
}

func (rustSupport) NestingKinds() []string {
	return []string{
		"if_expression",
		"match_expression",
		"while_expression",
		"loop_expression",
		"for_expression",
		"closure_expression",
	}
}

// Receiver names the impl target or trait enclosing a method.
func (rustSupport) Receiver(n *sitter.Node, src []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "impl_item":
			name := fieldText(p, "type", src)
			if i := strings.IndexByte(name, '<'); i >= 0 {
				name = name[:i]
			}
			return name
		case "trait_item":
			return fieldText(p, "name", src)
		case "function_item", "source_file":
			return ""
		}
	}
	return ""
}

// ImportPaths returns use trees verbatim and "self::<name>" for out-of-line
// module declarations.
func (rustSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	if n.Type() == "mod_item" {
		if n.ChildByFieldName("body") != nil {
			return nil
		}
		return []string{"self::" + fieldText(n, "name", src)}
	}
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	return []string{arg.Content(src)}
}

func (rustSupport) CallTarget(n *sitter.Node, src []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "field_expression":
		return fieldText(fn, "field", src)
	case "scoped_identifier":
		return fieldText(fn, "name", src)
	case "generic_function":
		return lastSegment(fieldText(fn, "function", src), "::")
	}
	return ""
}

func (rustSupport) ParamCount(n *sitter.Node, _ []byte) int {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if params.NamedChild(i).Type() == "parameter" {
			count++
		}
	}
	return count
}

func (rustSupport) IsExported(_ string, n *sitter.Node, _ []byte) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "visibility_modifier" {
			return true
		}
	}
	return false
}

func (rustSupport) IsEntryPoint(name, _ string, n *sitter.Node, src []byte) bool {
	if name == "main" {
		return true
	}
	if prev := n.PrevNamedSibling(); prev != nil && prev.Type() == "attribute_item" {
		return strings.Contains(prev.Content(src), "test")
	}
	return false
}

// Java

type javaSupport struct{ commonSupport }

func (javaSupport) Grammar() *sitter.Language { return java.GetLanguage() }

func (javaSupport) FunctionKinds() []string {
	return []string{"method_declaration", "constructor_declaration"}
}

func (javaSupport) TypeKinds() map[string]string {
	return map[string]string{
		"class_declaration":           "class",
		"interface_declaration":       "interface",
		"enum_declaration":            "enum",
		"record_declaration":          "record",
		"annotation_type_declaration": "annotation",
	}
}

func (javaSupport) ImportKinds() []string { return []string{"import_declaration"} }

func (javaSupport) CallKinds() []string {
	return []string{"method_invocation", "object_creation_expression"}
}

func (javaSupport) CommentKinds() []string { return []string{"line_comment", "block_comment"} }

func (javaSupport) DecisionKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"enhanced_for_statement",
		"while_statement",
		"do_statement",
		"switch_block_statement_group",
		"switch_rule",
		"catch_clause",
		"ternary_expression",
		"binary_expression",
	}
}

func (javaSupport) NestingKinds() []string {
	return []string{
		"if_statement",
		"for_statement",
		"enhanced_for_statement",
		"while_statement",
		"do_statement",
		"switch_expression",
		"try_statement",
		"lambda_expression",
	}
}

func (javaSupport) PackageName(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "package_declaration" && child.NamedChildCount() > 0 {
			return child.NamedChild(0).Content(src)
		}
	}
	return ""
}

func (javaSupport) Receiver(n *sitter.Node, src []byte) string {
	return enclosingTypeName(n, src, "class_declaration", "interface_declaration", "enum_declaration", "record_declaration")
}

func (javaSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "scoped_identifier", "identifier":
			return []string{child.Content(src)}
		}
	}
	return nil
}

func (javaSupport) CallTarget(n *sitter.Node, src []byte) string {
	if n.Type() == "object_creation_expression" {
		return lastSegment(fieldText(n, "type", src), ".")
	}
	return fieldText(n, "name", src)
}

func (javaSupport) IsExported(_ string, n *sitter.Node, src []byte) bool {
	return strings.Contains(modifiersText(n, src), "public")
}

func (javaSupport) IsEntryPoint(name, _ string, n *sitter.Node, src []byte) bool {
	mods := modifiersText(n, src)
	if name == "main" && strings.Contains(mods, "static") {
		return true
	}
	return strings.Contains(mods, "@Test")
}

// Kotlin

type kotlinSupport struct{ commonSupport }

func (kotlinSupport) Grammar() *sitter.Language { return kotlin.GetLanguage() }

func (kotlinSupport) FunctionKinds() []string { return []string{"function_declaration"} }

func (kotlinSupport) TypeKinds() map[string]string {
	return map[string]string{
		"class_declaration":  "class",
		"object_declaration": "object",
	}
}

func (kotlinSupport) ImportKinds() []string { return []string{"import_header"} }

func (kotlinSupport) CallKinds() []string { return []string{"call_expression"} }

func (kotlinSupport) DecisionKinds() []string {
	return []string{
		"if_expression",
		"when_entry",
		"for_statement",
		"while_statement",
		"do_while_statement",
		"catch_block",
		"conjunction_expression",
		"disjunction_expression",
		"elvis_expression",
	}
}

func (kotlinSupport) NestingKinds() []string {
	return []string{
		"if_expression",
		"when_expression",
		"for_statement",
		"while_statement",
		"do_while_statement",
		"try_expression",
		"lambda_literal",
	}
}

func (kotlinSupport) IsBooleanOperator(*sitter.Node, []byte) bool { return false }

func (kotlinSupport) PackageName(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "package_header" {
			return firstChildText(child, src, "identifier")
		}
	}
	return ""
}

func (kotlinSupport) FunctionName(n *sitter.Node, src []byte) string {
	return firstChildText(n, src, "simple_identifier")
}

func (kotlinSupport) TypeName(n *sitter.Node, src []byte) string {
	return firstChildText(n, src, "type_identifier")
}

func (kotlinSupport) Receiver(n *sitter.Node, src []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_declaration", "object_declaration":
			return firstChildText(p, src, "type_identifier")
		case "function_declaration", "source_file":
			return ""
		}
	}
	return ""
}

func (kotlinSupport) ImportPaths(n *sitter.Node, src []byte) []string {
	if id := firstChildText(n, src, "identifier"); id != "" {
		return []string{id}
	}
	return nil
}

func (kotlinSupport) CallTarget(n *sitter.Node, src []byte) string {
	if n.NamedChildCount() == 0 {
		return ""
	}
	callee := n.NamedChild(0)
	switch callee.Type() {
	case "simple_identifier":
		return callee.Content(src)
	case "navigation_expression":
		return lastSegment(callee.Content(src), ".")
	}
	return ""
}

func (kotlinSupport) ParamCount(n *sitter.Node, _ []byte) int {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "function_value_parameters" {
			continue
		}
		count := 0
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if child.NamedChild(j).Type() == "parameter" {
				count++
			}
		}
		return count
	}
	return 0
}

func (kotlinSupport) IsExported(_ string, n *sitter.Node, src []byte) bool {
	mods := modifiersText(n, src)
	return !strings.Contains(mods, "private") && !strings.Contains(mods, "internal")
}

func (kotlinSupport) IsEntryPoint(name, _ string, n *sitter.Node, src []byte) bool {
	return name == "main" || strings.Contains(modifiersText(n, src), "@Test")
}

// Helpers

func fieldText(n *sitter.Node, field string, src []byte) string {
	child := n.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(src)
}

func firstChildText(n *sitter.Node, src []byte, kind string) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == kind {
			return child.Content(src)
		}
	}
	return ""
}

func modifiersText(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "modifiers" {
			return child.Content(src)
		}
	}
	return ""
}

func enclosingTypeName(n *sitter.Node, src []byte, kinds ...string) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		for _, k := range kinds {
			if p.Type() == k {
				return fieldText(p, "name", src)
			}
		}
	}
	return ""
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
