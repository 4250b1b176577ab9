// Package project detects the languages of a source tree.
package project

import (
	"path"
	"strings"
)

// Language represents a programming language (one tree-sitter grammar each).
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
	LangUnknown    Language = "unknown"
)

// Languages lists every supported language in a stable order.
var Languages = []Language{
	LangGo, LangJavaScript, LangTypeScript, LangTSX, LangPython, LangRust, LangJava, LangKotlin,
}

var extensions = map[string]Language{
	".go":   LangGo,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".pyi":  LangPython,
	".rs":   LangRust,
	".java": LangJava,
	".kt":   LangKotlin,
	".kts":  LangKotlin,
}

// LanguageFromPath maps a file path to a language by extension.
func LanguageFromPath(p string) Language {
	if strings.HasSuffix(p, ".d.ts") {
		return LangUnknown
	}
	if lang, ok := extensions[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return LangUnknown
}

// Family folds grammar variants into the language users think in.
func (l Language) Family() Language {
	if l == LangTSX {
		return LangTypeScript
	}
	return l
}

// Known reports whether l is a supported language.
func (l Language) Known() bool {
	return l != LangUnknown && l != ""
}

// DisplayName returns a human-readable name for the language.
func (l Language) DisplayName() string {
	switch l {
	case LangGo:
		return "Go"
	case LangTypeScript:
		return "TypeScript"
	case LangTSX:
		return "TSX"
	case LangJavaScript:
		return "JavaScript"
	case LangPython:
		return "Python"
	case LangRust:
		return "Rust"
	case LangJava:
		return "Java"
	case LangKotlin:
		return "Kotlin"
	default:
		return "Unknown"
	}
}

// IsTestPath reports whether a slash-separated path looks like test-only code.
func IsTestPath(p string) bool {
	base := path.Base(p)
	switch {
	case strings.Contains(base, "_test."),
		strings.HasPrefix(base, "test_"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."),
		strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "Test"):
		return true
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		switch seg {
		case "test", "tests", "__tests__", "testdata", "spec":
			return true
		}
	}
	return false
}

// Depth is the number of directories above a slash-separated relative path.
func Depth(p string) int {
	return strings.Count(p, "/")
}
