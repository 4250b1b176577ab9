package deadcode

import (
	"path"
	"strings"
)

// ExclusionRules decides which symbols are treated as live regardless of
// references: framework hooks, interface methods, generated code.
type ExclusionRules struct {
	patterns []string
}

// NewExclusionRules creates exclusion rules with the given glob patterns.
func NewExclusionRules(patterns []string) *ExclusionRules {
	return &ExclusionRules{
		patterns: patterns,
	}
}

// SymbolInfo contains information about a symbol for exclusion checking.
type SymbolInfo struct {
	Name     string
	Kind     string // function, method or type
	Path     string
	Exported bool
}

// ShouldExclude returns a reason if the symbol should be kept alive, or
// an empty string if not.
func (r *ExclusionRules) ShouldExclude(sym SymbolInfo) string {
	// Test functions, benchmarks and examples are run by the toolchain
	if strings.HasPrefix(sym.Name, "Test") || strings.HasPrefix(sym.Name, "Benchmark") ||
		strings.HasPrefix(sym.Name, "Fuzz") || strings.HasPrefix(sym.Name, "test_") {
		return "test or benchmark function"
	}
	if strings.HasPrefix(sym.Name, "Example") {
		return "example function for documentation"
	}

	// Python protocol methods are invoked by the interpreter
	if strings.HasPrefix(sym.Name, "__") && strings.HasSuffix(sym.Name, "__") {
		return "language protocol method"
	}

	if isCommonInterfaceMethod(sym.Name, sym.Kind) {
		return "common interface implementation"
	}

	if isGeneratedFile(sym.Path) {
		return "generated file"
	}

	for _, pattern := range r.patterns {
		if matched, _ := path.Match(pattern, sym.Path); matched {
			return "matches exclusion pattern: " + pattern
		}
		if matched, _ := path.Match(pattern, sym.Name); matched {
			return "matches exclusion pattern: " + pattern
		}
		// ** patterns degrade to a substring check
		if strings.Contains(pattern, "**") {
			simplified := strings.ReplaceAll(pattern, "**", "")
			simplified = strings.ReplaceAll(simplified, "*", "")
			if simplified != "" && strings.Contains(sym.Path, simplified) {
				return "matches exclusion pattern: " + pattern
			}
		}
	}

	return ""
}

var commonMethods = map[string]bool{
	// fmt.Stringer, error
	"String": true,
	"Error":  true,
	// io
	"Read":  true,
	"Write": true,
	"Close": true,
	"Seek":  true,
	// sort.Interface
	"Len":  true,
	"Less": true,
	"Swap": true,
	// encoding
	"MarshalText":     true,
	"UnmarshalText":   true,
	"MarshalBinary":   true,
	"UnmarshalBinary": true,
	"MarshalJSON":     true,
	"UnmarshalJSON":   true,
	// sql.Scanner/driver.Valuer
	"Scan":  true,
	"Value": true,
	// http.Handler
	"ServeHTTP": true,
	// Java/Kotlin object protocol
	"toString":  true,
	"equals":    true,
	"hashCode":  true,
	"compareTo": true,
	// Rust traits
	"fmt":   true,
	"drop":  true,
	"clone": true,
	"from":  true,
	"eq":    true,
}

// isCommonInterfaceMethod checks if a method is a common interface implementation.
func isCommonInterfaceMethod(name, kind string) bool {
	return kind == "method" && commonMethods[name]
}

var generatedPatterns = []string{
	"_generated.",
	"_gen.go",
	".pb.go",
	".pb.gw.go",
	"_string.go",
	"_enumer.go",
	"mock_",
	"mocks/",
	"generated/",
	"zz_generated",
	"wire_gen.go",
	".d.ts",
	"_pb2.py",
}

// isGeneratedFile checks if a file is likely generated.
func isGeneratedFile(p string) bool {
	lower := strings.ToLower(p)
	for _, pattern := range generatedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
