// Package ast holds the language-neutral source model extracted by tree-sitter.
//
// The model is capability-oriented: each language contributes functions,
// types, imports, call sites and comments through its own LanguageSupport,
// and analyzers only ever see these shapes.
package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"codescope/internal/project"
)

// FormatVersion tags every serialized File. Bump it whenever the model changes
// shape so persisted entries are invalidated instead of misread.
const FormatVersion = 1

// ErrVersionMismatch is returned by Decode for entries written by another format.
var ErrVersionMismatch = errors.New("ast: format version mismatch")

// File is the extracted model of one source file.
type File struct {
	Path      string           `json:"path"`
	Language  project.Language `json:"language"`
	Package   string           `json:"package,omitempty"`
	Lines     int              `json:"lines"`
	Functions []Function       `json:"functions,omitempty"`
	Types     []Type           `json:"types,omitempty"`
	Imports   []Import         `json:"imports,omitempty"`
	// Calls are call targets made outside any named function.
	Calls    []string  `json:"calls,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
	// Partial is set when the tree contained syntax errors.
	Partial bool `json:"partial,omitempty"`
}

// Function is a named function or method.
type Function struct {
	Name       string   `json:"name"`
	Container  string   `json:"container,omitempty"` // receiver, class or impl target
	StartLine  int      `json:"startLine"`
	EndLine    int      `json:"endLine"`
	Params     int      `json:"params"`
	Cyclomatic int      `json:"cyclomatic"`
	Cognitive  int      `json:"cognitive"`
	MaxNesting int      `json:"maxNesting"`
	Exported   bool     `json:"exported,omitempty"`
	EntryPoint bool     `json:"entryPoint,omitempty"`
	Calls      []string `json:"calls,omitempty"`
}

// Lines is the span of the function in lines.
func (f Function) Lines() int {
	return f.EndLine - f.StartLine + 1
}

// QualifiedName prefixes the container when there is one.
func (f Function) QualifiedName() string {
	if f.Container == "" {
		return f.Name
	}
	return f.Container + "." + f.Name
}

// Type is a named type declaration (struct, class, interface, enum, ...).
type Type struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Exported  bool   `json:"exported,omitempty"`
}

// Import is one import/use/require edge as written in the source.
type Import struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Comment is one comment with its starting line.
type Comment struct {
	Text string `json:"text"`
	Line int    `json:"line"`
}

// FunctionAt returns the innermost function whose span contains line.
func (f *File) FunctionAt(line int) *Function {
	var best *Function
	for i := range f.Functions {
		fn := &f.Functions[i]
		if line < fn.StartLine || line > fn.EndLine {
			continue
		}
		if best == nil || fn.Lines() < best.Lines() {
			best = fn
		}
	}
	return best
}

// Identifiers returns the sorted, de-duplicated names defined or called in
// the file. It feeds the project identifier corpus used for rarity weighting.
func (f *File) Identifiers() []string {
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" {
			seen[s] = true
		}
	}
	for _, fn := range f.Functions {
		add(fn.Name)
		for _, c := range fn.Calls {
			add(c)
		}
	}
	for _, t := range f.Types {
		add(t.Name)
	}
	for _, c := range f.Calls {
		add(c)
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Exported reports whether the file declares any exported symbol.
func (f *File) Exported() bool {
	for _, fn := range f.Functions {
		if fn.Exported {
			return true
		}
	}
	for _, t := range f.Types {
		if t.Exported {
			return true
		}
	}
	return false
}

type envelope struct {
	Version int   `json:"v"`
	File    *File `json:"file"`
}

// Encode serializes a File with the current format version.
func Encode(f *File) ([]byte, error) {
	if f == nil {
		return nil, errors.New("ast: encode nil file")
	}
	return json.Marshal(envelope{Version: FormatVersion, File: f})
}

// Decode parses bytes written by Encode.
func Decode(data []byte) (*File, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ast: decode: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.Version, FormatVersion)
	}
	if env.File == nil {
		return nil, errors.New("ast: decode: empty payload")
	}
	return env.File, nil
}
