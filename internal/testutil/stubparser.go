package testutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"codescope/internal/ast"
	"codescope/internal/project"
)

// ErrStubSyntax is returned for sources containing a "!error" line.
var ErrStubSyntax = errors.New("stub: syntax error")

// StubParser understands a tiny line-oriented language, whatever the file
// extension, so tests can describe projects without a tree-sitter toolchain:
//
//	package <name>
//	import <path>
//	func <Name|Container.Name> cc=<n> params=<n> nest=<n> cog=<n>
//	end
//	type <Name> [kind]
//	call <Name>
//	// comment text     (or "# comment text")
//	!error              (fail the parse)
//	!partial            (mark the tree partial)
//
// Any other line counts toward line totals and function spans only.
type StubParser struct {
	calls atomic.Int64
	// Delay stalls every parse, honouring ctx.
	Delay time.Duration
}

// NewStubParser returns a parser with a zeroed invocation counter.
func NewStubParser() *StubParser {
	return &StubParser{}
}

// Calls reports how many times Parse ran.
func (p *StubParser) Calls() int64 {
	return p.calls.Load()
}

// Parse implements ast.Parser.
func (p *StubParser) Parse(ctx context.Context, path string, src []byte, lang project.Language) (*ast.File, error) {
	p.calls.Add(1)
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return ParseStub(path, src, lang)
}

// ParseStub parses the stub language without counting.
func ParseStub(path string, src []byte, lang project.Language) (*ast.File, error) {
	file := &ast.File{Path: path, Language: lang, Lines: ast.CountLines(src)}
	current := -1

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		fields := strings.Fields(text)
		switch {
		case text == "!error":
			return nil, ErrStubSyntax
		case text == "!partial":
			file.Partial = true
		case strings.HasPrefix(text, "//"):
			file.Comments = append(file.Comments, ast.Comment{Text: text, Line: line})
		case strings.HasPrefix(text, "#"):
			file.Comments = append(file.Comments, ast.Comment{Text: text, Line: line})
		case len(fields) == 0:
		case fields[0] == "package" && len(fields) > 1:
			file.Package = fields[1]
		case fields[0] == "import" && len(fields) > 1:
			file.Imports = append(file.Imports, ast.Import{Path: fields[1], Line: line})
		case fields[0] == "type" && len(fields) > 1:
			kind := "type"
			if len(fields) > 2 {
				kind = fields[2]
			}
			file.Types = append(file.Types, ast.Type{
				Name:      fields[1],
				Kind:      kind,
				StartLine: line,
				EndLine:   line,
				Exported:  exported(fields[1]),
			})
		case fields[0] == "func" && len(fields) > 1:
			file.Functions = append(file.Functions, stubFunction(fields, line))
			current = len(file.Functions) - 1
		case fields[0] == "end":
			if current >= 0 {
				file.Functions[current].EndLine = line
				current = -1
			}
		case fields[0] == "call" && len(fields) > 1:
			if current >= 0 {
				file.Functions[current].Calls = append(file.Functions[current].Calls, fields[1])
			} else {
				file.Calls = append(file.Calls, fields[1])
			}
		}
	}
	if current >= 0 {
		file.Functions[current].EndLine = line
	}
	return file, sc.Err()
}

func stubFunction(fields []string, line int) ast.Function {
	name := fields[1]
	fn := ast.Function{StartLine: line, EndLine: line, Cyclomatic: 1}
	if i := strings.LastIndex(name, "."); i > 0 {
		fn.Container, name = name[:i], name[i+1:]
	}
	fn.Name = name
	fn.Exported = exported(name)
	fn.EntryPoint = name == "main" || name == "init"

	cognitiveSet := false
	for _, kv := range fields[2:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "cc":
			fn.Cyclomatic = n
		case "params":
			fn.Params = n
		case "nest":
			fn.MaxNesting = n
		case "cog":
			fn.Cognitive = n
			cognitiveSet = true
		}
	}
	if !cognitiveSet {
		fn.Cognitive = fn.Cyclomatic - 1
	}
	return fn
}

func exported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
