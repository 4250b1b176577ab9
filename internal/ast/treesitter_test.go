//go:build cgo

package ast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescope/internal/project"
)

const goSource = `package demo

import (
	"fmt"
	"strings"
)

// Greeter says hello.
type Greeter struct{}

// TODO: cache the result
func (g *Greeter) Greet(name string, loud bool) string {
	if loud && name != "" {
		return strings.ToUpper(name)
	}
	for i := 0; i < 3; i++ {
		if i == 2 {
			fmt.Println(i)
		}
	}
	return helper(name)
}

func helper(s string) string { return s }

func main() {
	g := &Greeter{}
	g.Greet("x", false)
}
`

func findFunc(t *testing.T, f *File, name string) Function {
	t.Helper()
	for _, fn := range f.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not found in %+v", name, f.Functions)
	return Function{}
}

func TestTreeSitterParser_Go(t *testing.T) {
	parser, err := NewParser()
	require.NoError(t, err)

	f, err := parser.Parse(context.Background(), "demo/greeter.go", []byte(goSource), project.LangGo)
	require.NoError(t, err)

	assert.Equal(t, "demo", f.Package)
	assert.False(t, f.Partial)
	assert.Len(t, f.Functions, 3)

	greet := findFunc(t, f, "Greet")
	assert.Equal(t, "Greeter", greet.Container)
	assert.Equal(t, 2, greet.Params)
	assert.Equal(t, 5, greet.Cyclomatic)
	assert.Greater(t, greet.Cognitive, greet.Cyclomatic-1)
	assert.Equal(t, 2, greet.MaxNesting)
	assert.True(t, greet.Exported)
	assert.ElementsMatch(t, []string{"ToUpper", "Println", "helper"}, greet.Calls)

	helper := findFunc(t, f, "helper")
	assert.False(t, helper.Exported)
	assert.Equal(t, 1, helper.Cyclomatic)

	main := findFunc(t, f, "main")
	assert.True(t, main.EntryPoint)
	assert.Equal(t, []string{"Greet"}, main.Calls)

	require.Len(t, f.Types, 1)
	assert.Equal(t, Type{Name: "Greeter", Kind: "struct", StartLine: 9, EndLine: 9, Exported: true}, f.Types[0])

	var imports []string
	for _, imp := range f.Imports {
		imports = append(imports, imp.Path)
	}
	assert.Equal(t, []string{"fmt", "strings"}, imports)

	require.Len(t, f.Comments, 2)
	assert.Equal(t, 11, f.Comments[1].Line)
}

const pySource = `import os
from pkg.util import thing

class Service:
    def handle(self, req, retries=3):
        # FIXME: broken retry
        if req and retries > 0:
            return thing(req)
        return None

def _private():
    pass
`

func TestTreeSitterParser_Python(t *testing.T) {
	parser, err := NewParser()
	require.NoError(t, err)

	f, err := parser.Parse(context.Background(), "svc.py", []byte(pySource), project.LangPython)
	require.NoError(t, err)

	handle := findFunc(t, f, "handle")
	assert.Equal(t, "Service", handle.Container)
	assert.Equal(t, 2, handle.Params)
	assert.Equal(t, 3, handle.Cyclomatic)
	assert.Equal(t, []string{"thing"}, handle.Calls)

	assert.False(t, findFunc(t, f, "_private").Exported)

	var imports []string
	for _, imp := range f.Imports {
		imports = append(imports, imp.Path)
	}
	assert.Equal(t, []string{"os", "pkg.util"}, imports)
	require.Len(t, f.Comments, 1)
	assert.Contains(t, f.Comments[0].Text, "FIXME")
}

func TestTreeSitterParser_PartialTree(t *testing.T) {
	parser, err := NewParser()
	require.NoError(t, err)

	f, err := parser.Parse(context.Background(), "broken.go", []byte("package x\nfunc (\n"), project.LangGo)
	require.NoError(t, err)
	assert.True(t, f.Partial)
}

func TestTreeSitterParser_Unsupported(t *testing.T) {
	parser, err := NewParser()
	require.NoError(t, err)

	_, err = parser.Parse(context.Background(), "x.md", []byte("# x"), project.LangUnknown)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}
