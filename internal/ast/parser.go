package ast

import (
	"context"
	"errors"

	"codescope/internal/project"
)

// ErrUnsupportedLanguage is returned for files outside the supported grammars.
var ErrUnsupportedLanguage = errors.New("ast: unsupported language")

// Parser turns source bytes into a File model.
type Parser interface {
	Parse(ctx context.Context, path string, src []byte, lang project.Language) (*File, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, path string, src []byte, lang project.Language) (*File, error)

// Parse calls fn.
func (fn ParserFunc) Parse(ctx context.Context, path string, src []byte, lang project.Language) (*File, error) {
	return fn(ctx, path, src, lang)
}

// CountLines counts lines the way editors do: a trailing newline does not
// start a new line.
func CountLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := 0
	for _, b := range src {
		if b == '\n' {
			n++
		}
	}
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
