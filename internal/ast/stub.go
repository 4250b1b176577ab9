//go:build !cgo

package ast

import "errors"

// ErrNoCGO is returned when parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("ast: parsing requires CGO (tree-sitter)")

// NewParser returns ErrNoCGO in builds without cgo.
func NewParser() (Parser, error) {
	return nil, ErrNoCGO
}

// Available reports whether tree-sitter parsing is compiled in.
func Available() bool {
	return false
}
