package duplicates

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"codescope/internal/project"
)

type tokenKind uint8

const (
	kindIdent tokenKind = iota
	kindKeyword
	kindLiteral
	kindOperator
)

type token struct {
	kind tokenKind
	text string
}

// keywords is the union across supported languages. Sharing one table
// keeps normalization identical for every grammar.
var keywords = toSet(
	"if", "else", "elif", "for", "while", "loop", "do", "return", "break", "continue",
	"switch", "case", "default", "match", "when", "select", "goto", "fallthrough",
	"func", "fn", "fun", "def", "lambda", "class", "struct", "interface", "trait",
	"enum", "impl", "object", "type", "var", "let", "val", "const", "mut", "static",
	"public", "private", "protected", "internal", "pub", "final", "abstract", "override",
	"import", "package", "from", "as", "use", "mod", "export", "extends", "implements",
	"try", "catch", "except", "finally", "throw", "throws", "raise", "with", "defer", "go",
	"chan", "map", "range", "in", "is", "not", "and", "or", "new", "delete", "typeof",
	"instanceof", "async", "await", "yield", "pass", "where", "self", "this", "super",
	"true", "false", "nil", "null", "None", "True", "False", "undefined", "void",
)

func toSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// tokenize lexes src generically: comments and whitespace are dropped,
// string and number literals become single tokens, and every other
// symbol is a one-character operator.
func tokenize(src string, lang project.Language) []token {
	hashComments := lang == project.LangPython
	var tokens []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/', c == '#' && hashComments:
			i = skipLine(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := indexFrom(src, i+2, "*/")
			if end < 0 {
				i = len(src)
			} else {
				i = end + 2
			}
		case c == '"' || c == '`' || (c == '\'' && !isLifetime(src, i, lang)):
			end := scanString(src, i)
			tokens = append(tokens, token{kind: kindLiteral, text: src[i:end]})
			i = end
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(src) && (isIdentByte(src[j]) || src[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: kindLiteral, text: src[i:j]})
			i = j
		case isIdentStart(src, i):
			j := i
			for j < len(src) && isIdentContinue(src, j) {
				_, size := utf8.DecodeRuneInString(src[j:])
				j += size
			}
			word := src[i:j]
			kind := kindIdent
			if keywords[word] {
				kind = kindKeyword
			}
			tokens = append(tokens, token{kind: kind, text: word})
			i = j
		default:
			_, size := utf8.DecodeRuneInString(src[i:])
			tokens = append(tokens, token{kind: kindOperator, text: src[i : i+size]})
			i += size
		}
	}
	return tokens
}

// normalize renames identifiers by first occurrence and collapses literals,
// so renamed copies produce the same sequence.
func normalize(tokens []token) []token {
	names := make(map[string]string)
	out := make([]token, len(tokens))
	for i, t := range tokens {
		switch t.kind {
		case kindIdent:
			canonical, ok := names[t.text]
			if !ok {
				canonical = "$" + strconv.Itoa(len(names))
				names[t.text] = canonical
			}
			out[i] = token{kind: kindIdent, text: canonical}
		case kindLiteral:
			out[i] = token{kind: kindLiteral, text: "$L"}
		default:
			out[i] = t
		}
	}
	return out
}

func skipLine(src string, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func indexFrom(src string, from int, sub string) int {
	for i := from; i+len(sub) <= len(src); i++ {
		if src[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// scanString returns the offset just past the literal opening at i.
// Triple quotes span lines; single quotes stop at the line end.
func scanString(src string, i int) int {
	quote := src[i]
	if i+2 < len(src) && src[i+1] == quote && src[i+2] == quote {
		if end := indexFrom(src, i+3, src[i:i+3]); end >= 0 {
			return end + 3
		}
		return len(src)
	}
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j + 1
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(src)
}

// isLifetime tells a Rust lifetime ('a) from a char literal ('a').
func isLifetime(src string, i int, lang project.Language) bool {
	if lang != project.LangRust || i+2 >= len(src) {
		return false
	}
	return src[i+1] != '\\' && src[i+2] != '\''
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isIdentStart(src string, i int) bool {
	c := src[i]
	if c < utf8.RuneSelf {
		return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return unicode.IsLetter(r)
}

func isIdentContinue(src string, i int) bool {
	c := src[i]
	if c < utf8.RuneSelf {
		return isIdentByte(c) || c == '$'
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
