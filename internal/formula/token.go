// Package formula implements the calculated-field expression language: a
// lexer, a Pratt parser producing a small AST, and a row-by-row evaluator.
// Formulas reference table columns in square brackets ([unit_price]) and
// support arithmetic, comparisons, boolean logic and a fixed function set.
package formula

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokColumn // [name]
	tokIdent  // function names, AND, OR, NOT, TRUE, FALSE
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokLParen
	tokRParen
	tokComma
	tokEq  // = or ==
	tokNe  // != or <>
	tokLt
	tokLe
	tokGt
	tokGe
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a lexing or parsing failure with its offset into the
// formula text.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula syntax error at offset %d: %s", e.Pos, e.Message)
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch c {
	case '+':
		l.pos++
		return token{tokPlus, "+", start}, nil
	case '-':
		l.pos++
		return token{tokMinus, "-", start}, nil
	case '*':
		l.pos++
		return token{tokStar, "*", start}, nil
	case '/':
		l.pos++
		return token{tokSlash, "/", start}, nil
	case '%':
		l.pos++
		return token{tokPercent, "%", start}, nil
	case '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case '=':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
		}
		return token{tokEq, "=", start}, nil
	case '!':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{tokNe, "!=", start}, nil
		}
		return token{}, &SyntaxError{start, "unexpected '!'"}
	case '<':
		l.pos++
		if l.pos < len(l.src) {
			switch l.src[l.pos] {
			case '=':
				l.pos++
				return token{tokLe, "<=", start}, nil
			case '>':
				l.pos++
				return token{tokNe, "<>", start}, nil
			}
		}
		return token{tokLt, "<", start}, nil
	case '>':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{tokGe, ">=", start}, nil
		}
		return token{tokGt, ">", start}, nil
	case '[':
		end := strings.IndexByte(l.src[l.pos:], ']')
		if end < 0 {
			return token{}, &SyntaxError{start, "unterminated column reference"}
		}
		name := strings.TrimSpace(l.src[l.pos+1 : l.pos+end])
		if name == "" {
			return token{}, &SyntaxError{start, "empty column reference"}
		}
		l.pos += end + 1
		return token{tokColumn, name, start}, nil
	case '\'', '"':
		quote := c
		l.pos++
		end := strings.IndexByte(l.src[l.pos:], quote)
		if end < 0 {
			return token{}, &SyntaxError{start, "unterminated string literal"}
		}
		text := l.src[l.pos : l.pos+end]
		l.pos += end + 1
		return token{tokString, text, start}, nil
	}

	if c >= '0' && c <= '9' || c == '.' {
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{tokNumber, l.src[start:l.pos], start}, nil
	}

	if isIdentStart(rune(c)) {
		for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
			l.pos++
		}
		return token{tokIdent, l.src[start:l.pos], start}, nil
	}

	return token{}, &SyntaxError{start, fmt.Sprintf("unexpected character %q", c)}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
