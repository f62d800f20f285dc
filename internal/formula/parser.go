package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// Binding powers, loosest first. AND/OR bind looser than comparisons,
// comparisons looser than additive, multiplicative tightest.
const (
	bpNone = iota
	bpOr
	bpAnd
	bpCompare
	bpAdditive
	bpMultiplicative
	bpUnary
)

// functionArity pins the accepted argument counts per function. -1 means
// variadic with at least two arguments.
var functionArity = map[string]int{
	"IF":    3,
	"ABS":   1,
	"ROUND": 1,
	"CEIL":  1,
	"FLOOR": 1,
	"SQRT":  1,
	"LOG":   1,
	"MIN":   -1,
	"MAX":   -1,
	"LEN":   1,
	"UPPER": 1,
	"LOWER": 1,
	"STR":   1,
	"TODAY": 0,
	"NOW":   0,
}

type parser struct {
	lex  lexer
	cur  token
	peek token
}

// Parse compiles a formula string into an AST. The formula never reaches a
// SQL engine or any dynamic evaluation; unknown functions and malformed
// syntax are rejected here.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{0, "empty formula"}
	}
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr(bpNone)
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, &SyntaxError{p.cur.pos, fmt.Sprintf("unexpected %q after expression", p.cur.text)}
	}
	return expr, nil
}

func (p *parser) advance() error {
	p.cur = p.peek
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *parser) parseExpr(minBP int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		op, bp := p.infixOp()
		if op == "" || bp <= minBP {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(bp)
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, l: left, r: right}
	}
}

func (p *parser) infixOp() (string, int) {
	switch p.cur.kind {
	case tokPlus:
		return "+", bpAdditive
	case tokMinus:
		return "-", bpAdditive
	case tokStar:
		return "*", bpMultiplicative
	case tokSlash:
		return "/", bpMultiplicative
	case tokPercent:
		return "%", bpMultiplicative
	case tokEq:
		return "=", bpCompare
	case tokNe:
		return "!=", bpCompare
	case tokLt:
		return "<", bpCompare
	case tokLe:
		return "<=", bpCompare
	case tokGt:
		return ">", bpCompare
	case tokGe:
		return ">=", bpCompare
	case tokIdent:
		switch strings.ToUpper(p.cur.text) {
		case "AND":
			return "AND", bpAnd
		case "OR":
			return "OR", bpOr
		}
	}
	return "", bpNone
}

func (p *parser) parsePrefix() (Expr, error) {
	switch p.cur.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, &SyntaxError{p.cur.pos, fmt.Sprintf("invalid number %q", p.cur.text)}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numberLit{v}, nil

	case tokString:
		v := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return stringLit{v}, nil

	case tokColumn:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return columnRef{name}, nil

	case tokMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr(bpUnary)
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "-", x: x}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(bpNone)
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, &SyntaxError{p.cur.pos, "expected ')'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		name := strings.ToUpper(p.cur.text)
		pos := p.cur.pos
		switch name {
		case "TRUE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return boolLit{true}, nil
		case "FALSE":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return boolLit{false}, nil
		case "NOT":
			if err := p.advance(); err != nil {
				return nil, err
			}
			x, err := p.parseExpr(bpUnary)
			if err != nil {
				return nil, err
			}
			return unaryExpr{op: "NOT", x: x}, nil
		}
		if p.peek.kind != tokLParen {
			return nil, &SyntaxError{pos, fmt.Sprintf("bare identifier %q; column references use [%s]", p.cur.text, p.cur.text)}
		}
		return p.parseCall(name, pos)
	}

	return nil, &SyntaxError{p.cur.pos, fmt.Sprintf("unexpected %q", p.cur.text)}
}

func (p *parser) parseCall(name string, pos int) (Expr, error) {
	arity, ok := functionArity[name]
	if !ok {
		return nil, &SyntaxError{pos, fmt.Sprintf("unknown function %s", name)}
	}

	// consume name and '('
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var args []Expr
	if p.cur.kind != tokRParen {
		for {
			arg, err := p.parseExpr(bpNone)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.cur.kind != tokRParen {
		return nil, &SyntaxError{p.cur.pos, fmt.Sprintf("expected ')' closing %s(", name)}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch {
	case arity == -1:
		if len(args) < 2 {
			return nil, &SyntaxError{pos, fmt.Sprintf("%s needs at least 2 arguments", name)}
		}
	case len(args) != arity:
		return nil, &SyntaxError{pos, fmt.Sprintf("%s takes %d argument(s), got %d", name, arity, len(args))}
	}
	return callExpr{fn: name, args: args}, nil
}
