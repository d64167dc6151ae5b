package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// node is a parsed expression tree element.
type node interface {
	eval(vars map[string]any) any
}

type literal struct{ value any }

type ident struct{ path []string }

type notExpr struct{ inner node }

type logicExpr struct {
	and         bool
	left, right node
}

type compareExpr struct {
	op          string
	left, right node
}

// Expression is a parsed, reusable boolean expression.
// It is safe for concurrent use.
type Expression struct {
	src  string
	root node
}

// Parse compiles src into an Expression.
func Parse(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("parse %q: empty expression", src)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("parse %q: unexpected %q at %d", src, t.text, t.pos)
	}
	return &Expression{src: src, root: root}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic("expr: " + err.Error())
	}
	return e
}

// String returns the source text.
func (e *Expression) String() string {
	return e.src
}

// Eval evaluates the expression against vars.
func (e *Expression) Eval(vars map[string]any) bool {
	return IsTruthy(e.root.eval(vars))
}

// Eval parses and evaluates src in one call.
func Eval(src string, vars map[string]any) (bool, error) {
	e, err := Parse(src)
	if err != nil {
		return false, err
	}
	return e.Eval(vars), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicExpr{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.keyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	if t := p.peek(); t.kind == tokOp && t.text == "!" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	var op string
	switch {
	case t.kind == tokOp && t.text != "!":
		op = t.text
	case t.kind == tokIdent && strings.EqualFold(t.text, "contains"):
		op = "contains"
	default:
		return left, nil
	}
	p.next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareExpr{op: op, left: left, right: right}, nil
}

func (p *parser) parseOperand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("expected ')' at %d", closing.pos)
		}
		return inner, nil
	case tokString:
		return literal{value: t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{value: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at %d", t.text, t.pos)
		}
		return literal{value: f}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{value: true}, nil
		case "false":
			return literal{value: false}, nil
		case "null", "nil":
			return literal{value: nil}, nil
		case "and", "or", "not", "contains":
			return nil, fmt.Errorf("unexpected keyword %q at %d", t.text, t.pos)
		}
		return ident{path: strings.Split(t.text, ".")}, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
}
