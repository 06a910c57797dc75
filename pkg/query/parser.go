package query

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Parse parses a variant query. The query is case-insensitive. Any
// failure is a *MalformedQueryError; no partial tree is ever returned.
//
// Grammar, '|' binding tighter than '&':
//
//	expr   := term (('&' | AND) term)*
//	term   := factor (('|' | OR) factor)*
//	factor := '!' factor | '(' expr ')' | leaf
func Parse(q string) (Expr, error) {
	q = upper.String(q)
	if strings.TrimSpace(q) == "" {
		return nil, &MalformedQueryError{Query: q, Pos: 0, Msg: "empty query"}
	}

	toks, err := tokenize(q)
	if err != nil {
		return nil, err
	}

	p := &parser{query: q, toks: toks}
	expr, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return expr, nil
}

// MustParse is for tests and fixed queries.
func MustParse(q string) Expr {
	e, err := Parse(q)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	query string
	toks  []token
	i     int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) unexpected(t token) error {
	return &MalformedQueryError{Query: p.query, Pos: t.pos, Msg: "unexpected " + t.kind.String()}
}

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = Conjunction{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = Disjunction{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) factor() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNot:
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return Negation{Expr: inner}, nil
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &MalformedQueryError{Query: p.query, Pos: closing.pos, Msg: "expected ')' before " + closing.kind.String()}
		}
		return inner, nil
	case tokLeaf:
		return t.leaf, nil
	default:
		return nil, p.unexpected(t)
	}
}
