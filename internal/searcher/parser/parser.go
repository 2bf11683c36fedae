// Package parser builds the boolean syntax tree of a classic query.
//
// Precedence from loosest to tightest is OR, then AND and ANDNOT, then unary
// NOT. Adjacent operands with no operator between them are joined with OR.
// Inputs the legacy service accepted but could never match, such as runs of
// operators or a dangling prefix, parse into ast.EmptyMatch nodes instead of
// failing.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/classify"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

// Parser is a recursive-descent parser over a token slice it owns.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse builds the syntax tree for tokens. A missing trailing EOF token is
// tolerated.
func Parse(tokens []lexer.Token) (ast.Node, error) {
	if n := len(tokens); n == 0 || tokens[n-1].Kind != lexer.EOF {
		end := 0
		if n > 0 {
			last := tokens[n-1]
			end = last.Pos + len(last.Src)
		}
		tokens = append(tokens[:n:n], lexer.Token{Kind: lexer.EOF, Pos: end})
	}

	p := &Parser{tokens: tokens}
	if p.peek().Kind == lexer.EOF {
		return &ast.EmptyMatch{Reason: ast.EmptyQuery}, nil
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != lexer.EOF {
		return nil, syntax.Errorf(syntax.ParseError, t.Pos, t.Src, "unexpected %s", t.Kind)
	}
	return node, nil
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

// startsOperand reports whether k can begin an operand, which is what
// triggers an implicit OR.
func startsOperand(k lexer.Kind) bool {
	switch k {
	case lexer.Term, lexer.Wildcard, lexer.Phrase, lexer.Range, lexer.FieldPrefix, lexer.LParen:
		return true
	}
	return false
}

// parseExpression parses OrTerm (OR OrTerm)*, with OR implied between
// adjacent operands.
func (p *Parser) parseExpression() (ast.Node, error) {
	left, err := p.parseOrTerm(true)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.Kind == lexer.Or:
			p.advance()
		case startsOperand(t.Kind):
		default:
			return left, nil
		}
		right, err := p.parseOrTerm(false)
		if err != nil {
			return nil, err
		}
		left = &ast.Group{Op: ast.Or, Left: left, Right: right}
	}
}

// parseOrTerm parses AndTerm ((AND|ANDNOT) AndTerm)*. A NOT in operator
// position subtracts like ANDNOT, as it did in the legacy engine.
func (p *Parser) parseOrTerm(leading bool) (ast.Node, error) {
	left, err := p.parseAndTerm(leading)
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BoolOp
		switch p.peek().Kind {
		case lexer.And:
			op = ast.And
		case lexer.AndNot, lexer.Not:
			op = ast.AndNot
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAndTerm(false)
		if err != nil {
			return nil, err
		}
		left = &ast.Group{Op: op, Left: left, Right: right}
	}
}

// parseAndTerm parses ['NOT'] Atom. At the start of an expression ANDNOT has
// no left operand and negates like NOT.
func (p *Parser) parseAndTerm(leading bool) (ast.Node, error) {
	t := p.peek()
	if t.Kind == lexer.Not || leading && t.Kind == lexer.AndNot {
		p.advance()
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &ast.Negated{Inner: inner}, nil
	}
	return p.parseAtom()
}

// parseAtom parses a term, phrase, range, prefixed atom or parenthesized
// expression. When no operand is present it returns an EmptyMatch without
// consuming anything.
func (p *Parser) parseAtom() (ast.Node, error) {
	t := p.peek()
	switch t.Kind {
	case lexer.Term, lexer.Wildcard:
		p.advance()
		leaf := &ast.Leaf{Value: ast.TermValue{Kind: classify.Kind(t.Text), Text: t.Text}, Pos: t.Pos}
		if err := p.parseModifiers(&leaf.Value); err != nil {
			return nil, err
		}
		return leaf, nil

	case lexer.Phrase:
		p.advance()
		leaf := &ast.Leaf{Value: ast.TermValue{Kind: ast.Phrase, Text: t.Text}, Pos: t.Pos}
		if err := p.parseModifiers(&leaf.Value); err != nil {
			return nil, err
		}
		return leaf, nil

	case lexer.Range:
		p.advance()
		return &ast.Leaf{
			Value: ast.TermValue{Kind: ast.DateRange, Lower: t.Low, Upper: t.High},
			Pos:   t.Pos,
		}, nil

	case lexer.FieldPrefix:
		p.advance()
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return applyPrefix(t.Field, inner), nil

	case lexer.LParen:
		p.advance()
		if p.peek().Kind == lexer.EOF {
			return &ast.EmptyMatch{Reason: ast.UnclosedGroup, Pos: t.Pos}, nil
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		switch next := p.peek(); next.Kind {
		case lexer.RParen:
			p.advance()
			return &ast.Parenthesized{Inner: inner, Pos: t.Pos}, nil
		case lexer.EOF:
			return &ast.EmptyMatch{Reason: ast.UnclosedGroup, Pos: t.Pos}, nil
		default:
			return nil, syntax.Errorf(syntax.ParseError, next.Pos, next.Src, "unexpected %s inside group", next.Kind)
		}
	}

	return &ast.EmptyMatch{Reason: ast.MissingOperand, Pos: t.Pos}, nil
}

func (p *Parser) parseModifiers(v *ast.TermValue) error {
	for {
		t := p.peek()
		switch t.Kind {
		case lexer.Boost:
			if v.HasBoost {
				return syntax.Errorf(syntax.ParseError, t.Pos, t.Src, "term already has a boost")
			}
			v.Boost, v.HasBoost = t.Boost, true
		case lexer.Fuzzy:
			if v.HasFuzziness {
				return syntax.Errorf(syntax.ParseError, t.Pos, t.Src, "term already has a fuzziness")
			}
			v.Fuzziness, v.HasFuzziness = t.Fuzzy, true
		default:
			return nil
		}
		p.advance()
	}
}

// applyPrefix scopes inner to field. A prefix written closer to the term
// wins, so ti:au:x searches the author field.
func applyPrefix(field ast.Field, inner ast.Node) ast.Node {
	switch n := inner.(type) {
	case *ast.Leaf:
		if n.Field == ast.FieldNone {
			n.Field = field
		}
	case *ast.Parenthesized:
		if n.Scope == ast.FieldNone {
			n.Scope = field
		}
	}
	return inner
}
