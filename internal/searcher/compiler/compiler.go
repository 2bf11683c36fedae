// Package compiler lowers a resolved syntax tree into the engine-neutral
// query tree and runs the full lex, parse, resolve and compile pipeline.
package compiler

import (
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/scope"
)

// CompileString compiles a classic query string. The only errors are
// *syntax.Error values.
func CompileString(input string) (query.Node, error) {
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}
	tree, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return Compile(scope.Resolve(tree)), nil
}

// Compile lowers a tree returned by scope.Resolve. Parenthesized groups
// disappear, operands that match nothing are folded away where the outcome
// is decided, and any leaf still lacking a field is treated as all.
func Compile(node ast.Node) query.Node {
	switch n := node.(type) {
	case *ast.Leaf:
		return compileLeaf(n)
	case *ast.Group:
		return combine(n.Op, Compile(n.Left), Compile(n.Right))
	case *ast.Negated:
		inner := Compile(n.Inner)
		if query.IsEmpty(inner) {
			return &query.Empty{Reason: ast.NegatedEmptyMatch}
		}
		return &query.Not{Inner: inner}
	case *ast.Parenthesized:
		return Compile(n.Inner)
	case *ast.EmptyMatch:
		return &query.Empty{Reason: n.Reason}
	}
	return &query.Empty{Reason: ast.MissingOperand}
}

// combine builds a binary node, short-circuiting empty operands:
// x AND () and () ANDNOT x match nothing, x OR () and x ANDNOT () are x.
func combine(op ast.BoolOp, left, right query.Node) query.Node {
	leftEmpty, rightEmpty := query.IsEmpty(left), query.IsEmpty(right)
	switch op {
	case ast.And:
		if leftEmpty {
			return left
		}
		if rightEmpty {
			return right
		}
	case ast.Or:
		if leftEmpty {
			return right
		}
		if rightEmpty {
			return left
		}
	case ast.AndNot:
		if leftEmpty || rightEmpty {
			return left
		}
	}
	return &query.Bool{Op: op, Left: left, Right: right}
}

func compileLeaf(n *ast.Leaf) query.Node {
	field := n.Field
	if field == ast.FieldNone {
		field = ast.All
	}
	v := n.Value

	if v.Kind == ast.DateRange {
		if field == ast.All {
			return &query.Empty{Reason: ast.UnscopedRange}
		}
		kind := query.TermRange
		if field.IsDate() {
			kind = query.DateRange
		}
		return &query.Range{Kind: kind, Field: field, Lower: v.Lower, Upper: v.Upper}
	}
	if field.IsDate() {
		return &query.Empty{Reason: ast.DateTerm}
	}

	m := &query.Match{
		Kind:         query.MatchTerm,
		Field:        field,
		Fields:       query.PhysicalFields(field),
		Value:        v.Text,
		Boost:        v.Boost,
		HasBoost:     v.HasBoost,
		Fuzziness:    v.Fuzziness,
		HasFuzziness: v.HasFuzziness,
	}
	switch v.Kind {
	case ast.Phrase:
		m.Kind = query.MatchPhrase
	case ast.Wildcard:
		m.Kind = query.MatchPattern
	}
	return m
}
