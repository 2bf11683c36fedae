// Package scope resolves field prefixes across a syntax tree.
package scope

import (
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/classify"
)

// Resolve returns a copy of node in which every leaf carries a concrete
// field. Unprefixed terms take the prefix of the nearest enclosing group, or
// all when there is none; an explicit prefix applies to its own subtree only.
// Leaves are normalised for their field, and leaves that can never match are
// replaced by ast.EmptyMatch. The input tree is not modified.
func Resolve(node ast.Node) ast.Node {
	return resolve(node, ast.All)
}

func resolve(node ast.Node, scope ast.Field) ast.Node {
	switch n := node.(type) {
	case *ast.Leaf:
		field := n.Field
		if field == ast.FieldNone {
			field = scope
		}
		value := classify.Normalize(field, n.Value)
		if reason, empty := classify.MatchesNothing(field, value); empty {
			return &ast.EmptyMatch{Reason: reason, Pos: n.Pos}
		}
		return &ast.Leaf{Field: field, Value: value, Pos: n.Pos}

	case *ast.Group:
		return &ast.Group{
			Op:    n.Op,
			Left:  resolve(n.Left, scope),
			Right: resolve(n.Right, scope),
		}

	case *ast.Negated:
		return &ast.Negated{Inner: resolve(n.Inner, scope)}

	case *ast.Parenthesized:
		inner := scope
		if n.Scope != ast.FieldNone {
			inner = n.Scope
		}
		return &ast.Parenthesized{Scope: inner, Inner: resolve(n.Inner, inner), Pos: n.Pos}

	case *ast.EmptyMatch:
		c := *n
		return &c
	}
	return node
}
