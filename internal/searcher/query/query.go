// Package query defines the engine-neutral compiled query tree. Every leaf
// names a concrete field and every boolean node is binary, so an executor can
// translate the tree one node at a time.
package query

import (
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
)

// MatchKind selects how a Match compares its value.
type MatchKind int

const (
	MatchTerm MatchKind = iota + 1
	MatchPhrase
	MatchPattern
)

func (k MatchKind) String() string {
	switch k {
	case MatchTerm:
		return "term"
	case MatchPhrase:
		return "phrase"
	case MatchPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// RangeKind distinguishes timestamp ranges from lexical ones.
type RangeKind int

const (
	DateRange RangeKind = iota + 1
	TermRange
)

func (k RangeKind) String() string {
	if k == DateRange {
		return "date"
	}
	return "term"
}

// Node is a compiled query node: *Match, *Range, *Bool, *Not or *Empty.
type Node interface {
	queryNode()
}

// Match compares Value against one field, or against every field in Fields
// when Field is ast.All. A multi-field match is a single node so the engine
// can run it as one disjunction.
type Match struct {
	Kind   MatchKind
	Field  ast.Field
	Fields []ast.Field
	Value  string

	Boost        float32
	HasBoost     bool
	Fuzziness    uint8
	HasFuzziness bool
}

// MultiField reports whether m fans out over several fields.
func (m *Match) MultiField() bool {
	return m.Field == ast.All
}

// Range is inclusive at both ends. Date bounds are yyyymmddhhmm strings;
// lower <= upper is not checked.
type Range struct {
	Kind  RangeKind
	Field ast.Field
	Lower string
	Upper string
}

type Bool struct {
	Op    ast.BoolOp
	Left  Node
	Right Node
}

type Not struct {
	Inner Node
}

// Empty matches no documents.
type Empty struct {
	Reason ast.EmptyReason
}

func (*Match) queryNode() {}
func (*Range) queryNode() {}
func (*Bool) queryNode()  {}
func (*Not) queryNode()   {}
func (*Empty) queryNode() {}

// IsEmpty reports whether n is an Empty node.
func IsEmpty(n Node) bool {
	_, ok := n.(*Empty)
	return ok
}

// Walk visits n and its descendants depth-first, left to right. Returning
// false from fn skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Bool:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *Not:
		Walk(v.Inner, fn)
	}
}

// FieldsUsed lists the distinct fields referenced by n's leaves, in the
// order they first appear.
func FieldsUsed(n Node) []ast.Field {
	seen := make(map[ast.Field]bool)
	var out []ast.Field
	add := func(f ast.Field) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	Walk(n, func(node Node) bool {
		switch v := node.(type) {
		case *Match:
			add(v.Field)
		case *Range:
			add(v.Field)
		}
		return true
	})
	return out
}
