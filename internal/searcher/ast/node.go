package ast

// BoolOp is a binary boolean operator.
type BoolOp int

const (
	And BoolOp = iota + 1
	Or
	AndNot
)

func (op BoolOp) String() string {
	switch op {
	case And:
		return "AND"
	case Or:
		return "OR"
	case AndNot:
		return "ANDNOT"
	default:
		return "?"
	}
}

// ParseBoolOp is the inverse of BoolOp.String.
func ParseBoolOp(s string) (BoolOp, bool) {
	switch s {
	case "AND":
		return And, true
	case "OR":
		return Or, true
	case "ANDNOT":
		return AndNot, true
	}
	return 0, false
}

// TermKind distinguishes the value shapes a leaf can carry.
type TermKind int

const (
	Literal TermKind = iota + 1
	Phrase
	Wildcard
	DateRange
)

func (k TermKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Phrase:
		return "phrase"
	case Wildcard:
		return "wildcard"
	case DateRange:
		return "range"
	default:
		return "unknown"
	}
}

// TermValue is the value of a leaf. Text holds the literal, phrase or
// wildcard pattern; Lower and Upper hold range bounds.
type TermValue struct {
	Kind  TermKind
	Text  string
	Lower string
	Upper string

	Boost        float32
	HasBoost     bool
	Fuzziness    uint8
	HasFuzziness bool
}

// EmptyReason names why a subtree is known to match nothing.
type EmptyReason string

const (
	EmptyQuery        EmptyReason = "empty query"
	MissingOperand    EmptyReason = "missing operand"
	UnclosedGroup     EmptyReason = "unclosed group"
	WildcardOnly      EmptyReason = "wildcard-only term"
	EmptyPhrase       EmptyReason = "empty phrase"
	UnscopedRange     EmptyReason = "range without a field"
	NegatedEmptyMatch EmptyReason = "negation of an empty match"
	DateTerm          EmptyReason = "date field without a range"
)

// Node is a boolean syntax tree node. The concrete types are Leaf, Group,
// Negated, Parenthesized and EmptyMatch.
type Node interface {
	node()
}

// Leaf is a single term. Field is FieldNone until scope resolution when the
// term had no prefix of its own.
type Leaf struct {
	Field Field
	Value TermValue
	Pos   int
}

type Group struct {
	Op    BoolOp
	Left  Node
	Right Node
}

// Negated is unary NOT.
type Negated struct {
	Inner Node
}

// Parenthesized records a ( ... ) group and the prefix written directly in
// front of it, if any.
type Parenthesized struct {
	Scope Field
	Inner Node
	Pos   int
}

// EmptyMatch is a syntactically valid construct that matches no documents.
type EmptyMatch struct {
	Reason EmptyReason
	Pos    int
}

func (*Leaf) node()          {}
func (*Group) node()         {}
func (*Negated) node()       {}
func (*Parenthesized) node() {}
func (*EmptyMatch) node()    {}
