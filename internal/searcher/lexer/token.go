package lexer

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
)

// Kind is the type of a lexical token.
type Kind int

const (
	EOF Kind = iota
	FieldPrefix
	And
	Or
	AndNot
	Not
	LParen
	RParen
	Term
	Phrase
	Range
	Boost
	Fuzzy
	Wildcard
)

var kindNames = [...]string{
	EOF:         "EOF",
	FieldPrefix: "FIELD_PREFIX",
	And:         "AND",
	Or:          "OR",
	AndNot:      "ANDNOT",
	Not:         "NOT",
	LParen:      "LPAREN",
	RParen:      "RPAREN",
	Term:        "TERM",
	Phrase:      "PHRASE",
	Range:       "RANGE",
	Boost:       "BOOST",
	Fuzzy:       "FUZZY",
	Wildcard:    "WILDCARD",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsOperator reports whether k is one of the boolean keywords.
func (k Kind) IsOperator() bool {
	return k == And || k == Or || k == AndNot || k == Not
}

// Token is one lexical unit. Only the fields relevant to Kind are set: Field
// for FIELD_PREFIX, Text for TERM, PHRASE and WILDCARD, Low and High for
// RANGE, Boost for BOOST and Fuzzy for FUZZY. Pos is the byte offset of the
// token in the input and Src the source text it was read from.
type Token struct {
	Kind  Kind
	Pos   int
	Src   string
	Field ast.Field
	Text  string
	Low   string
	High  string
	Boost float32
	Fuzzy uint8
}

func (t Token) String() string {
	switch t.Kind {
	case FieldPrefix:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Field)
	case Term, Phrase, Wildcard:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	case Range:
		return fmt.Sprintf("%s(%s, %s)", t.Kind, t.Low, t.High)
	case Boost:
		return fmt.Sprintf("%s(%s)", t.Kind, strconv.FormatFloat(float64(t.Boost), 'f', -1, 32))
	case Fuzzy:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Fuzzy)
	default:
		return t.Kind.String()
	}
}
