package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

func parse(t *testing.T, input string) ast.Node {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	require.NoError(t, err)
	node, err := Parse(tokens)
	require.NoError(t, err)
	return stripPos(node)
}

// stripPos zeroes source positions so trees can be compared by shape.
func stripPos(n ast.Node) ast.Node {
	switch v := n.(type) {
	case *ast.Leaf:
		return &ast.Leaf{Field: v.Field, Value: v.Value}
	case *ast.Group:
		return &ast.Group{Op: v.Op, Left: stripPos(v.Left), Right: stripPos(v.Right)}
	case *ast.Negated:
		return &ast.Negated{Inner: stripPos(v.Inner)}
	case *ast.Parenthesized:
		return &ast.Parenthesized{Scope: v.Scope, Inner: stripPos(v.Inner)}
	case *ast.EmptyMatch:
		return &ast.EmptyMatch{Reason: v.Reason}
	}
	return n
}

func term(text string) *ast.Leaf {
	return &ast.Leaf{Value: ast.TermValue{Kind: ast.Literal, Text: text}}
}

func fielded(f ast.Field, text string) *ast.Leaf {
	return &ast.Leaf{Field: f, Value: ast.TermValue{Kind: ast.Literal, Text: text}}
}

func group(op ast.BoolOp, l, r ast.Node) *ast.Group {
	return &ast.Group{Op: op, Left: l, Right: r}
}

func empty(reason ast.EmptyReason) *ast.EmptyMatch {
	return &ast.EmptyMatch{Reason: reason}
}

func TestParse_Precedence(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  ast.Node
	}{
		{"implicit or", "a b", group(ast.Or, term("a"), term("b"))},
		{"explicit or", "a OR b", group(ast.Or, term("a"), term("b"))},
		{"and binds tighter than or", "a AND b OR c",
			group(ast.Or, group(ast.And, term("a"), term("b")), term("c"))},
		{"and binds tighter on the right", "a OR b AND c",
			group(ast.Or, term("a"), group(ast.And, term("b"), term("c")))},
		{"implicit or is loosest", "a b AND c",
			group(ast.Or, term("a"), group(ast.And, term("b"), term("c")))},
		{"andnot shares and precedence", "a AND b ANDNOT c",
			group(ast.AndNot, group(ast.And, term("a"), term("b")), term("c"))},
		{"infix not subtracts", "a NOT b", group(ast.AndNot, term("a"), term("b"))},
		{"and not", "a AND NOT b", group(ast.And, term("a"), &ast.Negated{Inner: term("b")})},
		{"unary not binds to atom", "NOT a AND b",
			group(ast.And, &ast.Negated{Inner: term("a")}, term("b"))},
		{"leading andnot negates", "ANDNOT a", &ast.Negated{Inner: term("a")}},
		{"lowercase operators are terms", "a and b",
			group(ast.Or, group(ast.Or, term("a"), term("and")), term("b"))},
		{"left associative", "a OR b OR c",
			group(ast.Or, group(ast.Or, term("a"), term("b")), term("c"))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.input))
		})
	}
}

func TestParse_Prefixes(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  ast.Node
	}{
		{"prefixed term", "ti:a", fielded(ast.Title, "a")},
		{"prefixed group", "ti:(a b)", &ast.Parenthesized{
			Scope: ast.Title,
			Inner: group(ast.Or, term("a"), term("b")),
		}},
		{"innermost prefix wins", "ti:au:a", fielded(ast.Author, "a")},
		{"prefix applies to one atom", "ti:a b", group(ast.Or, fielded(ast.Title, "a"), term("b"))},
		{"unprefixed group", "(a)", &ast.Parenthesized{Inner: term("a")}},
		{"phrase", `au:"del maestro"`, &ast.Leaf{
			Field: ast.Author,
			Value: ast.TermValue{Kind: ast.Phrase, Text: "del maestro"},
		}},
		{"wildcard", "ti:fo*", &ast.Leaf{
			Field: ast.Title,
			Value: ast.TermValue{Kind: ast.Wildcard, Text: "fo*"},
		}},
		{"range", "submittedDate:[2020 TO 2021]", &ast.Leaf{
			Field: ast.SubmittedDate,
			Value: ast.TermValue{Kind: ast.DateRange, Lower: "2020", Upper: "2021"},
		}},
		{"modifiers", "abs:qubit^2~1", &ast.Leaf{
			Field: ast.Abstract,
			Value: ast.TermValue{
				Kind: ast.Literal, Text: "qubit",
				Boost: 2, HasBoost: true,
				Fuzziness: 1, HasFuzziness: true,
			},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.input))
		})
	}
}

// missingBetween is the tree for n AND operators with nothing around them:
// an operand is missing on each side of every operator, joined left to right.
func missingBetween(n int) ast.Node {
	var node ast.Node = empty(ast.MissingOperand)
	for i := 0; i < n; i++ {
		node = group(ast.And, node, empty(ast.MissingOperand))
	}
	return node
}

func TestParse_EmptyMatches(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  ast.Node
	}{
		{"empty input", "", empty(ast.EmptyQuery)},
		{"operators only", "AND AND AND", missingBetween(3)},
		{"scoped operators only", "ti:(AND AND AND)", &ast.Parenthesized{
			Scope: ast.Title,
			Inner: missingBetween(3),
		}},
		{"single operator", "OR", group(ast.Or, empty(ast.MissingOperand), empty(ast.MissingOperand))},
		{"dangling prefix", "au:", empty(ast.MissingOperand)},
		{"dangling prefix before operator", "au: AND b",
			group(ast.And, empty(ast.MissingOperand), term("b"))},
		{"trailing operator", "a AND", group(ast.And, term("a"), empty(ast.MissingOperand))},
		{"doubled operator", "a OR OR b",
			group(ast.Or, group(ast.Or, term("a"), empty(ast.MissingOperand)), term("b"))},
		{"trailing open paren", "a OR (", group(ast.Or, term("a"), empty(ast.UnclosedGroup))},
		{"unclosed group", "(a b", empty(ast.UnclosedGroup)},
		{"empty parens", "()", &ast.Parenthesized{Inner: empty(ast.MissingOperand)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.input))
		})
	}
}

func TestParse_Positions(t *testing.T) {
	tokens, err := lexer.Tokenize("ti:a AND")
	require.NoError(t, err)
	node, err := Parse(tokens)
	require.NoError(t, err)

	g, ok := node.(*ast.Group)
	require.True(t, ok)
	assert.Equal(t, 3, g.Left.(*ast.Leaf).Pos)
	assert.Equal(t, 8, g.Right.(*ast.EmptyMatch).Pos)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		pos   int
		token string
	}{
		{"unmatched close paren", "a)", 1, ")"},
		{"close paren after group", "(a))", 3, ")"},
		{"duplicate boost", "a^2^3", 3, "^3"},
		{"duplicate fuzziness", "a~1~2", 3, "~2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := lexer.Tokenize(tc.input)
			require.NoError(t, err)

			_, err = Parse(tokens)
			require.Error(t, err)
			se, ok := syntax.AsError(err)
			require.True(t, ok)
			assert.Equal(t, syntax.ParseError, se.Kind)
			assert.Equal(t, tc.pos, se.Pos)
			assert.Equal(t, tc.token, se.Token)
		})
	}
}

func TestParse_ToleratesMissingEOF(t *testing.T) {
	tokens := []lexer.Token{{Kind: lexer.Term, Text: "a", Src: "a"}}
	node, err := Parse(tokens)
	require.NoError(t, err)
	assert.Equal(t, term("a"), stripPos(node))
}
