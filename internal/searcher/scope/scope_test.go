package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/lexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/parser"
)

func parse(t *testing.T, input string) ast.Node {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	require.NoError(t, err)
	node, err := parser.Parse(tokens)
	require.NoError(t, err)
	return node
}

// leafFields maps each leaf's text to the field it resolved to.
func leafFields(n ast.Node) map[string]ast.Field {
	out := make(map[string]ast.Field)
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Leaf:
			out[v.Value.Text] = v.Field
		case *ast.Group:
			walk(v.Left)
			walk(v.Right)
		case *ast.Negated:
			walk(v.Inner)
		case *ast.Parenthesized:
			walk(v.Inner)
		}
	}
	walk(n)
	return out
}

func TestResolve_Scopes(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  map[string]ast.Field
	}{
		{
			name:  "bare terms default to all",
			input: "a (b c)",
			want:  map[string]ast.Field{"a": ast.All, "b": ast.All, "c": ast.All},
		},
		{
			name:  "nested groups inherit",
			input: "ti:(space AND (apple OR pineapple))",
			want:  map[string]ast.Field{"space": ast.Title, "apple": ast.Title, "pineapple": ast.Title},
		},
		{
			name:  "explicit prefix overrides for its term only",
			input: "ti:(a au:b c)",
			want:  map[string]ast.Field{"a": ast.Title, "b": ast.Author, "c": ast.Title},
		},
		{
			name:  "override does not leak upward",
			input: "ti:(a abs:(b c) d) e",
			want: map[string]ast.Field{
				"a": ast.Title, "b": ast.Abstract, "c": ast.Abstract, "d": ast.Title, "e": ast.All,
			},
		},
		{
			name:  "negated terms inherit",
			input: "co:(a ANDNOT b NOT c)",
			want:  map[string]ast.Field{"a": ast.Comment, "b": ast.Comment, "c": ast.Comment},
		},
		{
			name:  "deep nesting",
			input: "jr:((((a))))",
			want:  map[string]ast.Field{"a": ast.JournalRef},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, leafFields(Resolve(parse(t, tc.input))))
		})
	}
}

func TestResolve_RecordsEffectiveScope(t *testing.T) {
	resolved := Resolve(parse(t, "ti:((a))"))

	outer, ok := resolved.(*ast.Parenthesized)
	require.True(t, ok)
	assert.Equal(t, ast.Title, outer.Scope)
	inner, ok := outer.Inner.(*ast.Parenthesized)
	require.True(t, ok)
	assert.Equal(t, ast.Title, inner.Scope)
}

func TestResolve_AuthorShorthand(t *testing.T) {
	underscored := Resolve(parse(t, "au:del_maestro"))
	quoted := Resolve(parse(t, `au:"del maestro"`))

	want := ast.TermValue{Kind: ast.Phrase, Text: "del maestro"}
	assert.Equal(t, want, underscored.(*ast.Leaf).Value)
	assert.Equal(t, want, quoted.(*ast.Leaf).Value)

	scoped := Resolve(parse(t, "au:(del_maestro)"))
	assert.Equal(t, want, scoped.(*ast.Parenthesized).Inner.(*ast.Leaf).Value)
}

func TestResolve_ReplacesUnmatchableLeaves(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		reason ast.EmptyReason
	}{
		{"all wildcard", "all:*", ast.WildcardOnly},
		{"fielded wildcard", "ti:*", ast.WildcardOnly},
		{"empty phrase", `ti:""`, ast.EmptyPhrase},
		{"unscoped range", "[2020 TO 2021]", ast.UnscopedRange},
		{"date term", "lastUpdatedDate:2020", ast.DateTerm},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(parse(t, tc.input))
			em, ok := got.(*ast.EmptyMatch)
			require.True(t, ok, "got %T", got)
			assert.Equal(t, tc.reason, em.Reason)
		})
	}
}

func TestResolve_QuotedRangeTakesGroupField(t *testing.T) {
	got := Resolve(parse(t, `submittedDate:(a OR "2020 TO 202106")`))

	inner := got.(*ast.Parenthesized).Inner.(*ast.Group)
	assert.Equal(t, &ast.EmptyMatch{Reason: ast.DateTerm, Pos: 15}, inner.Left)
	leaf, ok := inner.Right.(*ast.Leaf)
	require.True(t, ok, "got %T", inner.Right)
	assert.Equal(t, ast.SubmittedDate, leaf.Field)
	assert.Equal(t, ast.TermValue{Kind: ast.DateRange, Lower: "202001010000", Upper: "202106302359"}, leaf.Value)
}

func TestResolve_DoesNotModifyInput(t *testing.T) {
	tree := parse(t, "(a)")
	_ = Resolve(tree)

	p := tree.(*ast.Parenthesized)
	assert.Equal(t, ast.FieldNone, p.Scope)
	assert.Equal(t, ast.FieldNone, p.Inner.(*ast.Leaf).Field)
}
