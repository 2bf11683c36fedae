package compiler

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

func mustCompile(t *testing.T, input string) query.Node {
	t.Helper()
	node, err := CompileString(input)
	require.NoError(t, err, "compiling %q", input)
	return node
}

func match(kind query.MatchKind, f ast.Field, value string) *query.Match {
	return &query.Match{Kind: kind, Field: f, Fields: query.PhysicalFields(f), Value: value}
}

func termOn(f ast.Field, value string) *query.Match {
	return match(query.MatchTerm, f, value)
}

func TestCompile_DefaultOperator(t *testing.T) {
	assert.Equal(t, mustCompile(t, "ti:(A OR B)"), mustCompile(t, "ti:(A B)"))
	assert.Equal(t, mustCompile(t, "ti:(a OR b OR c)"), mustCompile(t, "ti:(a b c)"))
}

func TestCompile_Precedence(t *testing.T) {
	want := &query.Bool{
		Op: ast.Or,
		Left: &query.Bool{
			Op:    ast.And,
			Left:  termOn(ast.Title, "a"),
			Right: termOn(ast.Title, "b"),
		},
		Right: termOn(ast.Title, "c"),
	}
	assert.Equal(t, want, mustCompile(t, "ti:(a AND b OR c)"))
}

func TestCompile_CaseSensitiveOperators(t *testing.T) {
	got := mustCompile(t, "ti:(a and b)")
	want := &query.Bool{
		Op: ast.Or,
		Left: &query.Bool{
			Op:    ast.Or,
			Left:  termOn(ast.Title, "a"),
			Right: termOn(ast.Title, "and"),
		},
		Right: termOn(ast.Title, "b"),
	}
	assert.Equal(t, want, got)

	// The same words unscoped search every field as literals.
	assert.Equal(t, "(all:a OR all:and) OR all:b", query.String(mustCompile(t, "a and b")))
}

func TestCompile_ScopePropagation(t *testing.T) {
	got := mustCompile(t, "ti:(space AND (apple OR pineapple))")
	want := &query.Bool{
		Op:   ast.And,
		Left: termOn(ast.Title, "space"),
		Right: &query.Bool{
			Op:    ast.Or,
			Left:  termOn(ast.Title, "apple"),
			Right: termOn(ast.Title, "pineapple"),
		},
	}
	assert.Equal(t, want, got)
}

func TestCompile_EmptyClauses(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		reason ast.EmptyReason
	}{
		{"operators only", "ti:(AND AND AND)", ast.MissingOperand},
		{"bare operators", "AND AND AND", ast.MissingOperand},
		{"doubled and", "a AND AND b", ast.MissingOperand},
		{"dangling prefix", "au:", ast.MissingOperand},
		{"trailing open paren", "(", ast.UnclosedGroup},
		{"unclosed group", "ti:(a b", ast.UnclosedGroup},
		{"all wildcard", "all:*", ast.WildcardOnly},
		{"parenthesized wildcard", "(*)", ast.WildcardOnly},
		{"empty input", "", ast.EmptyQuery},
		{"blank input", "  ++ ", ast.EmptyQuery},
		{"empty parens", "()", ast.MissingOperand},
		{"negated nothing", "NOT ()", ast.NegatedEmptyMatch},
		{"unscoped range", `[2020 TO 2021]`, ast.UnscopedRange},
		{"all range", `all:[2020 TO 2021]`, ast.UnscopedRange},
		{"subtracting from nothing", "() ANDNOT a", ast.MissingOperand},
		{"term on a date field", "submittedDate:2020", ast.DateTerm},
		{"terms in a date group", "submittedDate:(2020 OR 2021)", ast.DateTerm},
		{"phrase on a date field", `lastUpdatedDate:"last week"`, ast.DateTerm},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustCompile(t, tc.input)
			assert.Equal(t, &query.Empty{Reason: tc.reason}, got)
		})
	}
}

func TestCompile_EmptyOperandsFold(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"doubled or", "a OR OR b", "all:a OR all:b"},
		{"trailing or", "a OR", "all:a"},
		{"dangling prefix in or", "a au:", "all:a"},
		{"subtracting nothing", "a ANDNOT ()", "all:a"},
		{"trailing open paren", "a OR (", "all:a"},
		{"wildcard-only operand", "ti:a OR ti:*", "ti:a"},
		{"date term operand", "ti:a OR submittedDate:2020", "ti:a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, query.String(mustCompile(t, tc.input)))
		})
	}
}

func TestCompile_PhraseLiteralness(t *testing.T) {
	got := mustCompile(t, `ti:("hawaii OR pineapple")`)
	assert.Equal(t, match(query.MatchPhrase, ast.Title, "hawaii OR pineapple"), got)
}

func TestCompile_AuthorNormalization(t *testing.T) {
	underscored := mustCompile(t, "au:del_maestro")
	quoted := mustCompile(t, `au:"del maestro"`)

	assert.Equal(t, quoted, underscored)
	assert.Equal(t, match(query.MatchPhrase, ast.Author, "del maestro"), underscored)
}

func TestCompile_Idempotent(t *testing.T) {
	inputs := []string{
		"ti:(a AND b OR c)",
		`au:del_maestro ANDNOT ti:"quantum dots"^2`,
		"submittedDate:[2020 TO 202106] AND cat:hep-th",
		"AND AND AND",
	}
	for _, in := range inputs {
		assert.Equal(t, mustCompile(t, in), mustCompile(t, in), "input %q", in)
	}
}

func TestCompile_LeadingWildcard(t *testing.T) {
	_, err := CompileString("*")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syntax.ErrLeadingWildcard))

	got, err := CompileString("all:*")
	require.NoError(t, err)
	assert.True(t, query.IsEmpty(got))
}

func TestCompile_MultiField(t *testing.T) {
	got := mustCompile(t, "electron")

	m, ok := got.(*query.Match)
	require.True(t, ok)
	assert.True(t, m.MultiField())
	assert.Equal(t, ast.All, m.Field)
	assert.Equal(t, []ast.Field{
		ast.Title, ast.Author, ast.Abstract, ast.Comment,
		ast.JournalRef, ast.Category, ast.ReportNumber, ast.DOI,
	}, m.Fields)
}

func TestCompile_Leaves(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  query.Node
	}{
		{"pattern", "ti:quant*", match(query.MatchPattern, ast.Title, "quant*")},
		{"title alias", "title:quantum", termOn(ast.Title, "quantum")},
		{"category", "cat:hep-th", termOn(ast.Category, "hep-th")},
		{"boost", "abs:qubit^3", &query.Match{
			Kind: query.MatchTerm, Field: ast.Abstract, Fields: []ast.Field{ast.Abstract},
			Value: "qubit", Boost: 3, HasBoost: true,
		}},
		{"fuzziness on text", "ti:colour~1", &query.Match{
			Kind: query.MatchTerm, Field: ast.Title, Fields: []ast.Field{ast.Title},
			Value: "colour", Fuzziness: 1, HasFuzziness: true,
		}},
		{"fuzziness ignored on id", "id:1234.5678~1", termOn(ast.ID, "1234.5678")},
		{"negation", "NOT ti:a", &query.Not{Inner: termOn(ast.Title, "a")}},
		{"term range", "ti:[a TO c]", &query.Range{Kind: query.TermRange, Field: ast.Title, Lower: "a", Upper: "c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mustCompile(t, tc.input))
		})
	}
}

func TestCompile_DateRanges(t *testing.T) {
	want := &query.Range{
		Kind:  query.DateRange,
		Field: ast.SubmittedDate,
		Lower: "199101010000",
		Upper: "202212312359",
	}
	assert.Equal(t, want, mustCompile(t, "submittedDate:[1991 TO 2022]"))
	assert.Equal(t, want, mustCompile(t, `submittedDate:"1991 TO 2022"`))
	assert.Equal(t, want, mustCompile(t, `submittedDate:("1991 TO 2022")`))
	assert.Equal(t, want, mustCompile(t, `submittedDate:([1991 TO 2022])`))
	assert.Equal(t, want, mustCompile(t, `submittedDate:("1991+TO+2022")`))
	assert.Equal(t, want, mustCompile(t, `submittedDate:"1991 TO 2022"~2`), "fuzziness has no meaning on a range")

	updated := mustCompile(t, "lastUpdatedDate:[202002 TO 202002]")
	assert.Equal(t, &query.Range{
		Kind:  query.DateRange,
		Field: ast.LastUpdatedDate,
		Lower: "202002010000",
		Upper: "202002292359",
	}, updated)

	inverted := mustCompile(t, "submittedDate:[2022 TO 1991]")
	assert.Equal(t, "202201010000", inverted.(*query.Range).Lower, "bounds are not reordered")
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		kind  syntax.Kind
	}{
		{"unknown field", "xx:a", syntax.UnknownField},
		{"leading wildcard", "*", syntax.LeadingWildcard},
		{"unterminated phrase", `ti:"a`, syntax.UnterminatedPhrase},
		{"unterminated range", "submittedDate:[2020", syntax.UnterminatedRange},
		{"stray close paren", "a)", syntax.ParseError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CompileString(tc.input)
			require.Error(t, err)
			assert.Nil(t, got)
			se, ok := syntax.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, se.Kind)
		})
	}
}

func TestCompile_CanonicalRoundTrip(t *testing.T) {
	inputs := []string{
		"ti:(a AND b OR c)",
		"au:del_maestro ANDNOT (ti:checkerboard OR abs:lattice)",
		`ti:"quantum dots"^2 OR abs:qubit~1`,
		"submittedDate:[2020 TO 202106] AND NOT cat:hep-th",
		"NOT (a OR b) AND c",
		"ti:[a TO c] OR quant*",
		"AND AND AND",
		`submittedDate:"2020 TO 2021"`,
		`submittedDate:("2020 TO 2021") OR ti:"2020 TO 2021"`,
	}
	for _, in := range inputs {
		first := mustCompile(t, in)
		second := mustCompile(t, query.String(first))
		assert.Equal(t, first, second, "input %q canonical %q", in, query.String(first))
	}
}

func TestCompile_Concurrent(t *testing.T) {
	want := mustCompile(t, "ti:(space AND (apple OR pineapple)) ANDNOT au:del_maestro")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := CompileString("ti:(space AND (apple OR pineapple)) ANDNOT au:del_maestro")
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func BenchmarkCompileString(b *testing.B) {
	input := `au:del_maestro AND (ti:"quantum dots" OR abs:qubit*) ANDNOT submittedDate:[2019 TO 202106]`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := CompileString(input); err != nil {
			b.Fatal(err)
		}
	}
}
