package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Kinds(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []Kind
	}{
		{"empty", "", []Kind{EOF}},
		{"separators only", " + \t", []Kind{EOF}},
		{"prefixed term", "ti:foo", []Kind{FieldPrefix, Term, EOF}},
		{"plus separates", "a+b", []Kind{Term, Term, EOF}},
		{"lowercase keywords are terms", "a and b or not c", []Kind{Term, Term, Term, Term, Term, Term, EOF}},
		{"uppercase keywords", "a AND b OR c ANDNOT d NOT e", []Kind{Term, And, Term, Or, Term, AndNot, Term, Not, Term, EOF}},
		{"group", "ti:(a b)", []Kind{FieldPrefix, LParen, Term, Term, RParen, EOF}},
		{"keyword against paren", "(a)AND(b)", []Kind{LParen, Term, RParen, And, LParen, Term, RParen, EOF}},
		{"phrase", `"hawaii OR pineapple"`, []Kind{Phrase, EOF}},
		{"wildcard", "ti:fo*", []Kind{FieldPrefix, Wildcard, EOF}},
		{"question mark wildcard", "te?t", []Kind{Wildcard, EOF}},
		{"bracket range", "submittedDate:[2020 TO 2021]", []Kind{FieldPrefix, Range, EOF}},
		{"quoted range is left to the field", `submittedDate:"2020 TO 2021"`, []Kind{FieldPrefix, Phrase, EOF}},
		{"quoted range in a group", `submittedDate:("2020 TO 2021")`, []Kind{FieldPrefix, LParen, Phrase, RParen, EOF}},
		{"modifier before a group", "a^2(b)", []Kind{Term, Boost, LParen, Term, RParen, EOF}},
		{"modifiers", "a^2~1", []Kind{Term, Boost, Fuzzy, EOF}},
		{"phrase modifier", `"a b"~3`, []Kind{Phrase, Fuzzy, EOF}},
		{"dangling prefix", "au:", []Kind{FieldPrefix, EOF}},
		{"colon inside term", "doi:10.1103/x:y", []Kind{FieldPrefix, Term, EOF}},
		{"line breaks separate", "a\r\nb", []Kind{Term, Term, EOF}},
		{"wildcard later in the query", "a *b", []Kind{Term, Wildcard, EOF}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := Tokenize(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kinds(tokens))
		})
	}
}

func TestTokenize_Values(t *testing.T) {
	tokens, err := Tokenize(`au:del_maestro+ti:"quantum  dots"^1.5 submittedDate:[199101 TO 2022]`)
	require.NoError(t, err)
	require.Len(t, tokens, 8)

	assert.Equal(t, ast.Author, tokens[0].Field)
	assert.Equal(t, 0, tokens[0].Pos)
	assert.Equal(t, "del_maestro", tokens[1].Text)
	assert.Equal(t, 3, tokens[1].Pos)
	assert.Equal(t, ast.Title, tokens[2].Field)
	assert.Equal(t, "quantum  dots", tokens[3].Text)
	assert.Equal(t, float32(1.5), tokens[4].Boost)
	assert.Equal(t, ast.SubmittedDate, tokens[5].Field)
	assert.Equal(t, "199101", tokens[6].Low)
	assert.Equal(t, "2022", tokens[6].High)
	assert.Equal(t, EOF, tokens[7].Kind)
}

func TestTokenize_TitleAlias(t *testing.T) {
	tokens, err := Tokenize("title:x")
	require.NoError(t, err)
	assert.Equal(t, ast.Title, tokens[0].Field)
}

func TestTokenize_BareFuzzyUsesDefaultDistance(t *testing.T) {
	tokens, err := Tokenize("colour~")
	require.NoError(t, err)
	require.Equal(t, Fuzzy, tokens[1].Kind)
	assert.Equal(t, uint8(2), tokens[1].Fuzzy)
}

func TestTokenize_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		kind  syntax.Kind
		pos   int
		token string
	}{
		{"leading wildcard", "*", syntax.LeadingWildcard, 0, "*"},
		{"leading wildcard after separators", " +*foo", syntax.LeadingWildcard, 2, "*"},
		{"unknown prefix", "foo:bar", syntax.UnknownField, 0, "foo"},
		{"prefixes are case sensitive", "TI:bar", syntax.UnknownField, 0, "TI"},
		{"unknown prefix later", "ti:a OR xyz:b", syntax.UnknownField, 8, "xyz"},
		{"unterminated phrase", `ti:"abc`, syntax.UnterminatedPhrase, 3, `"abc`},
		{"unterminated range", "submittedDate:[2020 TO 2021", syntax.UnterminatedRange, 14, "[2020 TO 2021"},
		{"detached boost", "a ^2", syntax.ParseError, 2, "^"},
		{"boost without a number", "a^", syntax.ParseError, 1, "^"},
		{"fuzziness out of range", "a~300", syntax.ParseError, 1, "~300"},
		{"boost runs into a word", "a^2b", syntax.ParseError, 1, "^2b"},
		{"boost with an exponent", "ti:a^1.5e3", syntax.ParseError, 4, "^1.5e3"},
		{"fuzziness runs into a word", "a~b c", syntax.ParseError, 1, "~b"},
		{"malformed range", "ti:[a b]", syntax.ParseError, 3, "[a b]"},
		{"stray bracket", "a ]", syntax.ParseError, 2, "]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Tokenize(tc.input)
			require.Error(t, err)

			se, ok := syntax.AsError(err)
			require.True(t, ok, "expected *syntax.Error, got %T", err)
			assert.Equal(t, tc.kind, se.Kind)
			assert.Equal(t, tc.pos, se.Pos)
			assert.Equal(t, tc.token, se.Token)
		})
	}
}

func TestTokenize_ErrorsMatchSentinels(t *testing.T) {
	_, err := Tokenize("*")
	assert.True(t, errors.Is(err, syntax.ErrLeadingWildcard))

	_, err = Tokenize("nope:x")
	assert.True(t, errors.Is(err, syntax.ErrUnknownField))
	assert.False(t, errors.Is(err, syntax.ErrParse))
}

func TestToken_String(t *testing.T) {
	tokens, err := Tokenize(`ti:"a b" c^2 [x TO y]`)
	require.NoError(t, err)

	got := make([]string, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.String()
	}
	assert.Equal(t, []string{
		"FIELD_PREFIX(title)",
		`PHRASE("a b")`,
		`TERM("c")`,
		"BOOST(2)",
		"RANGE(x, y)",
		"EOF",
	}, got)
}
