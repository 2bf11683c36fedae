// Package lexer turns a classic query string into a flat token sequence.
//
// Whitespace and '+' are equivalent separators. Operator keywords are only
// recognised in uppercase; a word is a field prefix only when a ':' follows
// it directly.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/classify"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

// defaultFuzziness is the edit distance of a bare ~ suffix.
const defaultFuzziness = 2

var keywords = map[string]Kind{
	"AND":    And,
	"OR":     Or,
	"ANDNOT": AndNot,
	"NOT":    Not,
}

// Lexer scans one input string. It is not safe for concurrent use; each
// call to Tokenize uses its own Lexer.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
	// attached is true while the cursor sits directly after a term or phrase,
	// which is the only place a ^ or ~ modifier may appear.
	attached bool
}

// Tokenize scans input into tokens terminated by an EOF token.
func Tokenize(input string) ([]Token, error) {
	l := &Lexer{input: input}
	return l.run()
}

func (l *Lexer) run() ([]Token, error) {
	l.skipSeparators()
	if l.pos < len(l.input) && l.input[l.pos] == '*' {
		return nil, syntax.Errorf(syntax.LeadingWildcard, l.pos, "*",
			"a query may not start with a wildcard")
	}

	for {
		l.skipSeparators()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, Token{Kind: EOF, Pos: l.pos})
			return l.tokens, nil
		}

		var err error
		switch c := l.input[l.pos]; c {
		case '(':
			l.emitSingle(LParen)
		case ')':
			l.emitSingle(RParen)
		case '"':
			err = l.quoted()
		case '[':
			err = l.bracketRange()
		case '^', '~':
			err = l.modifier()
		case ']', ':':
			err = syntax.Errorf(syntax.ParseError, l.pos, string(c), "unexpected %q", c)
		default:
			err = l.word()
		}
		if err != nil {
			return nil, err
		}
	}
}

func isSeparator(r rune) bool {
	return r == '+' || unicode.IsSpace(r)
}

// isDelimiter reports runes that end an unquoted word.
func isDelimiter(r rune) bool {
	switch r {
	case '(', ')', '"', '[', ']', '^', '~':
		return true
	}
	return isSeparator(r)
}

func (l *Lexer) skipSeparators() {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isSeparator(r) {
			break
		}
		l.pos += size
	}
	if l.pos != start {
		l.attached = false
	}
}

func (l *Lexer) emit(t Token) {
	l.tokens = append(l.tokens, t)
	l.attached = t.Kind == Term || t.Kind == Wildcard || t.Kind == Phrase ||
		t.Kind == Boost || t.Kind == Fuzzy
}

func (l *Lexer) emitSingle(kind Kind) {
	l.emit(Token{Kind: kind, Pos: l.pos, Src: l.input[l.pos : l.pos+1]})
	l.pos++
}

// word scans an unquoted word, which becomes a field prefix, an operator
// keyword, a wildcard pattern or a plain term.
func (l *Lexer) word() error {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if isDelimiter(r) {
			break
		}
		if r == ':' && isPrefixName(l.input[start:l.pos]) {
			return l.fieldPrefix(start)
		}
		l.pos += size
	}

	text := l.input[start:l.pos]
	if kind, ok := keywords[text]; ok {
		l.emit(Token{Kind: kind, Pos: start, Src: text})
		return nil
	}

	kind := Term
	if classify.IsWildcard(text) {
		kind = Wildcard
	}
	l.emit(Token{Kind: kind, Pos: start, Src: text, Text: text})
	return nil
}

// fieldPrefix emits the prefix ending at the ':' under the cursor.
func (l *Lexer) fieldPrefix(start int) error {
	name := l.input[start:l.pos]
	field, ok := ast.LookupPrefix(name)
	if !ok {
		return syntax.Errorf(syntax.UnknownField, start, name, "unknown field prefix %q", name)
	}
	l.pos++
	l.emit(Token{Kind: FieldPrefix, Pos: start, Src: l.input[start:l.pos], Field: field})
	return nil
}

func isPrefixName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// quoted scans a "..." span into a phrase taken verbatim. Whether a phrase
// on a date field is a range is decided once its field is known.
func (l *Lexer) quoted() error {
	start := l.pos
	end := strings.IndexByte(l.input[start+1:], '"')
	if end < 0 {
		return syntax.Errorf(syntax.UnterminatedPhrase, start, l.input[start:],
			"phrase is missing its closing quote")
	}
	end += start + 1
	content := l.input[start+1 : end]
	l.pos = end + 1
	src := l.input[start:l.pos]

	l.emit(Token{Kind: Phrase, Pos: start, Src: src, Text: phraseText(content)})
	return nil
}

// phraseText maps separator characters inside a phrase to plain spaces.
func phraseText(content string) string {
	return strings.Map(func(r rune) rune {
		if isSeparator(r) {
			return ' '
		}
		return r
	}, content)
}

func (l *Lexer) bracketRange() error {
	start := l.pos
	end := strings.IndexByte(l.input[start:], ']')
	if end < 0 {
		return syntax.Errorf(syntax.UnterminatedRange, start, l.input[start:],
			"range is missing its closing bracket")
	}
	end += start
	content := l.input[start+1 : end]
	l.pos = end + 1
	src := l.input[start:l.pos]

	low, high, ok := classify.SplitRange(phraseText(content))
	if !ok {
		return syntax.Errorf(syntax.ParseError, start, src, "range must have the form [low TO high]")
	}
	l.emit(Token{Kind: Range, Pos: start, Src: src, Low: low, High: high})
	return nil
}

// modifier scans a ^boost or ~fuzziness suffix.
func (l *Lexer) modifier() error {
	start := l.pos
	c := l.input[start]
	if !l.attached {
		return syntax.Errorf(syntax.ParseError, start, string(c),
			"%q must directly follow a term or phrase", c)
	}
	l.pos++
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || c == '^' && l.input[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.input) {
		if r, _ := utf8.DecodeRuneInString(l.input[l.pos:]); !isDelimiter(r) {
			return syntax.Errorf(syntax.ParseError, start, l.input[start:l.wordEnd()],
				"%q modifier must end before the next term", c)
		}
	}
	src := l.input[start:l.pos]
	num := src[1:]

	if c == '^' {
		boost, err := strconv.ParseFloat(num, 32)
		if err != nil || boost < 0 {
			return syntax.Errorf(syntax.ParseError, start, src, "boost must be a non-negative number")
		}
		l.emit(Token{Kind: Boost, Pos: start, Src: src, Boost: float32(boost)})
		return nil
	}

	fuzzy := defaultFuzziness
	if num != "" {
		n, err := strconv.ParseUint(num, 10, 8)
		if err != nil {
			return syntax.Errorf(syntax.ParseError, start, src, "fuzziness must be an integer between 0 and 255")
		}
		fuzzy = int(n)
	}
	l.emit(Token{Kind: Fuzzy, Pos: start, Src: src, Fuzzy: uint8(fuzzy)})
	return nil
}

// wordEnd returns the offset of the next delimiter at or after the cursor.
func (l *Lexer) wordEnd() int {
	end := l.pos
	for end < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[end:])
		if isDelimiter(r) {
			break
		}
		end += size
	}
	return end
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
