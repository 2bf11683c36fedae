// Package classify decides what kind of value a query term is and applies
// the per-field normalisations of the classic language: author underscore
// shorthand, partial date bounds and ignored fuzziness.
package classify

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
)

// IsWildcard reports whether text contains a * or ? pattern character.
func IsWildcard(text string) bool {
	return strings.ContainsAny(text, "*?")
}

// WildcardOnly reports whether text consists solely of pattern characters.
func WildcardOnly(text string) bool {
	if text == "" {
		return false
	}
	return strings.Trim(text, "*?") == ""
}

// Kind returns the value kind of an unquoted word.
func Kind(text string) ast.TermKind {
	if IsWildcard(text) {
		return ast.Wildcard
	}
	return ast.Literal
}

// SplitRange splits the body of a range, "low TO high", into its bounds.
func SplitRange(text string) (low, high string, ok bool) {
	parts := strings.Fields(text)
	if len(parts) != 3 || parts[1] != "TO" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// Normalize rewrites v for the field it resolved to.
//
// In the author field an underscore stands for a space, so del_maestro is the
// phrase "del maestro". On a date field the phrase "low TO high" is a range,
// however the field was reached. Date range bounds are widened to full
// yyyymmddhhmm values. Fuzziness is dropped wherever the legacy engine
// ignored it.
func Normalize(field ast.Field, v ast.TermValue) ast.TermValue {
	if v.Kind == ast.Phrase && field.IsDate() {
		if low, high, ok := SplitRange(v.Text); ok {
			v = ast.TermValue{Kind: ast.DateRange, Lower: low, Upper: high}
		}
	}

	switch v.Kind {
	case ast.Literal, ast.Phrase:
		if field == ast.Author && strings.Contains(v.Text, "_") {
			v.Text = strings.Join(strings.Fields(strings.ReplaceAll(v.Text, "_", " ")), " ")
			v.Kind = ast.Phrase
		}
	case ast.DateRange:
		if field.IsDate() {
			v.Lower = FillDate(v.Lower, false)
			v.Upper = FillDate(v.Upper, true)
		}
	}

	if v.HasFuzziness && !fuzzinessApplies(field, v.Kind) {
		v.Fuzziness = 0
		v.HasFuzziness = false
	}
	return v
}

func fuzzinessApplies(field ast.Field, kind ast.TermKind) bool {
	if kind == ast.Wildcard || kind == ast.DateRange {
		return false
	}
	return field.HonoursFuzziness()
}

// MatchesNothing reports whether a normalised leaf can never match, and why.
func MatchesNothing(field ast.Field, v ast.TermValue) (ast.EmptyReason, bool) {
	switch v.Kind {
	case ast.Wildcard:
		if WildcardOnly(v.Text) {
			return ast.WildcardOnly, true
		}
	case ast.Phrase:
		if strings.TrimSpace(v.Text) == "" {
			return ast.EmptyPhrase, true
		}
	case ast.DateRange:
		if field == ast.All || field == ast.FieldNone {
			return ast.UnscopedRange, true
		}
		return "", false
	}
	if field.IsDate() {
		return ast.DateTerm, true
	}
	return "", false
}

// FillDate completes a partial yyyy, yyyymm or yyyymmdd bound to a
// yyyymmddhhmm value. Lower bounds start at the first minute of the period
// and upper bounds end at its last minute. Values that are not all digits,
// or have an unexpected length, are returned unchanged.
func FillDate(d string, upper bool) string {
	if d == "" || strings.Trim(d, "0123456789") != "" {
		return d
	}
	if len(d) > 12 {
		d = d[:12]
	}
	if len(d) == 6 {
		if !upper {
			d += "01"
		} else {
			day, ok := lastDayOfMonth(d)
			if !ok {
				return d
			}
			d += day
		}
	}
	if len(d) == 4 {
		if upper {
			d += "1231"
		} else {
			d += "0101"
		}
	}
	if len(d) == 8 {
		if upper {
			d += "2359"
		} else {
			d += "0000"
		}
	}
	return d
}

func lastDayOfMonth(yyyymm string) (string, bool) {
	t, err := time.Parse("200601", yyyymm)
	if err != nil {
		return "", false
	}
	last := t.AddDate(0, 1, -1)
	return last.Format("02"), true
}
