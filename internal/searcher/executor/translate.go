package executor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
)

// DateLayout is the layout of compiled date-range bounds.
const DateLayout = "200601021504"

var versionSuffix = regexp.MustCompile(`v\d+$`)

// Translate maps a compiled query tree onto bleve queries. Negation is
// expressed as match-all minus the operand, since bleve cannot run a bare
// must-not clause.
func Translate(n query.Node) (bquery.Query, error) {
	switch v := n.(type) {
	case *query.Match:
		return translateMatch(v)
	case *query.Range:
		return translateRange(v), nil
	case *query.Bool:
		left, err := Translate(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := Translate(v.Right)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case ast.And:
			return bleve.NewConjunctionQuery(left, right), nil
		case ast.Or:
			return bleve.NewDisjunctionQuery(left, right), nil
		case ast.AndNot:
			bq := bleve.NewBooleanQuery()
			bq.AddMust(left)
			bq.AddMustNot(right)
			return bq, nil
		default:
			return nil, fmt.Errorf("unsupported operator %v", v.Op)
		}
	case *query.Not:
		inner, err := Translate(v.Inner)
		if err != nil {
			return nil, err
		}
		bq := bleve.NewBooleanQuery()
		bq.AddMust(bleve.NewMatchAllQuery())
		bq.AddMustNot(inner)
		return bq, nil
	case *query.Empty:
		return bleve.NewMatchNoneQuery(), nil
	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
}

func translateMatch(m *query.Match) (bquery.Query, error) {
	fields := m.Fields
	if len(fields) == 0 {
		fields = query.PhysicalFields(m.Field)
	}
	if len(fields) == 1 {
		return matchOn(m, fields[0])
	}
	disjuncts := make([]bquery.Query, 0, len(fields))
	for _, f := range fields {
		q, err := matchOn(m, f)
		if err != nil {
			return nil, err
		}
		disjuncts = append(disjuncts, q)
	}
	return bleve.NewDisjunctionQuery(disjuncts...), nil
}

func matchOn(m *query.Match, f ast.Field) (bquery.Query, error) {
	name := f.String()
	switch m.Kind {
	case query.MatchTerm:
		q := bleve.NewMatchQuery(m.Value)
		q.SetField(name)
		q.SetOperator(bquery.MatchQueryOperatorAnd)
		if m.HasFuzziness && f.HonoursFuzziness() {
			q.SetFuzziness(int(m.Fuzziness))
		}
		if m.HasBoost {
			q.SetBoost(float64(m.Boost))
		}
		return q, nil
	case query.MatchPhrase:
		q := bleve.NewMatchPhraseQuery(m.Value)
		q.SetField(name)
		if m.HasBoost {
			q.SetBoost(float64(m.Boost))
		}
		return q, nil
	case query.MatchPattern:
		pattern := m.Value
		if !indexer.IsKeyword(f) {
			pattern = strings.ToLower(pattern)
		}
		q := bleve.NewWildcardQuery(pattern)
		q.SetField(name)
		if m.HasBoost {
			q.SetBoost(float64(m.Boost))
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported match kind %v", m.Kind)
	}
}

func translateRange(r *query.Range) bquery.Query {
	inclusive := true
	if r.Kind == query.DateRange {
		start, err1 := time.Parse(DateLayout, r.Lower)
		end, err2 := time.Parse(DateLayout, r.Upper)
		if err1 != nil || err2 != nil {
			return bleve.NewMatchNoneQuery()
		}
		// The upper bound names a whole minute.
		end = end.Add(time.Minute - time.Nanosecond)
		q := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		q.SetField(r.Field.String())
		return q
	}

	lower, upper := r.Lower, r.Upper
	if !indexer.IsKeyword(r.Field) {
		lower, upper = strings.ToLower(lower), strings.ToLower(upper)
	}
	q := bleve.NewTermRangeInclusiveQuery(lower, upper, &inclusive, &inclusive)
	q.SetField(r.Field.String())
	return q
}

// IDFilter restricts results to the listed papers. A versioned ID selects
// exactly that version; an unversioned ID selects the current version.
func IDFilter(ids []string) bquery.Query {
	disjuncts := make([]bquery.Query, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if versionSuffix.MatchString(id) {
			q := bleve.NewTermQuery(id)
			q.SetField(indexer.FieldVersionedID)
			disjuncts = append(disjuncts, q)
			continue
		}
		q := bleve.NewTermQuery(id)
		q.SetField(ast.ID.String())
		disjuncts = append(disjuncts, bleve.NewConjunctionQuery(q, currentOnly()))
	}
	if len(disjuncts) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func currentOnly() bquery.Query {
	q := bleve.NewBoolFieldQuery(true)
	q.SetField(indexer.FieldIsCurrent)
	return q
}
