package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
)

func hits(n uint64) *uint64 { return &n }

func TestOutcome(t *testing.T) {
	testCases := []struct {
		name        string
		node        query.Node
		err         error
		wantOutcome string
		wantReason  string
	}{
		{"compiled", &query.Match{Kind: query.MatchTerm, Field: ast.Title, Value: "a"}, nil, OutcomeCompiled, ""},
		{"empty", &query.Empty{Reason: ast.WildcardOnly}, nil, OutcomeEmpty, string(ast.WildcardOnly)},
		{"syntax error", nil, &syntax.Error{Kind: syntax.UnknownField, Pos: 0, Token: "xx"}, "UnknownField", ""},
		{"other error", nil, errors.New("boom"), OutcomeFailed, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, reason := Outcome(tc.node, tc.err)
			assert.Equal(t, tc.wantOutcome, outcome)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}

func TestNewCompileEvent(t *testing.T) {
	node := &query.Bool{
		Op:    ast.And,
		Left:  &query.Match{Kind: query.MatchTerm, Field: ast.Title, Value: "a"},
		Right: &query.Match{Kind: query.MatchPhrase, Field: ast.Author, Value: "del maestro"},
	}
	e := NewCompileEvent("ti:a AND au:del_maestro", node, nil)
	assert.Equal(t, EventCompile, e.Type)
	assert.Equal(t, OutcomeCompiled, e.Outcome)
	assert.Equal(t, `ti:a AND au:"del maestro"`, e.Canonical)
	assert.Equal(t, []string{"title", "author"}, e.Fields)
	assert.Nil(t, e.ErrorPos)
	assert.False(t, e.Timestamp.IsZero())

	failed := NewCompileEvent("ti:a xx:b", nil, &syntax.Error{Kind: syntax.UnknownField, Pos: 5, Token: "xx"})
	assert.Equal(t, "UnknownField", failed.Outcome)
	require.NotNil(t, failed.ErrorPos)
	assert.Equal(t, 5, *failed.ErrorPos)
	assert.Empty(t, failed.Canonical)
	assert.Empty(t, failed.Fields)
}

func TestAggregator_Record(t *testing.T) {
	agg := NewAggregator(2)

	agg.Record(CompileEvent{Type: EventCompile, Source: "http", Query: "ti:a", Outcome: OutcomeCompiled,
		Fields: []string{"title"}, LatencyUs: 100})
	agg.Record(CompileEvent{Type: EventCompile, Source: "http", Query: "ti:a", Outcome: OutcomeCompiled,
		Fields: []string{"title"}, CacheHit: true, LatencyUs: 10})
	agg.Record(CompileEvent{Type: EventSearch, Source: "rpc", Query: "all:*", Outcome: OutcomeEmpty,
		EmptyReason: string(ast.WildcardOnly), TotalHits: hits(0), LatencyUs: 300})
	agg.Record(CompileEvent{Type: EventCompile, Source: "http", Query: "xx:a", Outcome: "UnknownField", LatencyUs: 50})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalCompiles)
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, map[string]int64{OutcomeCompiled: 2, OutcomeEmpty: 1, "UnknownField": 1}, stats.Outcomes)
	assert.Equal(t, map[string]int64{string(ast.WildcardOnly): 1}, stats.EmptyReasons)
	assert.Equal(t, map[string]int64{"title": 2}, stats.FieldUsage)
	assert.Equal(t, map[string]int64{"http": 3, "rpc": 1}, stats.Sources)
	assert.InDelta(t, 115.0, stats.AvgLatencyUs, 0.001)
	assert.Equal(t, int64(100), stats.P50LatencyUs)
	assert.Equal(t, int64(300), stats.P99LatencyUs)

	require.Len(t, stats.TopQueries, 2)
	assert.Equal(t, QueryCount{Query: "ti:a", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, QueryCount{Query: "all:*", Count: 1}, stats.TopQueries[1], "ties ordered by query text")
	assert.Equal(t, []QueryCount{{Query: "xx:a", Count: 1}}, stats.TopFailing)
	assert.Equal(t, []QueryCount{{Query: "all:*", Count: 1}}, stats.TopEmpty)
}

func TestAggregator_StatsAreCopies(t *testing.T) {
	agg := NewAggregator(5)
	agg.Record(CompileEvent{Query: "a", Outcome: OutcomeCompiled})

	stats := agg.Stats()
	stats.Outcomes[OutcomeCompiled] = 99
	assert.Equal(t, int64(1), agg.Stats().Outcomes[OutcomeCompiled])
}

func TestAggregator_Restore(t *testing.T) {
	agg := NewAggregator(5)
	agg.Restore(AggregatedStats{
		TotalCompiles: 10,
		TotalSearches: 4,
		Outcomes:      map[string]int64{OutcomeCompiled: 8, OutcomeEmpty: 2},
		FieldUsage:    map[string]int64{"title": 3},
		CacheHits:     6,
	})
	agg.Record(CompileEvent{Type: EventCompile, Query: "ti:a", Outcome: OutcomeCompiled, Fields: []string{"title"}})

	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalCompiles)
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(9), stats.Outcomes[OutcomeCompiled])
	assert.Equal(t, int64(2), stats.Outcomes[OutcomeEmpty])
	assert.Equal(t, int64(4), stats.FieldUsage["title"])
	assert.Equal(t, int64(6), stats.CacheHits)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator(5)
	handle := HandleEvent(agg)

	value, err := json.Marshal(CompileEvent{Type: EventCompile, Query: "ti:a", Outcome: OutcomeCompiled})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte(OutcomeCompiled), value))
	err = handle(context.Background(), []byte("bad"), []byte("{not json"))
	assert.ErrorIs(t, err, kafka.ErrMalformed, "undecodable messages are skipped, not retried")

	assert.Equal(t, int64(1), agg.Stats().TotalCompiles)
}

func TestTopN(t *testing.T) {
	counts := map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 2}, {"b", 2}}, topN(counts, 3))
	assert.Empty(t, topN(nil, 3))
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(6), percentile(sorted, 50))
	assert.Equal(t, int64(10), percentile(sorted, 99))
	assert.Equal(t, int64(0), percentile(nil, 50))
}
