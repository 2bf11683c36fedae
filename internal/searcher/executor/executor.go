// Package executor runs compiled classic queries against the reference paper
// index.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/ast"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/resilience"
)

// Index is the part of indexer.Engine the executor needs.
type Index interface {
	Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error)
}

var _ Index = (*indexer.Engine)(nil)

// Request is a compiled query plus the optional id_list filter. Query may be
// nil when only IDs are given.
type Request struct {
	Query  query.Node
	IDList []string
	Limit  int
	Offset int
}

type Hit struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Submitted string  `json:"submitted,omitempty"`
}

type Result struct {
	TotalHits uint64        `json:"total_hits"`
	Hits      []Hit         `json:"hits"`
	Took      time.Duration `json:"took"`
}

type Executor struct {
	index   Index
	timeout time.Duration
	logger  *slog.Logger
}

func New(index Index, timeout time.Duration) *Executor {
	return &Executor{
		index:   index,
		timeout: timeout,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Build assembles the bleve query for req. Without an id_list only current
// versions are searched.
func Build(req Request) (bquery.Query, error) {
	var clauses []bquery.Query
	if req.Query != nil {
		q, err := Translate(req.Query)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, q)
	}
	if len(req.IDList) > 0 {
		clauses = append(clauses, IDFilter(req.IDList))
	} else {
		clauses = append(clauses, currentOnly())
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return bleve.NewConjunctionQuery(clauses...), nil
}

// Execute runs req under the executor's timeout. A query that compiled to an
// empty match returns no hits without touching the index.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Query == nil && len(req.IDList) == 0 {
		return nil, fmt.Errorf("nothing to search: neither a query nor an id list was given")
	}
	if req.Query != nil && query.IsEmpty(req.Query) {
		return &Result{Hits: []Hit{}}, nil
	}

	q, err := Build(req)
	if err != nil {
		return nil, fmt.Errorf("translating query: %w", err)
	}

	sr := bleve.NewSearchRequestOptions(q, req.Limit, req.Offset, false)
	sr.Fields = indexer.StoredFields
	sr.SortBy([]string{"-_score", "_id"})

	res, err := resilience.Bounded(ctx, e.timeout, "bleve-search", func(ctx context.Context) (*bleve.SearchResult, error) {
		return e.index.Search(ctx, sr)
	})
	if err != nil {
		e.logger.Warn("search failed", "canonical", canonical(req.Query), "error", err)
		return nil, fmt.Errorf("searching index: %w", err)
	}

	out := &Result{
		TotalHits: res.Total,
		Hits:      make([]Hit, 0, len(res.Hits)),
		Took:      res.Took,
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if title, ok := h.Fields[ast.Title.String()].(string); ok {
			hit.Title = title
		}
		if submitted, ok := h.Fields[ast.SubmittedDate.String()].(string); ok {
			hit.Submitted = submitted
		}
		out.Hits = append(out.Hits, hit)
	}

	logger.FromContext(ctx).Debug("query executed",
		"canonical", canonical(req.Query),
		"id_list", len(req.IDList),
		"total", out.TotalHits,
		"returned", len(out.Hits),
		"took", out.Took,
	)
	return out, nil
}

func canonical(n query.Node) string {
	if n == nil {
		return ""
	}
	return query.String(n)
}
