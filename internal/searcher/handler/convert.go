package handler

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/proto"
)

// CompileResponse renders a compilation as its wire message.
func CompileResponse(c *Compiled) (*proto.CompileResponse, error) {
	tree, err := query.Marshal(c.Node)
	if err != nil {
		return nil, fmt.Errorf("encoding compiled tree: %w", err)
	}
	resp := &proto.CompileResponse{
		Query:     c.Query,
		Canonical: query.String(c.Node),
		Tree:      tree,
		Cached:    c.Cached,
	}
	if empty, ok := c.Node.(*query.Empty); ok {
		resp.Empty = true
		resp.EmptyReason = string(empty.Reason)
	}
	return resp, nil
}

// SearchResponse renders a search outcome as its wire message.
func SearchResponse(o *SearchOutcome) *proto.SearchResponse {
	resp := &proto.SearchResponse{
		Query:     o.Query,
		TotalHits: int64(o.Result.TotalHits),
		Hits:      make([]proto.SearchHit, 0, len(o.Result.Hits)),
		Cached:    o.Cached,
		LatencyMs: o.Latency.Milliseconds(),
	}
	if o.Node != nil {
		resp.Canonical = query.String(o.Node)
	}
	for _, h := range o.Result.Hits {
		resp.Hits = append(resp.Hits, proto.SearchHit{
			ID:        h.ID,
			Title:     h.Title,
			Score:     h.Score,
			Submitted: h.Submitted,
		})
	}
	return resp
}
