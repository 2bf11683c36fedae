// Package proto defines the message types exchanged over the JSON-over-TCP
// RPC layer (see pkg/rpc).
package proto

import "encoding/json"

// Method names served by cmd/searcher.
const (
	MethodCompile = "ClassicQuery.Compile"
	MethodSearch  = "ClassicQuery.Search"
	MethodHealth  = "ClassicQuery.Health"
)

// CompileRequest is the input to ClassicQuery.Compile.
type CompileRequest struct {
	Query string `json:"query"`
}

// CompileResponse carries the compiled tree in its engine-neutral JSON form
// along with its canonical classic-syntax rendering.
type CompileResponse struct {
	Query       string          `json:"query"`
	Canonical   string          `json:"canonical"`
	Tree        json.RawMessage `json:"tree"`
	Empty       bool            `json:"empty"`
	EmptyReason string          `json:"empty_reason,omitempty"`
	Cached      bool            `json:"cached"`
}

// SearchRequest is the input to ClassicQuery.Search.
type SearchRequest struct {
	Query  string   `json:"query"`
	IDList []string `json:"id_list,omitempty"`
	Limit  int32    `json:"limit"`
	Offset int32    `json:"offset"`
}

// SearchResponse is the output of ClassicQuery.Search.
type SearchResponse struct {
	Query     string      `json:"query"`
	Canonical string      `json:"canonical"`
	TotalHits int64       `json:"total_hits"`
	Hits      []SearchHit `json:"hits"`
	Cached    bool        `json:"cached"`
	LatencyMs int64       `json:"latency_ms"`
}

// SearchHit is a single scored paper version in the result set.
type SearchHit struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Submitted string  `json:"submitted,omitempty"`
}

// HealthCheckResponse mirrors the gRPC health check states.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING
}
