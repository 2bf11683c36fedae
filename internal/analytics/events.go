// Package analytics records what happens to classic queries: how many
// compile, how many collapse to an empty match and why, which syntax errors
// users hit, and which fields they search. Events flow from the searcher
// through Kafka to an aggregator that snapshots to PostgreSQL.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

// EventSchema labels compile events on the wire.
const EventSchema = "compile-event/v1"

type EventType string

const (
	EventCompile EventType = "compile"
	EventSearch  EventType = "search"
)

// Outcomes other than these are the syntax error kind, e.g. "UnknownField".
const (
	OutcomeCompiled = "compiled"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
)

// CompileEvent describes one compilation, and for searches the hit count.
type CompileEvent struct {
	Type        EventType `json:"type"`
	Source      string    `json:"source"`
	Query       string    `json:"query"`
	Canonical   string    `json:"canonical,omitempty"`
	Outcome     string    `json:"outcome"`
	EmptyReason string    `json:"empty_reason,omitempty"`
	ErrorPos    *int      `json:"error_position,omitempty"`
	Fields      []string  `json:"fields,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	TotalHits   *uint64   `json:"total_hits,omitempty"`
	LatencyUs   int64     `json:"latency_us"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the request path.
type Tracker interface {
	Track(event CompileEvent)
}

// NewCompileEvent fills the outcome fields of an event from a compile
// result.
func NewCompileEvent(input string, node query.Node, err error) CompileEvent {
	e := CompileEvent{
		Type:      EventCompile,
		Query:     input,
		Timestamp: time.Now().UTC(),
	}
	e.Outcome, e.EmptyReason = Outcome(node, err)
	if se, ok := syntax.AsError(err); ok {
		pos := se.Pos
		e.ErrorPos = &pos
	}
	if err == nil && node != nil {
		e.Canonical = query.String(node)
		for _, f := range query.FieldsUsed(node) {
			e.Fields = append(e.Fields, f.String())
		}
	}
	return e
}

// Outcome classifies a compile result. For an empty match the reason is
// returned as well.
func Outcome(node query.Node, err error) (outcome, reason string) {
	if err != nil {
		if se, ok := syntax.AsError(err); ok {
			return se.Kind.String(), ""
		}
		return OutcomeFailed, ""
	}
	if empty, ok := node.(*query.Empty); ok {
		return OutcomeEmpty, string(empty.Reason)
	}
	return OutcomeCompiled, ""
}

// Trackers fans each event out to every tracker in the list.
type Trackers []Tracker

func (ts Trackers) Track(event CompileEvent) {
	for _, t := range ts {
		t.Track(event)
	}
}
