package handler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/tracing"
)

// Compiler turns classic query text into a compiled tree.
// *compiler.Pipeline satisfies it.
type Compiler interface {
	Compile(ctx context.Context, input string) (query.Node, error)
}

// Searcher runs a compiled tree. *executor.Executor satisfies it.
type Searcher interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// Options wires a Service. Cache, Searcher, Tracker and Metrics are optional.
type Options struct {
	Compiler       Compiler
	Cache          *cache.QueryCache
	Searcher       Searcher
	Tracker        analytics.Tracker
	Metrics        *metrics.Metrics
	MaxQueryLength int
	DefaultLimit   int
	MaxResults     int

	// TraceSampleRate is the share of compilations whose per-stage spans
	// are logged. Zero disables tracing.
	TraceSampleRate float64
}

// Service is the transport-independent core shared by the HTTP and RPC
// front ends.
type Service struct {
	compiler       Compiler
	cache          *cache.QueryCache
	searcher       Searcher
	tracker        analytics.Tracker
	metrics        *metrics.Metrics
	maxQueryLength int
	defaultLimit   int
	maxResults     int
	sampleRate     float64
	logger         *slog.Logger
}

func NewService(opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Service{
		compiler:       opts.Compiler,
		cache:          opts.Cache,
		searcher:       opts.Searcher,
		tracker:        opts.Tracker,
		metrics:        opts.Metrics,
		maxQueryLength: opts.MaxQueryLength,
		defaultLimit:   opts.DefaultLimit,
		maxResults:     opts.MaxResults,
		sampleRate:     opts.TraceSampleRate,
		logger:         slog.Default().With("component", "query-service"),
	}
}

// Compiled is the outcome of a successful compilation.
type Compiled struct {
	Query   string
	Node    query.Node
	Cached  bool
	Latency time.Duration
}

// SearchParams mirrors the legacy query API parameters. Limit zero means the
// default page size.
type SearchParams struct {
	Query  string
	IDList []string
	Limit  int
	Offset int
}

// SearchOutcome is a search result along with the compiled tree that
// produced it. Node is nil for id_list-only searches.
type SearchOutcome struct {
	Query   string
	Node    query.Node
	Cached  bool
	Result  *executor.Result
	Latency time.Duration
}

// Compile compiles input and records the outcome. source names the front
// end ("http", "rpc", "cli") for analytics.
func (s *Service) Compile(ctx context.Context, source, input string) (*Compiled, error) {
	start := time.Now()
	node, cached, err := s.compile(ctx, input)
	latency := time.Since(start)

	event := analytics.NewCompileEvent(input, node, err)
	event.Source = source
	event.CacheHit = cached
	event.LatencyUs = latency.Microseconds()
	event.RequestID = logger.RequestID(ctx)
	s.record(ctx, event)

	if err != nil {
		return nil, err
	}
	return &Compiled{Query: input, Node: node, Cached: cached, Latency: latency}, nil
}

// Search compiles p.Query, when present, and runs it against the index.
func (s *Service) Search(ctx context.Context, source string, p SearchParams) (*SearchOutcome, error) {
	if s.searcher == nil {
		return nil, apperrors.New(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable, "no search index is configured")
	}
	ids := cleanIDs(p.IDList)
	if strings.TrimSpace(p.Query) == "" && len(ids) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "search_query or id_list is required")
	}
	if p.Offset < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "start must not be negative")
	}
	limit := p.Limit
	if limit < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "max_results must not be negative")
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxResults {
		limit = s.maxResults
	}

	start := time.Now()
	var (
		node   query.Node
		cached bool
		err    error
	)
	if strings.TrimSpace(p.Query) != "" {
		node, cached, err = s.compile(ctx, p.Query)
	}

	var result *executor.Result
	if err == nil {
		result, err = s.searcher.Execute(ctx, executor.Request{
			Query:  node,
			IDList: ids,
			Limit:  limit,
			Offset: p.Offset,
		})
		if err != nil {
			logger.FromContext(ctx).Error("search execution failed", "query", p.Query, "error", err)
			err = apperrors.Newf(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable, "search failed: %v", err)
		}
	}
	latency := time.Since(start)

	event := analytics.NewCompileEvent(p.Query, node, err)
	event.Type = analytics.EventSearch
	event.Source = source
	event.CacheHit = cached
	event.LatencyUs = latency.Microseconds()
	event.RequestID = logger.RequestID(ctx)
	if result != nil {
		total := result.TotalHits
		event.TotalHits = &total
	}
	s.record(ctx, event)

	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSearch(cached, latency, result.TotalHits)
	return &SearchOutcome{Query: p.Query, Node: node, Cached: cached, Result: result, Latency: latency}, nil
}

// CacheStats reports compile cache counters; ok is false when caching is
// disabled.
func (s *Service) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

// InvalidateCache drops every cached tree.
func (s *Service) InvalidateCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled")
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) compile(ctx context.Context, input string) (query.Node, bool, error) {
	if s.maxQueryLength > 0 && len(input) > s.maxQueryLength {
		return nil, false, apperrors.Newf(apperrors.ErrQueryTooLong, http.StatusRequestEntityTooLarge,
			"query is %d bytes, the limit is %d", len(input), s.maxQueryLength)
	}
	if s.sampleRate > 0 && rand.Float64() < s.sampleRate {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "compile", logger.RequestID(ctx))
		defer func() {
			span.End()
			span.Log(ctx)
		}()
	}
	if s.cache != nil {
		return s.cache.GetOrCompile(ctx, input, s.compiler.Compile)
	}
	node, err := s.compiler.Compile(ctx, input)
	return node, false, err
}

func (s *Service) record(ctx context.Context, event analytics.CompileEvent) {
	s.metrics.ObserveCompile(event.Outcome, event.EmptyReason)
	if s.tracker != nil {
		s.tracker.Track(event)
	}
	logger.FromContext(ctx).Debug("query processed",
		"type", event.Type,
		"outcome", event.Outcome,
		"canonical", event.Canonical,
		"cache_hit", event.CacheHit,
		"latency_us", event.LatencyUs,
	)
}

// cleanIDs splits comma separated entries and drops blanks.
func cleanIDs(raw []string) []string {
	var ids []string
	for _, entry := range raw {
		for _, id := range strings.Split(entry, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
