package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
)

const maxLatencySamples = 100000

type AggregatedStats struct {
	TotalCompiles    int64            `json:"total_compiles"`
	TotalSearches    int64            `json:"total_searches"`
	Outcomes         map[string]int64 `json:"outcomes"`
	EmptyReasons     map[string]int64 `json:"empty_reasons"`
	FieldUsage       map[string]int64 `json:"field_usage"`
	Sources          map[string]int64 `json:"sources"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	ZeroResultCount  int64            `json:"zero_result_count"`
	AvgLatencyUs     float64          `json:"avg_latency_us"`
	P50LatencyUs     int64            `json:"p50_latency_us"`
	P95LatencyUs     int64            `json:"p95_latency_us"`
	P99LatencyUs     int64            `json:"p99_latency_us"`
	TopQueries       []QueryCount     `json:"top_queries"`
	TopFailing       []QueryCount     `json:"top_failing_queries"`
	TopEmpty         []QueryCount     `json:"top_empty_queries"`
	QueriesPerMinute float64          `json:"queries_per_minute"`
	CapturedAt       time.Time        `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds compile events into running totals. Counters restored
// from a snapshot carry over; latency samples and per-query tables start
// fresh.
type Aggregator struct {
	mu            sync.RWMutex
	totalCompiles int64
	totalSearches int64
	outcomes      map[string]int64
	emptyReasons  map[string]int64
	fieldUsage    map[string]int64
	sources       map[string]int64
	cacheHits     int64
	cacheMisses   int64
	zeroResults   int64
	latencies     []int64
	queryCounts   map[string]int64
	failing       map[string]int64
	empty         map[string]int64
	startTime     time.Time
	topN          int

	logger *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		outcomes:     make(map[string]int64),
		emptyReasons: make(map[string]int64),
		fieldUsage:   make(map[string]int64),
		sources:      make(map[string]int64),
		latencies:    make([]int64, 0, 1024),
		queryCounts:  make(map[string]int64),
		failing:      make(map[string]int64),
		empty:        make(map[string]int64),
		startTime:    time.Now(),
		topN:         topN,
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes compile events from Kafka into agg. Undecodable
// messages come back as kafka.ErrMalformed so the consumer skips them.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[CompileEvent](value)
		if err != nil {
			return fmt.Errorf("compile event %q: %w", key, err)
		}
		agg.Record(event)
		return nil
	}
}

// Track records the event in-process. It lets the aggregator stand in for a
// Kafka-backed collector when analytics run inside the searcher.
func (a *Aggregator) Track(event CompileEvent) {
	a.Record(event)
}

func (a *Aggregator) Record(event CompileEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventSearch:
		a.totalSearches++
		if event.TotalHits != nil && *event.TotalHits == 0 {
			a.zeroResults++
		}
	default:
		a.totalCompiles++
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}

	a.outcomes[event.Outcome]++
	if event.EmptyReason != "" {
		a.emptyReasons[event.EmptyReason]++
	}
	for _, f := range event.Fields {
		a.fieldUsage[f]++
	}
	if event.Source != "" {
		a.sources[event.Source]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	}
	a.queryCounts[event.Query]++
	switch event.Outcome {
	case OutcomeCompiled:
	case OutcomeEmpty:
		a.empty[event.Query]++
	default:
		a.failing[event.Query]++
	}
}

// Restore seeds the running counters from a previous snapshot.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalCompiles += s.TotalCompiles
	a.totalSearches += s.TotalSearches
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.zeroResults += s.ZeroResultCount
	addAll(a.outcomes, s.Outcomes)
	addAll(a.emptyReasons, s.EmptyReasons)
	addAll(a.fieldUsage, s.FieldUsage)
	addAll(a.sources, s.Sources)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalCompiles:   a.totalCompiles,
		TotalSearches:   a.totalSearches,
		Outcomes:        copyCounts(a.outcomes),
		EmptyReasons:    copyCounts(a.emptyReasons),
		FieldUsage:      copyCounts(a.fieldUsage),
		Sources:         copyCounts(a.sources),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		CapturedAt:      time.Now().UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopFailing = topN(a.failing, a.topN)
	stats.TopEmpty = topN(a.empty, a.topN)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalCompiles+stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query text so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func addAll(dst, src map[string]int64) {
	for k, v := range src {
		dst[k] += v
	}
}
