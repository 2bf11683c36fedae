// Package cache memoises compiled query trees in Redis. Concurrent misses for
// the same input are collapsed with singleflight, and a circuit breaker keeps
// a failing Redis from adding latency to every compile.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/resilience"
)

const keyPrefix = "compile:"

// version is bumped whenever compiler output for the same input changes, so
// stale trees are never served after a deploy.
const version = "v1"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// CompileFunc produces the tree for a cache miss.
type CompileFunc func(ctx context.Context, input string) (query.Node, error)

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.SetBreakerState(name, int(to))
		}
	}
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-compile-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached tree for input, if any.
func (c *QueryCache) Get(ctx context.Context, input string) (query.Node, bool) {
	key := buildKey(input)
	var data []byte
	err := c.breaker.Execute(func() error {
		var gerr error
		data, gerr = c.store.Get(ctx, key)
		if pkgredis.IsNilError(gerr) {
			// A miss is not a store failure.
			data = nil
			return nil
		}
		return gerr
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	if data == nil {
		c.recordMiss()
		return nil, false
	}
	node, err := query.Unmarshal(data)
	if err != nil {
		c.logger.Error("cache entry undecodable", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return node, true
}

// Set stores the tree for input. Failures are logged, not returned.
func (c *QueryCache) Set(ctx context.Context, input string, node query.Node) {
	key := buildKey(input)
	data, err := query.Marshal(node)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompile returns the cached tree for input or compiles and stores it.
// The boolean reports a cache hit. Compile errors are returned and never
// cached.
func (c *QueryCache) GetOrCompile(ctx context.Context, input string, compile CompileFunc) (query.Node, bool, error) {
	if node, ok := c.Get(ctx, input); ok {
		return node, true, nil
	}
	val, err, _ := c.group.Do(buildKey(input), func() (interface{}, error) {
		node, err := compile(ctx, input)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, input, node)
		return node, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(query.Node), false, nil
}

// NoticeSchema labels invalidation notices on the wire.
const NoticeSchema = "cache-invalidation/v1"

// InvalidationNotice asks every searcher to drop its cached trees, e.g.
// after a deploy that changes compiler output.
type InvalidationNotice struct {
	Reason   string    `json:"reason"`
	IssuedBy string    `json:"issued_by,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// NoticeEvent wraps n for publishing on the invalidation topic.
func NoticeEvent(n InvalidationNotice) kafka.Event {
	return kafka.Event{Key: "invalidate", Schema: NoticeSchema, Value: n}
}

// InvalidationHandler flushes the cache for each notice on the invalidation
// topic. Redis failures are returned so the notice is retried.
func InvalidationHandler(c *QueryCache) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		notice, err := kafka.DecodeJSON[InvalidationNotice](value)
		if err != nil {
			return err
		}
		deleted, err := c.Invalidate(ctx)
		if err != nil {
			return err
		}
		c.logger.Info("cache invalidated by notice",
			"reason", notice.Reason,
			"issued_by", notice.IssuedBy,
			"issued_at", notice.IssuedAt,
			"keys_deleted", deleted,
		)
		return nil
	}
}

// Invalidate drops every cached tree and returns how many were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports hit counters and the Redis circuit breaker.
type Stats struct {
	Hits    int64               `json:"hits"`
	Misses  int64               `json:"misses"`
	Breaker resilience.Snapshot `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.Snapshot(),
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	c.metrics.ObserveCacheLookup(true)
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	c.metrics.ObserveCacheLookup(false)
}

// buildKey hashes the raw input. Compilation is deterministic, so equal
// inputs always share an entry.
func buildKey(input string) string {
	sum := sha256.Sum256([]byte(input))
	return keyPrefix + version + ":" + hex.EncodeToString(sum[:16])
}
