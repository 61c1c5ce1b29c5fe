// Package cache stores search results in Redis. Lookups for the same key are
// collapsed with singleflight, and a circuit breaker keeps a failing Redis
// from adding latency to every search: while it is open the cache is simply
// bypassed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/resilience"
)

const keyPrefix = "search:"

// Backend is the subset of *redis.Client the cache needs. Get must return
// an error matching pkgredis.Nil for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a cached result. Namespace should change whenever the
// index or the query policy does, so stale entries are never served.
type Key struct {
	Namespace string
	Query     string
	Limit     int
	Refined   bool
}

type Options struct {
	TTL       time.Duration
	OpTimeout time.Duration
	Breaker   resilience.CircuitBreakerConfig
	Metrics   *metrics.Metrics
}

type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Errors       int64  `json:"errors"`
	CircuitState string `json:"circuit_state"`
}

type QueryCache struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
}

func New(backend Backend, opts Options) *QueryCache {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 50 * time.Millisecond
	}
	c := &QueryCache{
		backend:   backend,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		metrics:   opts.Metrics,
		logger:    slog.Default().With("component", "query-cache"),
	}
	breakerCfg := opts.Breaker
	next := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		if c.metrics != nil {
			c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
		if next != nil {
			next(name, from, to)
		}
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", breakerCfg)
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("redis-cache").Set(float64(resilience.StateClosed))
	}
	return c
}

// Get returns the cached result for key. Any backend failure is reported
// as a miss.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := buildKey(key)
	var data string
	err := c.call(ctx, "cache get", func(ctx context.Context) error {
		var err error
		data, err = c.backend.Get(ctx, k)
		if pkgredis.IsNilError(err) {
			data = ""
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		c.miss()
		return nil, false
	}

	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := buildKey(key)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	_ = c.call(ctx, "cache set", func(ctx context.Context) error {
		return c.backend.Set(ctx, k, data, c.ttl)
	})
}

// GetOrCompute serves key from the cache or runs compute once for all
// concurrent callers with the same key, caching its result. The boolean
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(key), func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		CircuitState: c.breaker.State().String(),
	}
}

// call runs fn through the circuit breaker with a per-operation timeout.
func (c *QueryCache) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, name, fn)
	})
	if err != nil {
		c.errors.Add(1)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn(name+" failed", "error", err)
		}
	}
	return err
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the query's term sequence rather than its raw text, so
// queries differing only in case or punctuation share an entry. Term order
// is kept: it matters under the strict policy.
func buildKey(key Key) string {
	raw := fmt.Sprintf("%s|%s|limit=%d|refined=%t",
		key.Namespace, parser.Parse(key.Query).Normalized(), key.Limit, key.Refined)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
