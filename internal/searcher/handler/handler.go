package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/middleware"
)

type SearchEngine interface {
	Execute(ctx context.Context, query string, limit int, refiner ranker.Refiner) (*executor.SearchResult, error)
	Document(id int) (document.Document, error)
}

type Options struct {
	DefaultLimit int
	MaxResults   int
	// Refiner is applied when a request asks for refinement, or to every
	// request when RefineByDefault is set. Nil disables refinement.
	Refiner         ranker.Refiner
	RefineByDefault bool
	// CacheNamespace separates cache entries of differently built indexes.
	CacheNamespace string
	Metrics        *metrics.Metrics
}

type Handler struct {
	engine    SearchEngine
	cache     *cache.QueryCache
	collector *analytics.Collector
	opts      Options
	logger    *slog.Logger
}

// New wires the search endpoints. queryCache and collector may be nil.
func New(engine SearchEngine, queryCache *cache.QueryCache, collector *analytics.Collector, opts Options) *Handler {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	opts.DefaultLimit = min(opts.DefaultLimit, opts.MaxResults)
	return &Handler{
		engine:    engine,
		cache:     queryCache,
		collector: collector,
		opts:      opts,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.opts.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.opts.MaxResults)
	}

	refine := h.opts.RefineByDefault
	if refineStr := r.URL.Query().Get("refine"); refineStr != "" {
		parsed, err := strconv.ParseBool(refineStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "refine must be a boolean")
			return
		}
		refine = parsed
	}
	refiner := ranker.NoRefinement
	if refine && h.opts.Refiner != nil {
		refiner = h.opts.Refiner
	} else {
		refine = false
	}

	plan := parser.Parse(query)
	if plan.Empty() {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Terms:   plan.Terms,
			Results: []executor.Hit{},
		})
		return
	}

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	cacheStatus := "bypass"
	compute := func() (*executor.SearchResult, error) {
		return h.engine.Execute(ctx, query, limit, refiner)
	}
	if h.cache != nil {
		key := cache.Key{Namespace: h.opts.CacheNamespace, Query: query, Limit: limit, Refined: refine}
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}
	if result.Query != query {
		// Cached and shared results carry the query of whoever computed them.
		echoed := *result
		echoed.Query = query
		result = &echoed
	}

	latency := time.Since(start)
	if h.opts.Metrics != nil {
		h.opts.Metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_status", cacheStatus,
		"refined", refine,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		event := analytics.NewSearchEvent(query, plan.Terms, result.TotalHits, len(result.Results), latency)
		event.CacheHit = cacheHit
		event.Refined = refine
		event.RequestID = middleware.GetRequestID(ctx)
		h.collector.Track(event)
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}
	doc, err := h.engine.Document(id)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":          stats.Hits,
		"misses":        stats.Misses,
		"errors":        stats.Errors,
		"total":         total,
		"hit_rate":      fmt.Sprintf("%.1f%%", hitRate),
		"circuit_state": stats.CircuitState,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
