// Package executor answers keyword queries against a built index by folding
// the keywords' posting lists into one scored union and ordering it.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/tracing"
)

// Policy decides what a keyword missing from the index does to the
// accumulated result.
type Policy string

const (
	// PolicyUnion treats an unknown keyword as an empty posting list.
	PolicyUnion Policy = "union"
	// PolicyStrict empties the accumulator whenever a keyword is unknown and
	// keeps folding the keywords after it. A query ending in an unknown
	// keyword therefore matches nothing.
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyUnion:
		return PolicyUnion, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
		"unknown query policy %q (want %q or %q)", s, PolicyUnion, PolicyStrict)
}

type Hit struct {
	DocID       int     `json:"doc_id"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	Results   []Hit    `json:"results"`
}

type Executor struct {
	idx     *index.Index
	policy  Policy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Executor)

func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		e.policy = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

func New(idx *index.Index, opts ...Option) *Executor {
	e := &Executor{
		idx:    idx,
		policy: PolicyUnion,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Index() *index.Index {
	return e.idx
}

// Document resolves a document id against the index's store.
func (e *Executor) Document(id int) (document.Document, error) {
	return e.idx.Document(id)
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// ProcessQuery returns the ids of every document matching at least one
// keyword of query, best first. Equal scores keep ascending id order. A nil
// refiner means no refinement.
func (e *Executor) ProcessQuery(query string, refiner ranker.Refiner) []int {
	ranked := e.rank(parser.Parse(query), refiner, 0)
	ids := make([]int, len(ranked))
	for i, r := range ranked {
		ids[i] = r.DocID
	}
	return ids
}

// Execute runs query like ProcessQuery and resolves the first limit hits to
// their documents. limit <= 0 returns every hit.
func (e *Executor) Execute(ctx context.Context, query string, limit int, refiner ranker.Refiner) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "query.execute")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	plan := parser.Parse(query)
	all := e.rank(plan, refiner, 0)
	shown := all
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	hits := make([]Hit, 0, len(shown))
	for _, r := range shown {
		doc, err := e.idx.Document(r.DocID)
		if err != nil {
			return nil, fmt.Errorf("resolving hit %d: %w", r.DocID, err)
		}
		hits = append(hits, Hit{
			DocID:       r.DocID,
			Score:       r.Score,
			Title:       doc.Title,
			Description: doc.Description,
		})
	}

	e.record(len(all))
	span.SetAttr("terms", len(plan.Terms))
	span.SetAttr("hits", len(all))
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"policy", e.policy,
		"total_hits", len(all),
		"returned", len(hits),
		"duration_us", time.Since(start).Microseconds(),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		TotalHits: len(all),
		Results:   hits,
	}, nil
}

func (e *Executor) rank(plan *parser.QueryPlan, refiner ranker.Refiner, limit int) []ranker.ScoredDoc {
	if refiner == nil {
		refiner = ranker.NoRefinement
	}
	postings := refiner.Refine(e.fold(plan.Terms), e.idx)
	return ranker.Rank(postings, limit)
}

// fold merges the posting lists of terms left to right.
func (e *Executor) fold(terms []string) index.PostingList {
	if len(terms) == 0 {
		return nil
	}
	acc, _ := e.idx.Postings(terms[0])
	for _, term := range terms[1:] {
		postings, ok := e.idx.Postings(term)
		if !ok && e.policy == PolicyStrict {
			acc = nil
			continue
		}
		acc = merger.Merge(acc, postings)
	}
	return acc
}

func (e *Executor) record(totalHits int) {
	if e.metrics == nil {
		return
	}
	resultType := "hit"
	if totalHits == 0 {
		resultType = "zero_result"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchResultsCount.Observe(float64(totalHits))
}
