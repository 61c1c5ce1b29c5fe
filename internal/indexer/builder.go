// Package indexer builds the BM25 inverted index from corpus records in two
// passes. The first pass ingests documents and accumulates raw term
// frequencies into posting lists; the second replaces every frequency with
// its BM25 score. An Index value is only returned once both passes have
// succeeded.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/tracing"
)

// ctxCheckEvery is how many documents pass one handles between
// cancellation checks.
const ctxCheckEvery = 256

type Builder struct {
	params  ranker.Params
	shards  int
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Builder)

// WithShards runs pass one over n contiguous id ranges concurrently.
func WithShards(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.shards = n
		}
	}
}

// WithWorkers bounds the number of goroutines scoring terms in pass two.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder validates params, which stay fixed for every index it builds.
func NewBuilder(params ranker.Params, opts ...Option) (*Builder, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("index parameters: %w", err)
	}
	params.IDF, _ = ranker.ParseIDF(string(params.IDF))
	b := &Builder{
		params:  params,
		shards:  1,
		workers: 1,
		logger:  slog.Default().With("component", "index-builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) Params() ranker.Params {
	return b.params
}

// Build indexes lines, one corpus record each, in order: line i becomes
// document i+1. It fails with ErrMalformedRecord on a bad record and with
// ErrEmptyCorpus when there are no documents or no tokens at all.
func (b *Builder) Build(ctx context.Context, lines []string) (*index.Index, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "index.build")
	defer func() {
		span.End()
		span.Log(b.logger)
	}()

	idx, err := b.build(ctx, lines)
	if err != nil {
		b.recordBuild("failed")
		b.logger.Error("index build failed", "error", err, "documents", len(lines))
		return nil, err
	}
	b.recordBuild("success")
	if b.metrics != nil {
		b.metrics.IndexedDocuments.Set(float64(idx.DocCount()))
		b.metrics.IndexedTerms.Set(float64(idx.NumTerms()))
		b.metrics.AvgDocumentLength.Set(idx.AvgDocLength())
	}
	span.SetAttr("terms", idx.NumTerms())
	b.logger.Info("index built",
		"documents", idx.DocCount(),
		"terms", idx.NumTerms(),
		"avg_doc_length", idx.AvgDocLength(),
		"params", b.params.String(),
		"shards", b.shards,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// BuildFile reads the corpus at path, one record per line with blank lines
// skipped, and indexes it.
func (b *Builder) BuildFile(ctx context.Context, path string) (*index.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	lines, err := document.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	b.logger.Debug("corpus read", "path", path, "records", len(lines))
	return b.Build(ctx, lines)
}

func (b *Builder) build(ctx context.Context, lines []string) (*index.Index, error) {
	passCtx, pass1Span := tracing.StartChildSpan(ctx, "pass1")
	pass1Start := time.Now()
	store := document.NewStore()
	for _, line := range lines {
		if _, err := store.Ingest(line); err != nil {
			pass1Span.End()
			return nil, fmt.Errorf("ingesting corpus: %w", err)
		}
	}
	lists, err := b.accumulate(passCtx, store.Count(), lines)
	pass1Span.SetAttr("documents", store.Count())
	pass1Span.End()
	b.observePass("pass1", pass1Start)
	if err != nil {
		return nil, err
	}

	avgDocLength := store.AverageLength()
	if store.Count() == 0 || avgDocLength == 0 {
		return nil, apperrors.Newf(apperrors.ErrEmptyCorpus, http.StatusUnprocessableEntity,
			"%d document(s), average length %v", store.Count(), avgDocLength)
	}

	passCtx, pass2Span := tracing.StartChildSpan(ctx, "pass2")
	pass2Start := time.Now()
	err = b.score(passCtx, lists, store, avgDocLength)
	pass2Span.SetAttr("terms", len(lists))
	pass2Span.End()
	b.observePass("pass2", pass2Start)
	if err != nil {
		return nil, err
	}

	idx := index.New(lists, store)
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("validating index: %w", err)
	}
	return idx, nil
}

// accumulate is pass one. Each shard fills its own term map; the maps are
// then merged in shard order, which keeps every list sorted because shard
// ranges are ascending and disjoint.
func (b *Builder) accumulate(ctx context.Context, numDocs int, lines []string) (map[string]index.PostingList, error) {
	ranges := shard.Plan(numDocs, b.shards)
	if len(ranges) <= 1 {
		return countTerms(ctx, lines, shard.Range{First: 1, Last: numDocs})
	}

	partials := make([]map[string]index.PostingList, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		g.Go(func() error {
			lists, err := countTerms(gctx, lines, r)
			if err != nil {
				return fmt.Errorf("%s: %w", r, err)
			}
			partials[r.ID] = lists
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTerm := make(map[string][]index.PostingList)
	for _, partial := range partials {
		for term, postings := range partial {
			byTerm[term] = append(byTerm[term], postings)
		}
	}
	lists := make(map[string]index.PostingList, len(byTerm))
	for term, shardLists := range byTerm {
		lists[term] = merger.MergeAll(shardLists...)
	}
	return lists, nil
}

// countTerms builds raw term-frequency postings for documents r.First..r.Last.
// Documents are visited in increasing id order, so a term's current document
// can only ever be the last posting of its list.
func countTerms(ctx context.Context, lines []string, r shard.Range) (map[string]index.PostingList, error) {
	lists := make(map[string]index.PostingList)
	for id := r.First; id <= r.Last; id++ {
		if (id-r.First)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("counting terms: %w", err)
			}
		}
		for term := range tokenizer.Tokens(lines[id-1]) {
			list := lists[term]
			if n := len(list); n > 0 && list[n-1].DocID == id {
				list[n-1].Score++
				continue
			}
			lists[term] = append(list, index.Posting{DocID: id, Score: 1})
		}
	}
	return lists, nil
}

// score is pass two. Terms are independent, so they are split into chunks
// scored concurrently. The map itself is only read; each goroutine writes
// the elements of its own lists.
func (b *Builder) score(ctx context.Context, lists map[string]index.PostingList, store *document.Store, avgDocLength float64) error {
	terms := make([]string, 0, len(lists))
	for term := range lists {
		terms = append(terms, term)
	}
	numDocs := store.Count()
	chunk := (len(terms) + b.workers - 1) / b.workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(terms); lo += chunk {
		hi := min(lo+chunk, len(terms))
		g.Go(func() error {
			for _, term := range terms[lo:hi] {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("scoring terms: %w", err)
				}
				list := lists[term]
				idf := ranker.IDF(numDocs, len(list), b.params.IDF)
				for i := range list {
					tf := ranker.TFNorm(list[i].Score, float64(store.Length(list[i].DocID)), avgDocLength, b.params)
					list[i].Score = tf * idf
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) recordBuild(status string) {
	if b.metrics != nil {
		b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	}
}

func (b *Builder) observePass(pass string, start time.Time) {
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
	}
}
