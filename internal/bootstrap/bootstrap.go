// Package bootstrap turns a loaded config into the components every binary
// needs: a built index behind a query executor, and the configured
// refinement.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
)

func Params(cfg config.IndexConfig) (ranker.Params, error) {
	idf, err := ranker.ParseIDF(cfg.IDF)
	if err != nil {
		return ranker.Params{}, err
	}
	p := ranker.Params{B: cfg.B, K: cfg.K, IDF: idf}
	return p, p.Validate()
}

// Refiner returns the popularity refinement configured in cfg.
func Refiner(cfg config.RefinementConfig) ranker.Refiner {
	return ranker.PopularityRefiner{
		SitelinkWeight: cfg.SitelinkWeight,
		RatingWeight:   cfg.RatingWeight,
		MinRatingCount: cfg.MinRatingCount,
	}
}

// SelectRefiner is Refiner(cfg.Refinement) when refinements are enabled and
// ranker.NoRefinement otherwise.
func SelectRefiner(cfg *config.Config) ranker.Refiner {
	if cfg.Search.Refinements {
		return Refiner(cfg.Refinement)
	}
	return ranker.NoRefinement
}

// Engine builds the index for cfg.Index.CorpusPath and wraps it in an
// executor using cfg.Search.Policy. m may be nil.
func Engine(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*executor.Executor, error) {
	params, err := Params(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("index parameters: %w", err)
	}
	policy, err := executor.ParsePolicy(cfg.Search.Policy)
	if err != nil {
		return nil, err
	}
	builder, err := indexer.NewBuilder(params,
		indexer.WithShards(cfg.Index.Shards),
		indexer.WithWorkers(cfg.Index.Workers),
		indexer.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	idx, err := builder.BuildFile(ctx, cfg.Index.CorpusPath)
	if err != nil {
		return nil, err
	}
	slog.Info("search engine ready", "index", idx.String(), "policy", policy, "params", params.String())
	return executor.New(idx, executor.WithPolicy(policy), executor.WithMetrics(m)), nil
}

// CacheNamespace identifies the index and policy a cached result was
// computed with.
func CacheNamespace(cfg *config.Config) string {
	return fmt.Sprintf("%s|b=%g|k=%g|idf=%s|policy=%s",
		cfg.Index.CorpusPath, cfg.Index.B, cfg.Index.K, cfg.Index.IDF, cfg.Search.Policy)
}
