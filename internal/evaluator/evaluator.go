// Package evaluator scores a query engine against a benchmark of judged
// queries with P@3, P@R and average precision, and their means.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/tracing"
)

// QueryEngine is the only thing the evaluator needs from the search side.
// *executor.Executor satisfies it.
type QueryEngine interface {
	ProcessQuery(query string, refiner ranker.Refiner) []int
}

type QueryResult struct {
	Query            string  `json:"query"`
	Relevant         int     `json:"relevant"`
	Returned         int     `json:"returned"`
	PrecisionAt3     float64 `json:"p_at_3"`
	PrecisionAtR     float64 `json:"p_at_r"`
	AveragePrecision float64 `json:"ap"`
}

type Measures struct {
	MeanPrecisionAt3     float64       `json:"mp_at_3"`
	MeanPrecisionAtR     float64       `json:"mp_at_r"`
	MeanAveragePrecision float64       `json:"map"`
	Queries              []QueryResult `json:"queries"`
}

// Triple returns (MP@3, MP@R, MAP).
func (m Measures) Triple() [3]float64 {
	return [3]float64{m.MeanPrecisionAt3, m.MeanPrecisionAtR, m.MeanAveragePrecision}
}

// DistanceFromIdeal is the Euclidean distance of the triple from (1, 1, 1),
// a single number for comparing parameter settings. Lower is better.
func (m Measures) DistanceFromIdeal() float64 {
	var sum float64
	for _, v := range m.Triple() {
		sum += (1 - v) * (1 - v)
	}
	return math.Sqrt(sum)
}

func (m Measures) String() string {
	return fmt.Sprintf("[%.3f, %.3f, %.3f]", m.MeanPrecisionAt3, m.MeanPrecisionAtR, m.MeanAveragePrecision)
}

type Evaluator struct {
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Evaluator)

// WithConcurrency runs up to n benchmark queries at once.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		concurrency: 1,
		logger:      slog.Default().With("component", "evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every benchmark query through engine and averages the
// per-query measures. Per-query rows keep benchmark order.
func (e *Evaluator) Evaluate(ctx context.Context, engine QueryEngine, bench Benchmark, refiner ranker.Refiner) (Measures, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "evaluate")
	defer span.End()

	if len(bench) == 0 {
		e.recordRun("failed")
		return Measures{}, apperrors.New(apperrors.ErrEmptyBenchmark, http.StatusUnprocessableEntity,
			"benchmark has no queries")
	}

	rows := make([]QueryResult, len(bench))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, entry := range bench {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("evaluating %q: %w", entry.Query, err)
			}
			rows[i] = judge(entry, engine.ProcessQuery(entry.Query, refiner))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.recordRun("failed")
		return Measures{}, err
	}

	m := Measures{Queries: rows}
	for _, row := range rows {
		m.MeanPrecisionAt3 += row.PrecisionAt3
		m.MeanPrecisionAtR += row.PrecisionAtR
		m.MeanAveragePrecision += row.AveragePrecision
		e.logger.Debug("query judged",
			"query", row.Query,
			"returned", row.Returned,
			"p_at_3", row.PrecisionAt3,
			"p_at_r", row.PrecisionAtR,
			"ap", row.AveragePrecision,
		)
	}
	n := float64(len(rows))
	m.MeanPrecisionAt3 /= n
	m.MeanPrecisionAtR /= n
	m.MeanAveragePrecision /= n

	e.recordRun("success")
	if e.metrics != nil {
		e.metrics.EvaluationMeasure.WithLabelValues("mp_at_3").Set(m.MeanPrecisionAt3)
		e.metrics.EvaluationMeasure.WithLabelValues("mp_at_r").Set(m.MeanPrecisionAtR)
		e.metrics.EvaluationMeasure.WithLabelValues("map").Set(m.MeanAveragePrecision)
	}
	span.SetAttr("queries", len(rows))
	e.logger.Info("evaluation finished",
		"queries", len(rows),
		"mp_at_3", m.MeanPrecisionAt3,
		"mp_at_r", m.MeanPrecisionAtR,
		"map", m.MeanAveragePrecision,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

func judge(entry Entry, resultIDs []int) QueryResult {
	return QueryResult{
		Query:            entry.Query,
		Relevant:         len(entry.Relevant),
		Returned:         len(resultIDs),
		PrecisionAt3:     PrecisionAtK(resultIDs, entry.Relevant, 3),
		PrecisionAtR:     PrecisionAtK(resultIDs, entry.Relevant, len(entry.Relevant)),
		AveragePrecision: AveragePrecision(resultIDs, entry.Relevant),
	}
}

func (e *Evaluator) recordRun(status string) {
	if e.metrics != nil {
		e.metrics.EvaluationRunsTotal.WithLabelValues(status).Inc()
	}
}
