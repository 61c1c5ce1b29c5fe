// evaluate builds a BM25 index over a corpus and scores it against a
// benchmark, printing [MP@3, MP@R, MAP].
//
//	evaluate --corpus data/example.tsv --benchmark data/example-benchmark.tsv --b 0.75 --k 1.75
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator/report"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator/runstore"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/resilience"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("evaluate", pflag.ContinueOnError)
	flags := config.RegisterFlags(flagSet, "")
	benchmarkPath := flagSet.String("benchmark", "", "benchmark file (query<TAB>relevant ids)")
	concurrency := flagSet.Int("concurrency", 0, "benchmark queries evaluated at once")
	store := flagSet.Bool("store", false, "save the run in PostgreSQL")
	publish := flagSet.Bool("publish", false, "publish the run to the evaluation reports topic")
	verbose := flagSet.BoolP("verbose", "v", false, "print per-query measures")
	history := flagSet.Int("history", 0, "print the last N stored runs and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := flags.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagSet.Changed("benchmark") {
		cfg.Evaluation.BenchmarkPath = *benchmarkPath
	}
	if flagSet.Changed("concurrency") {
		cfg.Evaluation.Concurrency = *concurrency
	}
	if flagSet.Changed("store") {
		cfg.Evaluation.StoreRuns = *store
	}
	if flagSet.Changed("publish") {
		cfg.Evaluation.PublishRuns = *publish
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		return printHistory(ctx, cfg, *history)
	}

	m := metrics.New(prometheus.NewRegistry())
	start := time.Now()
	engine, err := bootstrap.Engine(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	bench, err := evaluator.LoadBenchmark(cfg.Evaluation.BenchmarkPath)
	if err != nil {
		return err
	}

	measures, err := evaluator.New(
		evaluator.WithConcurrency(cfg.Evaluation.Concurrency),
		evaluator.WithMetrics(m),
	).Evaluate(ctx, engine, bench, bootstrap.SelectRefiner(cfg))
	if err != nil {
		return err
	}

	if *verbose {
		for _, q := range measures.Queries {
			fmt.Printf("%-30s P@3=%.3f P@R=%.3f AP=%.3f (%d results, %d relevant)\n",
				q.Query, q.PrecisionAt3, q.PrecisionAtR, q.AveragePrecision, q.Returned, q.Relevant)
		}
	}
	fmt.Println(measures.String())

	params, _ := bootstrap.Params(cfg.Index)
	run := evaluator.NewRun(cfg.Index.CorpusPath, cfg.Evaluation.BenchmarkPath, params, cfg.Search.Policy, cfg.Search.Refinements)
	run.StartedAt = start.UTC()
	run.Duration = time.Since(start)
	run.Measures = measures
	return record(ctx, cfg, run)
}

// record stores and publishes run as configured. Failures here are logged
// and reported, but the measures have already been printed.
func record(ctx context.Context, cfg *config.Config, run evaluator.Run) error {
	var errs []error
	if cfg.Evaluation.StoreRuns {
		if err := storeRun(ctx, cfg, run); err != nil {
			slog.Error("storing run failed", "run_id", run.ID, "error", err)
			errs = append(errs, err)
		}
	}
	if cfg.Evaluation.PublishRuns {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationReports)
		defer producer.Close()
		if err := report.NewPublisher(producer, true).Publish(ctx, run); err != nil {
			slog.Error("publishing run failed", "run_id", run.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openStore connects to PostgreSQL, retrying briefly, and makes sure the
// run tables exist.
func openStore(ctx context.Context, cfg *config.Config) (*runstore.Store, func() error, error) {
	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 3}, func(ctx context.Context) error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	store := runstore.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

func printHistory(ctx context.Context, cfg *config.Config, n int) error {
	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  b=%g k=%s idf=%s policy=%s refined=%t  %s\n",
			r.StartedAt.Format(time.RFC3339), r.ID, r.B, r.K, r.IDF, r.Policy, r.Refinements, r.Measures.String())
	}
	return nil
}

func storeRun(ctx context.Context, cfg *config.Config, run evaluator.Run) error {
	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := store.Save(ctx, run); err != nil {
		return err
	}
	if best, err := store.Best(ctx, run.Corpus, run.Benchmark); err == nil && best != nil && best.ID != run.ID {
		slog.Info("best stored run",
			"run_id", best.ID,
			"b", best.B,
			"k", best.K,
			"map", best.Measures.MeanAveragePrecision,
		)
	}
	return nil
}
