// searcher serves BM25 search over a corpus indexed at startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/resilience"
)

func main() {
	flagSet := pflag.NewFlagSet("searcher", pflag.ExitOnError)
	flags := config.RegisterFlags(flagSet, "configs/development.yaml")
	flagSet.Parse(os.Args[1:])

	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Index.CorpusPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	exec, err := bootstrap.Engine(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to build index", "error", err)
		os.Exit(1)
	}
	idx := exec.Index()
	slog.Info("index ready",
		"documents", idx.DocCount(),
		"terms", idx.NumTerms(),
		"policy", exec.Policy(),
	)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		err = resilience.Retry(ctx, "redis connect", resilience.RetryConfig{MaxAttempts: 3}, func(ctx context.Context) error {
			var err error
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cache.Options{TTL: cfg.Redis.CacheTTL, Metrics: m})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("publishing search events", "topic", cfg.Kafka.Topics.SearchEvents)
	}
	aggregator := analytics.NewAggregator(10)
	collector := analytics.NewCollector(publisher, aggregator, 10000)
	// Publishing outlives the signal so in-flight requests drain before Close.
	collector.Start(context.WithoutCancel(ctx))
	defer collector.Close()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if idx.DocCount() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "empty index"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", idx.DocCount(), idx.NumTerms()),
		}
	})
	if cfg.Redis.Enabled {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "unreachable at startup, caching disabled"}
			}
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(exec, queryCache, collector, handler.Options{
		DefaultLimit:    cfg.Search.DefaultLimit,
		MaxResults:      cfg.Search.MaxResults,
		Refiner:         bootstrap.Refiner(cfg.Refinement),
		RefineByDefault: cfg.Search.Refinements,
		CacheNamespace:  bootstrap.CacheNamespace(cfg),
		Metrics:         m,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
