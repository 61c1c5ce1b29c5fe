package runstore

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/postgres"
)

func sampleRun(mapScore float64) evaluator.Run {
	run := evaluator.NewRun("data/example.tsv", "data/example-benchmark.tsv",
		ranker.Params{B: 0.75, K: 1.75}, "union", false)
	run.Duration = 12 * time.Millisecond
	run.Measures = evaluator.Measures{
		MeanPrecisionAt3:     0.667,
		MeanPrecisionAtR:     0.833,
		MeanAveragePrecision: mapScore,
		Queries: []evaluator.QueryResult{
			{Query: "animated film", Relevant: 3, Returned: 3, PrecisionAt3: 2.0 / 3},
			{Query: "short film", Relevant: 2, Returned: 3, AveragePrecision: 1},
		},
	}
	return run
}

func TestQueryRowsKeepOrder(t *testing.T) {
	rows, err := queryRows(sampleRun(0.694))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	var second evaluator.QueryResult
	if err := json.Unmarshal(rows[1], &second); err != nil {
		t.Fatal(err)
	}
	if second.Query != "short film" || second.AveragePrecision != 1 {
		t.Errorf("second row = %+v", second)
	}
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "relevancelab_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "relevancelab"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSaveAndQueryRuns(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	store := NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	weak, strong := sampleRun(0.5), sampleRun(0.9)
	strong.K = "+Inf"
	for _, run := range []evaluator.Run{weak, strong} {
		if err := store.Save(ctx, run); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			db.DB.Exec(`DELETE FROM evaluation_runs WHERE id = $1`, run.ID)
		})
	}

	best, err := store.Best(ctx, weak.Corpus, weak.Benchmark)
	if err != nil {
		t.Fatal(err)
	}
	if best == nil || best.ID != strong.ID || best.K != "+Inf" {
		t.Errorf("best run = %+v, want %s", best, strong.ID)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) < 2 {
		t.Errorf("recent runs = %d, want at least 2", len(recent))
	}

	none, err := store.Best(ctx, "missing.tsv", "missing-benchmark.tsv")
	if err != nil || none != nil {
		t.Errorf("Best on unknown corpus = %+v, %v", none, err)
	}
}
