// Package runstore keeps the history of evaluation runs in PostgreSQL so
// parameter settings can be compared over time.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/postgres"
)

// Schema creates the tables Store writes to. Per-query rows are removed
// with their run.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
    id           UUID PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    corpus       TEXT NOT NULL,
    benchmark    TEXT NOT NULL,
    b            DOUBLE PRECISION NOT NULL,
    k            TEXT NOT NULL,
    idf          TEXT NOT NULL,
    policy       TEXT NOT NULL,
    refinements  BOOLEAN NOT NULL,
    duration_ms  BIGINT NOT NULL,
    mp_at_3      DOUBLE PRECISION NOT NULL,
    mp_at_r      DOUBLE PRECISION NOT NULL,
    map          DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS evaluation_queries (
    run_id    UUID NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
    position  INTEGER NOT NULL,
    data      JSONB NOT NULL,
    PRIMARY KEY (run_id, position)
);`

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating run tables: %w", err)
	}
	return nil
}

// Save writes run and its per-query rows in one transaction.
func (s *Store) Save(ctx context.Context, run evaluator.Run) error {
	rows, err := queryRows(run)
	if err != nil {
		return err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO evaluation_runs
			    (id, started_at, corpus, benchmark, b, k, idf, policy, refinements, duration_ms, mp_at_3, mp_at_r, map)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			run.ID, run.StartedAt, run.Corpus, run.Benchmark, run.B, run.K, run.IDF, run.Policy,
			run.Refinements, run.Duration.Milliseconds(),
			run.Measures.MeanPrecisionAt3, run.Measures.MeanPrecisionAtR, run.Measures.MeanAveragePrecision,
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		for i, data := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO evaluation_queries (run_id, position, data) VALUES ($1, $2, $3)`,
				run.ID, i, data,
			); err != nil {
				return fmt.Errorf("inserting query row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	s.logger.Info("evaluation run saved", "run_id", run.ID, "queries", len(rows))
	return nil
}

// Recent returns the last limit runs, newest first, without per-query rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]evaluator.Run, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, started_at, corpus, benchmark, b, k, idf, policy, refinements, duration_ms, mp_at_3, mp_at_r, map
		 FROM evaluation_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []evaluator.Run
	for rows.Next() {
		var (
			run        evaluator.Run
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.Corpus, &run.Benchmark, &run.B, &run.K,
			&run.IDF, &run.Policy, &run.Refinements, &durationMS,
			&run.Measures.MeanPrecisionAt3, &run.Measures.MeanPrecisionAtR, &run.Measures.MeanAveragePrecision,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		run.Duration = msToDuration(durationMS)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Best returns the run with the highest MAP for a corpus and benchmark, or
// nil when there is none.
func (s *Store) Best(ctx context.Context, corpus, benchmark string) (*evaluator.Run, error) {
	var (
		run        evaluator.Run
		durationMS int64
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, started_at, corpus, benchmark, b, k, idf, policy, refinements, duration_ms, mp_at_3, mp_at_r, map
		 FROM evaluation_runs WHERE corpus = $1 AND benchmark = $2
		 ORDER BY map DESC, started_at DESC LIMIT 1`,
		corpus, benchmark,
	).Scan(&run.ID, &run.StartedAt, &run.Corpus, &run.Benchmark, &run.B, &run.K,
		&run.IDF, &run.Policy, &run.Refinements, &durationMS,
		&run.Measures.MeanPrecisionAt3, &run.Measures.MeanPrecisionAtR, &run.Measures.MeanAveragePrecision,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying best run: %w", err)
	}
	run.Duration = msToDuration(durationMS)
	return &run, nil
}

func queryRows(run evaluator.Run) ([][]byte, error) {
	rows := make([][]byte, len(run.Measures.Queries))
	for i, q := range run.Measures.Queries {
		data, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshaling query row %d: %w", i, err)
		}
		rows[i] = data
	}
	return rows, nil
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
