// Package report announces finished evaluation runs on a Kafka topic so
// dashboards and other consumers can follow parameter sweeps.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/evaluator"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/kafka"
)

type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Report is the message body. Queries are only included when the
// publisher was created with detail enabled.
type Report struct {
	RunID    string        `json:"run_id"`
	Run      evaluator.Run `json:"run"`
	Distance float64       `json:"distance_from_ideal"`
}

type Publisher struct {
	producer Producer
	detail   bool
	logger   *slog.Logger
}

func NewPublisher(producer Producer, detail bool) *Publisher {
	return &Publisher{
		producer: producer,
		detail:   detail,
		logger:   slog.Default().With("component", "report-publisher"),
	}
}

// Publish sends run keyed by corpus and benchmark, so all runs over the
// same data land on one partition in order.
func (p *Publisher) Publish(ctx context.Context, run evaluator.Run) error {
	body := Report{
		RunID:    run.ID,
		Run:      run,
		Distance: run.Measures.DistanceFromIdeal(),
	}
	if !p.detail {
		body.Run.Measures.Queries = nil
	}
	if err := p.producer.Publish(ctx, kafka.Event{
		Key:   run.Corpus + "|" + run.Benchmark,
		Type:  "evaluation_report",
		Value: body,
	}); err != nil {
		return fmt.Errorf("publishing run %s: %w", run.ID, err)
	}
	p.logger.Info("evaluation report published", "run_id", run.ID, "measures", run.Measures.String())
	return nil
}
