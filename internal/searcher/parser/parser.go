// Package parser turns a raw keyword query into the ordered term list the
// executor folds over.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/tokenizer"
)

type QueryPlan struct {
	RawQuery string
	// Terms are in query order and may repeat. A repeated keyword is merged
	// again, so it counts twice.
	Terms []string
}

// Parse tokenizes query with the ingestion tokenizer, so a keyword matches
// exactly the terms it would have produced inside a document.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = append(plan.Terms, tokenizer.Tokenize(query)...)
	return plan
}

func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Normalized is the canonical form of the query: its terms joined by single
// spaces. Queries with the same normalized form always return the same
// results.
func (p *QueryPlan) Normalized() string {
	return strings.Join(p.Terms, " ")
}
