package evaluator

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
)

// Run records one evaluation: the settings the index was built and queried
// with, and the measures obtained. K is kept as text because it may be
// +Inf, which JSON cannot carry.
type Run struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Corpus      string        `json:"corpus"`
	Benchmark   string        `json:"benchmark"`
	B           float64       `json:"b"`
	K           string        `json:"k"`
	IDF         string        `json:"idf"`
	Policy      string        `json:"policy"`
	Refinements bool          `json:"refinements"`
	Duration    time.Duration `json:"duration_ns"`
	Measures    Measures      `json:"measures"`
}

func NewRun(corpus, benchmark string, params ranker.Params, policy string, refinements bool) Run {
	idf := string(params.IDF)
	if idf == "" {
		idf = string(ranker.IDFClassic)
	}
	return Run{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Corpus:      corpus,
		Benchmark:   benchmark,
		B:           params.B,
		K:           strconv.FormatFloat(params.K, 'g', -1, 64),
		IDF:         idf,
		Policy:      policy,
		Refinements: refinements,
	}
}
