package executor

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	fixtures "github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/metrics"
)

// handBuilt is a small index with scores chosen by hand. It has no
// documents, so only ProcessQuery can run against it.
func handBuilt() *index.Index {
	return index.New(map[string]index.PostingList{
		"foo": {{DocID: 1, Score: 0.2}, {DocID: 3, Score: 0.6}},
		"bar": {{DocID: 1, Score: 0.4}, {DocID: 2, Score: 0.7}, {DocID: 3, Score: 0.5}},
		"baz": {{DocID: 2, Score: 0.1}},
	}, nil)
}

func filmIndex(t *testing.T) *index.Index {
	t.Helper()
	b, err := indexer.NewBuilder(ranker.Params{B: 0.75, K: 1.75})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := b.Build(context.Background(), fixtures.FilmCorpus)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestProcessQueryMergesKeywords(t *testing.T) {
	e := New(handBuilt())
	tests := []struct {
		query string
		want  []int
	}{
		{"foo bar", []int{3, 2, 1}},
		{"foo", []int{3, 1}},
		{"baz foo", []int{3, 1, 2}},
		{"FOO, Bar!", []int{3, 2, 1}},
		{"", []int{}},
		{"qux", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := e.ProcessQuery(tt.query, nil); !slices.Equal(got, tt.want) {
				t.Errorf("ProcessQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestUnknownKeywordPolicy(t *testing.T) {
	tests := []struct {
		query  string
		union  []int
		strict []int
	}{
		{"foo qux bar", []int{3, 2, 1}, []int{2, 3, 1}},
		{"foo bar qux", []int{3, 2, 1}, []int{}},
		{"qux foo", []int{3, 1}, []int{3, 1}},
		{"foo bar", []int{3, 2, 1}, []int{3, 2, 1}},
	}
	union := New(handBuilt())
	strict := New(handBuilt(), WithPolicy(PolicyStrict))
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := union.ProcessQuery(tt.query, nil); !slices.Equal(got, tt.union) {
				t.Errorf("union = %v, want %v", got, tt.union)
			}
			if got := strict.ProcessQuery(tt.query, nil); !slices.Equal(got, tt.strict) {
				t.Errorf("strict = %v, want %v", got, tt.strict)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyUnion, "union": PolicyUnion, "strict": PolicyStrict} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("and"); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("ParsePolicy(and) error = %v", err)
	}
}

func TestTiesKeepAscendingIDs(t *testing.T) {
	e := New(index.New(map[string]index.PostingList{
		"a": {{DocID: 2, Score: 1}, {DocID: 5, Score: 1}},
		"b": {{DocID: 1, Score: 1}, {DocID: 4, Score: 3}},
	}, nil))
	if got := e.ProcessQuery("a b", nil); !slices.Equal(got, []int{4, 1, 2, 5}) {
		t.Errorf("got %v, want [4 1 2 5]", got)
	}
}

func TestProcessQueryDoesNotMutateIndex(t *testing.T) {
	idx := handBuilt()
	e := New(idx)
	e.ProcessQuery("foo bar baz", nil)
	e.ProcessQuery("bar", ranker.RefinerFunc(func(p index.PostingList, _ ranker.DocumentSource) index.PostingList {
		for i := range p {
			p[i].Score = -p[i].Score
		}
		return p
	}))
	bar, _ := idx.Postings("bar")
	if bar[1].Score != 0.7 {
		t.Errorf("index postings changed: %v", bar)
	}
}

func TestFilmCorpusRankings(t *testing.T) {
	e := New(filmIndex(t))
	if got := e.ProcessQuery("animated film", ranker.NoRefinement); !slices.Equal(got, []int{2, 4, 1}) {
		t.Errorf("animated film = %v, want [2 4 1]", got)
	}
	if got := e.ProcessQuery("short film", nil); !slices.Equal(got, []int{4, 3, 2}) {
		t.Errorf("short film = %v, want [4 3 2]", got)
	}
}

func TestRefinerReordersResults(t *testing.T) {
	e := New(filmIndex(t))
	popular := ranker.PopularityRefiner{RatingWeight: 1, MinRatingCount: 100}
	// only document 1 has 100+ ratings, so its 6.9 rating lifts it to the top
	if got := e.ProcessQuery("animated film", popular); !slices.Equal(got, []int{1, 2, 4}) {
		t.Errorf("refined = %v, want [1 2 4]", got)
	}
}

func TestExecute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := New(filmIndex(t), WithMetrics(m))

	res, err := e.Execute(context.Background(), "Animated Film", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHits != 3 || len(res.Results) != 2 {
		t.Fatalf("total=%d results=%d", res.TotalHits, len(res.Results))
	}
	first := res.Results[0]
	if first.DocID != 2 || first.Title != "Non film" || first.Description != "Animated movie" {
		t.Errorf("first hit = %+v", first)
	}
	if !slices.Equal(res.Terms, []string{"animated", "film"}) {
		t.Errorf("terms = %v", res.Terms)
	}

	res, err = e.Execute(context.Background(), "documentary", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHits != 0 || len(res.Results) != 0 {
		t.Errorf("unexpected hits %+v", res)
	}

	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit queries = %v", got)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")); got != 1 {
		t.Errorf("zero_result queries = %v", got)
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(filmIndex(t)).Execute(ctx, "film", 3, nil); !apperrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// BenchmarkProcessQuery folds and ranks multi-keyword queries over a
// synthetic index whose posting lists overlap heavily.
func BenchmarkProcessQuery(b *testing.B) {
	for _, numDocs := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			lists := make(map[string]index.PostingList)
			for t, term := range []string{"search", "rank", "index", "film"} {
				var pl index.PostingList
				for id := 1; id <= numDocs; id++ {
					if id%(t+1) == 0 {
						pl = append(pl, index.Posting{DocID: id, Score: float64(id%17) / 17})
					}
				}
				lists[term] = pl
			}
			e := New(index.New(lists, nil))

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = e.ProcessQuery("search rank index film", nil)
			}
		})
	}
}
