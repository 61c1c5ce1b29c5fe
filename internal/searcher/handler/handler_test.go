package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	fixtures "github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/testutil"
	pkgredis "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/redis"
)

func filmExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	b, err := indexer.NewBuilder(ranker.Params{B: 0.75, K: 1.75})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := b.Build(context.Background(), fixtures.FilmCorpus)
	if err != nil {
		t.Fatal(err)
	}
	return executor.New(idx)
}

func newServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func hitIDs(res executor.SearchResult) []int {
	ids := make([]int, len(res.Results))
	for i, h := range res.Results {
		ids[i] = h.DocID
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearch(t *testing.T) {
	srv := newServer(t, New(filmExecutor(t), nil, nil, Options{
		DefaultLimit: 3,
		MaxResults:   3,
		Refiner:      ranker.PopularityRefiner{RatingWeight: 1, MinRatingCount: 100},
	}))

	tests := []struct {
		name  string
		query string
		want  []int
		total int
	}{
		{"ranked union", "q=animated+film", []int{2, 4, 1}, 3},
		{"limit", "q=animated+film&limit=1", []int{2}, 3},
		{"limit capped at max", "q=movie+film&limit=50", []int{2, 4, 1}, 4},
		{"refined", "q=animated+film&refine=true", []int{1, 2, 4}, 3},
		{"no tokens", "q=%21%21%21", []int{}, 0},
		{"no match", "q=documentary", []int{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res executor.SearchResult
			if code := get(t, srv.URL+"/api/v1/search?"+tt.query, &res); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if got := hitIDs(res); !equalInts(got, tt.want) || res.TotalHits != tt.total {
				t.Errorf("hits = %v total %d, want %v total %d", got, res.TotalHits, tt.want, tt.total)
			}
		})
	}
}

func TestSearchBadRequests(t *testing.T) {
	srv := newServer(t, New(filmExecutor(t), nil, nil, Options{}))
	for _, q := range []string{"", "q=film&limit=0", "q=film&limit=abc", "q=film&refine=maybe"} {
		var body map[string]string
		if code := get(t, srv.URL+"/api/v1/search?"+q, &body); code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", q, code)
		}
		if body["error"] == "" {
			t.Errorf("%q: no error message", q)
		}
	}
}

func TestDocument(t *testing.T) {
	srv := newServer(t, New(filmExecutor(t), nil, nil, Options{}))

	var doc document.Document
	if code := get(t, srv.URL+"/api/v1/documents/2", &doc); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if doc.ID != 2 || doc.Title != "Non film" || doc.Length != 4 {
		t.Errorf("doc = %+v", doc)
	}
	if code := get(t, srv.URL+"/api/v1/documents/99", nil); code != http.StatusNotFound {
		t.Errorf("missing doc status = %d", code)
	}
	if code := get(t, srv.URL+"/api/v1/documents/first", nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", code)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	srv := newServer(t, New(filmExecutor(t), nil, nil, Options{}))
	var stats map[string]string
	get(t, srv.URL+"/api/v1/cache/stats", &stats)
	if stats["status"] != "disabled" {
		t.Errorf("stats = %v", stats)
	}
	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", resp.StatusCode)
	}
}

type mapBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (m *mapBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *mapBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(0)
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestSearchUsesCacheAndTracksAnalytics(t *testing.T) {
	qc := cache.New(&mapBackend{data: map[string]string{}}, cache.Options{TTL: time.Minute})
	agg := analytics.NewAggregator(5)
	collector := analytics.NewCollector(nil, agg, 10)
	defer collector.Close()
	srv := newServer(t, New(filmExecutor(t), qc, collector, Options{CacheNamespace: "test"}))

	for _, q := range []string{"short+film", "Short%2C+FILM", "zzz"} {
		if code := get(t, srv.URL+"/api/v1/search?q="+q, &executor.SearchResult{}); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
	}

	var stats map[string]any
	get(t, srv.URL+"/api/v1/cache/stats", &stats)
	if stats["hits"] != float64(1) || stats["misses"] != float64(2) {
		t.Errorf("cache stats = %v", stats)
	}

	s := agg.Stats()
	if s.TotalSearches != 3 || s.CacheHits != 1 || s.ZeroResultCount != 1 {
		t.Errorf("analytics = %+v", s)
	}
	if s.TopQueries[0].Query != "short film" || s.TopQueries[0].Count != 2 {
		t.Errorf("top queries = %v", s.TopQueries)
	}

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var inv map[string]any
	json.NewDecoder(resp.Body).Decode(&inv)
	resp.Body.Close()
	if inv["keys_deleted"] != float64(2) {
		t.Errorf("invalidate = %v", inv)
	}
}

func TestCachedSearchEchoesCallerQuery(t *testing.T) {
	qc := cache.New(&mapBackend{data: map[string]string{}}, cache.Options{TTL: time.Minute})
	srv := newServer(t, New(filmExecutor(t), qc, nil, Options{CacheNamespace: "test"}))

	var first, second executor.SearchResult
	get(t, srv.URL+"/api/v1/search?q=short+film", &first)
	get(t, srv.URL+"/api/v1/search?q=Short+Film%21", &second)

	if first.Query != "short film" {
		t.Errorf("first query = %q", first.Query)
	}
	if second.Query != "Short Film!" {
		t.Errorf("cached query = %q, want %q", second.Query, "Short Film!")
	}
	if !equalInts(hitIDs(first), hitIDs(second)) {
		t.Errorf("cached hits = %v, want %v", hitIDs(second), hitIDs(first))
	}
	var stats map[string]any
	get(t, srv.URL+"/api/v1/cache/stats", &stats)
	if stats["hits"] != float64(1) {
		t.Errorf("cache stats = %v", stats)
	}
}
