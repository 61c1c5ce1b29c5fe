package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, event kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestNewSearchEventType(t *testing.T) {
	if e := NewSearchEvent("film", []string{"film"}, 2, 2, time.Millisecond); e.Type != EventSearch {
		t.Errorf("type = %q", e.Type)
	}
	if e := NewSearchEvent("zzz", []string{"zzz"}, 0, 0, 0); e.Type != EventZeroResult {
		t.Errorf("type = %q", e.Type)
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator(2)
	agg.Record(SearchEvent{Query: "Short Film", Terms: []string{"short", "film"}, TotalHits: 3, LatencyMs: 10})
	agg.Record(SearchEvent{Query: "short film", Terms: []string{"short", "film"}, TotalHits: 3, LatencyMs: 20, CacheHit: true})
	agg.Record(SearchEvent{Query: "documentary", Terms: []string{"documentary"}, LatencyMs: 30})
	agg.Record(SearchEvent{Query: "animated", Terms: []string{"animated"}, TotalHits: 3, LatencyMs: 40})

	stats := agg.Stats()
	if stats.TotalSearches != 4 || stats.CacheHits != 1 || stats.CacheMisses != 3 || stats.ZeroResultCount != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.AvgLatencyMs != 25 || stats.P50LatencyMs != 30 || stats.P99LatencyMs != 40 {
		t.Errorf("latency = avg %v p50 %v p99 %v", stats.AvgLatencyMs, stats.P50LatencyMs, stats.P99LatencyMs)
	}
	want := []QueryCount{{"short film", 2}, {"animated", 1}}
	if len(stats.TopQueries) != 2 || stats.TopQueries[0] != want[0] || stats.TopQueries[1] != want[1] {
		t.Errorf("top queries = %v, want %v", stats.TopQueries, want)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "documentary" {
		t.Errorf("zero result queries = %v", stats.ZeroResultQueries)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator(0)
	for i := 0; i < maxLatencySamples+5; i++ {
		agg.Record(SearchEvent{Query: "q", LatencyMs: 1})
	}
	agg.mu.RLock()
	n := len(agg.latencies)
	agg.mu.RUnlock()
	if n != maxLatencySamples {
		t.Errorf("latency samples = %d, want %d", n, maxLatencySamples)
	}
}

func TestCollectorPublishesAndAggregates(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator(10)
	c := NewCollector(pub, agg, 16)
	c.Start(context.Background())

	c.Track(NewSearchEvent("Animated film", []string{"animated", "film"}, 3, 3, 0))
	c.Track(NewSearchEvent("zzz", []string{"zzz"}, 0, 0, 0))
	c.Close()

	if got := pub.count(); got != 2 {
		t.Fatalf("published = %d, want 2", got)
	}
	if pub.events[0].Key != "animated film" {
		t.Errorf("key = %q", pub.events[0].Key)
	}
	if agg.Stats().TotalSearches != 2 {
		t.Errorf("aggregated = %d", agg.Stats().TotalSearches)
	}
}

func TestCollectorSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	c := NewCollector(pub, nil, 4)
	c.Start(context.Background())
	c.Track(NewSearchEvent("film", []string{"film"}, 1, 1, 0))
	c.Close()
	if pub.count() != 0 {
		t.Errorf("failing publisher recorded events")
	}
}

func TestCollectorWithoutPublisher(t *testing.T) {
	agg := NewAggregator(10)
	c := NewCollector(nil, agg, 1)
	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Query: "film"})
	}
	c.Close()
	if agg.Stats().TotalSearches != 5 {
		t.Errorf("aggregated = %d", agg.Stats().TotalSearches)
	}
}

func TestTrackAfterCloseIsDropped(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator(10)
	c := NewCollector(pub, agg, 10)
	c.Start(context.Background())
	c.Close()

	c.Track(NewSearchEvent("film", []string{"film"}, 1, 1, 0))
	c.Close()

	if got := pub.count(); got != 0 {
		t.Errorf("published after close = %d, want 0", got)
	}
	if agg.Stats().TotalSearches != 1 {
		t.Errorf("aggregated = %d, want 1", agg.Stats().TotalSearches)
	}
}

func TestTrackRacingClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, nil, 4)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Track(SearchEvent{Query: "film", Terms: []string{"film"}})
			}
		}()
	}
	c.Close()
	wg.Wait()
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator(10)
	agg.Record(SearchEvent{Query: "film", Terms: []string{"film"}, TotalHits: 2})
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest("GET", "/api/v1/analytics/stats", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 || stats.TopQueries[0].Query != "film" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStatsHandlerTop(t *testing.T) {
	agg := NewAggregator(10)
	for _, q := range []string{"film", "film", "short film", "animated"} {
		agg.Record(SearchEvent{Query: q, Terms: strings.Fields(q), TotalHits: 1})
	}

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest("GET", "/api/v1/analytics/stats?top=1", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats.TopQueries) != 1 || stats.TopQueries[0] != (QueryCount{Query: "film", Count: 2}) {
		t.Errorf("top queries = %+v", stats.TopQueries)
	}

	rec = httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest("GET", "/api/v1/analytics/stats?top=x", nil))
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
