package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Refined   bool      `json:"refined"`
	Policy    string    `json:"policy"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewSearchEvent fills Type from totalHits and stamps the current time.
func NewSearchEvent(query string, terms []string, totalHits, returned int, latency time.Duration) SearchEvent {
	eventType := EventSearch
	if totalHits == 0 {
		eventType = EventZeroResult
	}
	return SearchEvent{
		Type:      eventType,
		Query:     query,
		Terms:     terms,
		TotalHits: totalHits,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}
