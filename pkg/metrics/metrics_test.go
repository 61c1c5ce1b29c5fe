package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	// a second set on a separate registry must not panic
	New(prometheus.NewRegistry())

	m.IndexBuildsTotal.WithLabelValues("success").Inc()
	m.EvaluationMeasure.WithLabelValues("map").Set(0.694)

	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("index_builds_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EvaluationMeasure.WithLabelValues("map")); got != 0.694 {
		t.Errorf("evaluation_measure = %v, want 0.694", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IndexedTerms.Set(6)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "index_terms 6") {
		t.Errorf("scrape output missing index_terms:\n%s", body)
	}
}
