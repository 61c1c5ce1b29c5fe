package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorUnwrapsSentinel(t *testing.T) {
	err := Newf(ErrMalformedRecord, http.StatusBadRequest, "line %d has %d fields", 3, 1)
	if !Is(err, ErrMalformedRecord) {
		t.Fatalf("expected %v to match ErrMalformedRecord", err)
	}
	if got, want := err.Error(), "malformed record: line 3 has 1 fields"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("ingesting corpus: %w", err)
	if !Is(wrapped, ErrMalformedRecord) {
		t.Errorf("wrapped error lost its sentinel")
	}
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrDocumentNotFound, http.StatusTeapot, "x"), http.StatusTeapot},
		{"not found", fmt.Errorf("get: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"malformed", ErrMalformedRecord, http.StatusBadRequest},
		{"empty corpus", ErrEmptyCorpus, http.StatusUnprocessableEntity},
		{"empty benchmark", ErrEmptyBenchmark, http.StatusUnprocessableEntity},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
