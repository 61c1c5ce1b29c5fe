// Package ranker holds the BM25 weighting functions used when the index is
// built, the ranking refinements applied at query time, and the final score
// ordering.
package ranker

import (
	"fmt"
	"math"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
)

// IDFVariant selects the inverse document frequency formula.
type IDFVariant string

const (
	// IDFClassic is log2(N/df). A term present in every document scores 0.
	IDFClassic IDFVariant = "classic"
	// IDFSmoothed is log2((N-df+0.5)/(df+0.5) + 1), which stays positive for
	// terms present in every document.
	IDFSmoothed IDFVariant = "smoothed"
)

func ParseIDF(s string) (IDFVariant, error) {
	switch IDFVariant(s) {
	case "", IDFClassic:
		return IDFClassic, nil
	case IDFSmoothed:
		return IDFSmoothed, nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
		"unknown idf variant %q (want %q or %q)", s, IDFClassic, IDFSmoothed)
}

// Params are the BM25 build parameters. B weights document length
// normalisation (usually within [0,1]). K controls term frequency
// saturation: K=0 reduces every matching posting to tf'=1 and K=+Inf turns
// saturation off, leaving the length-normalised tf / (1 - b + b*dl/avgdl).
type Params struct {
	B   float64
	K   float64
	IDF IDFVariant
}

func (p Params) Validate() error {
	if math.IsNaN(p.B) || math.IsInf(p.B, 0) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "b must be finite, got %v", p.B)
	}
	if math.IsNaN(p.K) || p.K < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be non-negative, got %v", p.K)
	}
	if _, err := ParseIDF(string(p.IDF)); err != nil {
		return err
	}
	return nil
}

func (p Params) String() string {
	idf := p.IDF
	if idf == "" {
		idf = IDFClassic
	}
	return fmt.Sprintf("b=%g k=%g idf=%s", p.B, p.K, idf)
}

// TFNorm is the saturated, length-normalised term frequency
//
//	tf * (k+1) / (k * (1 - b + b*dl/avgdl) + tf)
//
// avgDocLength must be positive. For K=+Inf it returns the limit of the
// formula as k grows, tf / (1 - b + b*dl/avgdl).
func TFNorm(termFreq, docLength, avgDocLength float64, p Params) float64 {
	lengthNorm := 1 - p.B + p.B*docLength/avgDocLength
	if math.IsInf(p.K, 1) {
		return termFreq / lengthNorm
	}
	return termFreq * (p.K + 1) / (p.K*lengthNorm + termFreq)
}

// IDF weights a term found in docFreq of totalDocs documents.
func IDF(totalDocs, docFreq int, variant IDFVariant) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	if variant == IDFSmoothed {
		return math.Log2((n-df+0.5)/(df+0.5) + 1)
	}
	return math.Log2(n / df)
}
