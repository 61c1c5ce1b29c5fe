package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
)

// DocumentSource resolves document ids; *index.Index satisfies it.
type DocumentSource interface {
	Document(id int) (document.Document, error)
}

// Refiner adjusts the merged postings of a query before they are ordered.
// Implementations must return postings in the same DocID order they were
// given and must not modify the input slice.
type Refiner interface {
	Refine(postings index.PostingList, docs DocumentSource) index.PostingList
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(postings index.PostingList, docs DocumentSource) index.PostingList

func (f RefinerFunc) Refine(postings index.PostingList, docs DocumentSource) index.PostingList {
	return f(postings, docs)
}

// NoRefinement is the baseline: BM25 scores are used as they are.
var NoRefinement Refiner = RefinerFunc(func(postings index.PostingList, _ DocumentSource) index.PostingList {
	return postings
})

// PopularityRefiner adds a popularity prior derived from the optional
// corpus fields: SitelinkWeight*log2(1+sitelinks), plus RatingWeight*rating
// once a document has at least MinRatingCount ratings.
type PopularityRefiner struct {
	SitelinkWeight float64
	RatingWeight   float64
	MinRatingCount int
}

func (r PopularityRefiner) Refine(postings index.PostingList, docs DocumentSource) index.PostingList {
	out := make(index.PostingList, len(postings))
	for i, p := range postings {
		out[i] = p
		doc, err := docs.Document(p.DocID)
		if err != nil {
			continue
		}
		out[i].Score += r.SitelinkWeight * math.Log2(1+float64(doc.SitelinkCount))
		if doc.RatingCount >= r.MinRatingCount && doc.RatingCount > 0 {
			out[i].Score += r.RatingWeight * doc.Rating
		}
	}
	return out
}
