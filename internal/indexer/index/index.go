// Package index defines posting lists and the immutable inverted index that
// the builder produces and the query engine reads.
package index

import (
	"fmt"
	"net/http"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
)

// Index maps terms to BM25-scored posting lists. It has no mutating methods,
// and every accessor hands out copies, so an Index is safe for concurrent
// readers without locking.
type Index struct {
	lists        map[string]PostingList
	docs         *document.Store
	avgDocLength float64
}

// New wraps fully scored posting lists and the store they were built from.
// The Index takes ownership of lists; callers must not modify them
// afterwards. docs may be nil for hand-built indexes that never resolve
// documents.
func New(lists map[string]PostingList, docs *document.Store) *Index {
	if docs == nil {
		docs = document.NewStore()
	}
	return &Index{
		lists:        lists,
		docs:         docs,
		avgDocLength: docs.AverageLength(),
	}
}

// Postings returns a copy of term's posting list and whether the term is
// indexed.
func (x *Index) Postings(term string) (PostingList, bool) {
	list, ok := x.lists[term]
	if !ok {
		return nil, false
	}
	return slices.Clone(list), true
}

// DocumentFrequency is the number of documents containing term.
func (x *Index) DocumentFrequency(term string) int {
	return len(x.lists[term])
}

func (x *Index) Document(id int) (document.Document, error) {
	return x.docs.Get(id)
}

func (x *Index) DocCount() int {
	return x.docs.Count()
}

func (x *Index) AvgDocLength() float64 {
	return x.avgDocLength
}

func (x *Index) NumTerms() int {
	return len(x.lists)
}

// Snapshot returns every term with a copy of its postings, sorted by term.
func (x *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.lists))
	for term, postings := range x.lists {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: slices.Clone(postings),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Validate checks the structural invariants of every posting list: ids are
// strictly increasing, within 1..DocCount, and no list is longer than the
// corpus.
func (x *Index) Validate() error {
	n := x.docs.Count()
	for term, list := range x.lists {
		if len(list) == 0 {
			return apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
				"term %q has an empty posting list", term)
		}
		if !list.IsSorted() {
			return apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
				"postings for %q are not strictly increasing", term)
		}
		if len(list) > n {
			return apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
				"document frequency of %q is %d, corpus has %d documents", term, len(list), n)
		}
		if first, last := list[0].DocID, list[len(list)-1].DocID; first < 1 || last > n {
			return apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
				"postings for %q reference ids %d..%d outside 1..%d", term, first, last, n)
		}
	}
	return nil
}

func (x *Index) String() string {
	return fmt.Sprintf("index{docs=%d terms=%d avgdl=%.3f}", x.DocCount(), x.NumTerms(), x.avgDocLength)
}
