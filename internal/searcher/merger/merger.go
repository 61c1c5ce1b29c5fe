// Package merger computes the union of posting lists in linear time.
package merger

import (
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
)

// Merge returns the union of a and b, both sorted by ascending DocID. A
// document present in both lists appears once with the two scores summed;
// the result is sorted by ascending DocID. If either input is empty the other
// is returned as is, without copying.
func Merge(a, b index.PostingList) index.PostingList {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	union := make(index.PostingList, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			union = append(union, a[i])
			i++
		case a[i].DocID > b[j].DocID:
			union = append(union, b[j])
			j++
		default:
			union = append(union, index.Posting{
				DocID: a[i].DocID,
				Score: a[i].Score + b[j].Score,
			})
			i++
			j++
		}
	}
	union = append(union, a[i:]...)
	union = append(union, b[j:]...)
	return union
}

// MergeAll folds lists left to right with Merge.
func MergeAll(lists ...index.PostingList) index.PostingList {
	var union index.PostingList
	for _, list := range lists {
		union = Merge(union, list)
	}
	return union
}
