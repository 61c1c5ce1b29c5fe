package index

// Posting is one document's entry in a term's posting list. While the
// builder's first pass runs, Score holds the raw term frequency; in a built
// Index it holds the BM25 score.
type Posting struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// PostingList is ordered by strictly increasing DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocIDs returns the document ids of l in list order.
func (l PostingList) DocIDs() []int {
	ids := make([]int, len(l))
	for i, p := range l {
		ids[i] = p.DocID
	}
	return ids
}

// IsSorted reports whether l is strictly increasing by DocID, which also
// rules out duplicate ids.
func (l PostingList) IsSorted() bool {
	for i := 1; i < len(l); i++ {
		if l[i].DocID <= l[i-1].DocID {
			return false
		}
	}
	return true
}
