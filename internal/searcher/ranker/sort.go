package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank orders postings by descending score. The sort is stable: equal scores
// keep their list order, which for merged postings is ascending DocID. A
// positive limit truncates the result.
func Rank(postings index.PostingList, limit int) []ScoredDoc {
	result := make([]ScoredDoc, len(postings))
	for i, p := range postings {
		result[i] = ScoredDoc{DocID: p.DocID, Score: p.Score}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
