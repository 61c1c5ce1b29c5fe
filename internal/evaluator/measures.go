package evaluator

// IDSet is a set of 1-based document ids.
type IDSet map[int]struct{}

func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// PrecisionAtK is the fraction of the first k result ids that are relevant.
// When there are fewer than k results the missing ranks count as misses.
// k <= 0 yields 0.
func PrecisionAtK(resultIDs []int, relevant IDSet, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	for _, id := range resultIDs[:min(k, len(resultIDs))] {
		if relevant.Contains(id) {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// AveragePrecision sums P@rank over the ranks holding a relevant id and
// divides by the number of relevant ids, found or not. It is 0 when no
// relevant id is returned.
func AveragePrecision(resultIDs []int, relevant IDSet) float64 {
	if len(relevant) == 0 {
		return 0
	}
	var sum float64
	hits := 0
	for rank, id := range resultIDs {
		if relevant.Contains(id) {
			hits++
			sum += float64(hits) / float64(rank+1)
		}
	}
	return sum / float64(len(relevant))
}
