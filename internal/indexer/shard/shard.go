// Package shard partitions a corpus into contiguous document-id ranges so the
// first index pass can run one goroutine per shard. Ranges are ordered and
// disjoint, so concatenating per-shard posting lists in shard order keeps
// them sorted by document id.
package shard

import "fmt"

// Range is the inclusive id range First..Last owned by shard ID.
type Range struct {
	ID    int
	First int
	Last  int
}

func (r Range) Len() int {
	return r.Last - r.First + 1
}

func (r Range) String() string {
	return fmt.Sprintf("shard-%d[%d..%d]", r.ID, r.First, r.Last)
}

// Plan splits ids 1..numDocs into at most numShards ranges whose sizes differ
// by at most one. It never returns empty ranges, so fewer documents than
// shards yields one range per document.
func Plan(numDocs, numShards int) []Range {
	if numDocs <= 0 {
		return nil
	}
	if numShards < 1 {
		numShards = 1
	}
	if numShards > numDocs {
		numShards = numDocs
	}
	ranges := make([]Range, 0, numShards)
	size, extra := numDocs/numShards, numDocs%numShards
	first := 1
	for i := 0; i < numShards; i++ {
		n := size
		if i < extra {
			n++
		}
		ranges = append(ranges, Range{ID: i, First: first, Last: first + n - 1})
		first += n
	}
	return ranges
}
