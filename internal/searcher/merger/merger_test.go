package merger

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/index"
)

func pl(pairs ...float64) index.PostingList {
	list := make(index.PostingList, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		list = append(list, index.Posting{DocID: int(pairs[i]), Score: pairs[i+1]})
	}
	return list
}

func assertEqual(t *testing.T, got, want index.PostingList) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].DocID != want[i].DocID || math.Abs(got[i].Score-want[i].Score) > 1e-9 {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b index.PostingList
		want index.PostingList
	}{
		{
			name: "overlap at head",
			a:    pl(1, 2.1, 5, 3.2),
			b:    pl(1, 1.7, 2, 1.3, 6, 3.3),
			want: pl(1, 3.8, 2, 1.3, 5, 3.2, 6, 3.3),
		},
		{
			name: "overlap in the middle",
			a:    pl(3, 1.7, 5, 3.2, 7, 4.1),
			b:    pl(1, 2.3, 5, 1.3),
			want: pl(1, 2.3, 3, 1.7, 5, 4.5, 7, 4.1),
		},
		{
			name: "left empty",
			a:    nil,
			b:    pl(1, 2.3, 5, 1.3),
			want: pl(1, 2.3, 5, 1.3),
		},
		{
			name: "right empty",
			a:    pl(1, 2.3),
			b:    index.PostingList{},
			want: pl(1, 2.3),
		},
		{
			name: "both empty",
			want: index.PostingList{},
		},
		{
			name: "disjoint, b entirely after a",
			a:    pl(1, 1, 2, 1),
			b:    pl(8, 1, 9, 1),
			want: pl(1, 1, 2, 1, 8, 1, 9, 1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.a, tt.b)
			assertEqual(t, got, tt.want)
			if !got.IsSorted() {
				t.Errorf("result not sorted: %v", got)
			}
		})
	}
}

func TestMergeEmptyReturnsOtherUntouched(t *testing.T) {
	a := pl(1, 2.3, 5, 1.3)
	got := Merge(a, nil)
	if &got[0] != &a[0] {
		t.Error("expected the non-empty input to be returned as is")
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	a := pl(1, 1, 2, 2)
	b := pl(1, 10, 3, 3)
	Merge(a, b)
	assertEqual(t, a, pl(1, 1, 2, 2))
	assertEqual(t, b, pl(1, 10, 3, 3))
}

func randomList(r *rand.Rand, maxID int) index.PostingList {
	var list index.PostingList
	for id := 1; id <= maxID; id++ {
		if r.Intn(3) == 0 {
			// quarter steps keep float sums exact, so order of addition does not matter
			list = append(list, index.Posting{DocID: id, Score: float64(r.Intn(40)) / 4})
		}
	}
	return list
}

func TestMergeAlgebra(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		a, b, c := randomList(r, 30), randomList(r, 30), randomList(r, 30)
		t.Run(fmt.Sprintf("trial_%d", trial), func(t *testing.T) {
			assertEqual(t, Merge(a, b), Merge(b, a))
			assertEqual(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))
			assertEqual(t, Merge(a, nil), a)
			assertEqual(t, MergeAll(a, b, c), Merge(Merge(a, b), c))

			ids := Merge(a, b).DocIDs()
			want := append(a.DocIDs(), b.DocIDs()...)
			slices.Sort(want)
			want = slices.Compact(want)
			if !slices.Equal(ids, want) {
				t.Errorf("union ids = %v, want %v", ids, want)
			}
		})
	}
}

func BenchmarkMerge(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	x, y := randomList(r, 100000), randomList(r, 100000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Merge(x, y)
	}
}
