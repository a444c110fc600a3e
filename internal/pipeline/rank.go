package pipeline

import (
	"cmp"
	"slices"

	"github.com/shpitdev/playlistrank/internal/enrich"
)

// Rank orders records by Views descending, breaking ties by playlist position.
// The input slice is not modified. A nil input yields an empty list.
func Rank(records []enrich.Record) enrich.RankedList {
	out := make(enrich.RankedList, len(records))
	copy(out, records)
	slices.SortStableFunc(out, func(a, b enrich.Record) int {
		if c := cmp.Compare(b.Views, a.Views); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}
