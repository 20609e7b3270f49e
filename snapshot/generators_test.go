package snapshot

import (
	"sort"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

var epoch = time.Unix(1700000000, 0)

// histFromOffsets builds a sorted History from second offsets relative
// to epoch. Seq follows creation order: the oldest offset gets Seq 1.
func histFromOffsets(offsets []int64) History {
	sorted := append([]int64(nil), offsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	h := make(History, 0, len(sorted))
	for i, off := range sorted {
		h = append(h, Snapshot{
			Seq:  i + 1,
			Time: epoch.Add(time.Duration(off) * time.Second),
			ID:   ID(string(rune('a' + i%26))),
		})
	}
	h.Sort()
	return h
}

// GenHistory generates histories of up to 50 snapshots with timestamps
// spread over a day, duplicates allowed.
func GenHistory() gopter.Gen {
	return gen.SliceOf(gen.Int64Range(0, 86400)).Map(func(offsets []int64) History {
		return histFromOffsets(offsets)
	})
}

// GenNonEmptyHistory generates histories with at least one snapshot.
func GenNonEmptyHistory() gopter.Gen {
	return GenHistory().SuchThat(func(h History) bool {
		return len(h) > 0
	})
}
