// Package snapshot defines the snapshot data model and the policy logic
// that decides which snapshots to keep and which historical state a
// restore request maps to. The actual storage of snapshots is delegated
// to a DB implementation (see snapshot/git/gitdb).
package snapshot

import (
	"sort"
	"time"
)

// ID identifies a snapshot's value in the DB. Opaque to the client.
type ID string

// Snapshot is one recorded state of the tracked directory.
// Seq increases by one with every snapshot taken against a store, so a
// larger Seq is strictly newer by creation order even when two
// snapshots share a timestamp at the store's precision.
type Snapshot struct {
	Seq  int
	Time time.Time
	ID   ID
}

// History is the ordered view over a store's snapshots, newest first:
// index 0 is the latest snapshot. It is rebuilt from the DB on every
// operation; nothing caches it.
type History []Snapshot

// Sort orders h newest first, breaking timestamp ties by Seq.
func (h History) Sort() {
	sort.Slice(h, func(i, j int) bool {
		if !h[i].Time.Equal(h[j].Time) {
			return h[i].Time.After(h[j].Time)
		}
		return h[i].Seq > h[j].Seq
	})
}

// Newest returns the latest snapshot.
func (h History) Newest() (Snapshot, error) {
	if len(h) == 0 {
		return Snapshot{}, ErrNoHistory
	}
	return h[0], nil
}

// NextSeq returns the sequence number for the next snapshot taken
// against this history.
func (h History) NextSeq() int {
	max := 0
	for _, s := range h {
		if s.Seq > max {
			max = s.Seq
		}
	}
	return max + 1
}

// DB is the narrow interface the tracker and the CLI need from the
// version store. Implementations must serialize operations: at most one
// commit-and-prune cycle runs at a time.
type DB interface {
	// Commit records the current state of the tracked tree as a new
	// snapshot. Returns ErrNoChanges if the tree is identical to the
	// latest snapshot.
	Commit() (Snapshot, error)

	// Snapshots rebuilds the history from the store, newest first.
	Snapshots() (History, error)

	// Restore rewrites the tracked tree to match s.
	Restore(s Snapshot) error

	// Delete removes s from the store.
	Delete(s Snapshot) error
}
