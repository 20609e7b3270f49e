package tracker

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
	"github.com/Alvareaux/pyfile-tracker/watcher"
)

var t0 = time.Unix(1700000000, 0)

func snap(seq int, offset time.Duration) snapshot.Snapshot {
	return snapshot.Snapshot{Seq: seq, Time: t0.Add(offset), ID: snapshot.ID("sha-" + string(rune('0'+seq)))}
}

func testConfig(t *testing.T, keep int) Config {
	rule, err := snapshot.NewKeepLastN(keep)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Rule:          rule,
		Debounce:      50 * time.Millisecond,
		RetryInterval: time.Millisecond,
	}
}

func runTracker(db snapshot.DB, events chan watcher.Event, cfg Config) chan error {
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- New(db, events, cfg, nil).Run()
	}()
	return doneCh
}

// A burst of five change events inside the debounce window yields
// exactly one snapshot once the window elapses.
func Test_BurstYieldsOneSnapshot(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dbMock := NewMockDB(mockCtrl)
	s1 := snap(1, 0)
	s2 := snap(2, time.Minute)

	committed := make(chan struct{})
	gomock.InOrder(
		dbMock.EXPECT().Snapshots().Return(snapshot.History{s1}, nil),
		dbMock.EXPECT().Commit().Return(s2, nil),
		dbMock.EXPECT().Snapshots().DoAndReturn(func() (snapshot.History, error) {
			close(committed)
			return snapshot.History{s2, s1}, nil
		}),
	)

	events := make(chan watcher.Event, 16)
	doneCh := runTracker(dbMock, events, testConfig(t, 10))

	for i := 0; i < 5; i++ {
		events <- watcher.Event{Path: "file.txt", Op: "WRITE"}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-committed:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot never taken")
	}

	close(events)
	if err := <-doneCh; err != nil {
		t.Fatal(err)
	}
}

func Test_PruneDeletesBeyondRule(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dbMock := NewMockDB(mockCtrl)
	s1 := snap(1, 0)
	s2 := snap(2, time.Minute)

	deleted := make(chan snapshot.Snapshot, 1)
	gomock.InOrder(
		dbMock.EXPECT().Snapshots().Return(snapshot.History{s1}, nil),
		dbMock.EXPECT().Commit().Return(s2, nil),
		dbMock.EXPECT().Snapshots().Return(snapshot.History{s2, s1}, nil),
		dbMock.EXPECT().Delete(gomock.Any()).DoAndReturn(func(s snapshot.Snapshot) error {
			deleted <- s
			return nil
		}),
	)

	events := make(chan watcher.Event, 16)
	doneCh := runTracker(dbMock, events, testConfig(t, 1))

	events <- watcher.Event{Path: "file.txt", Op: "WRITE"}

	select {
	case got := <-deleted:
		if got.Seq != s1.Seq {
			t.Fatalf("wrong snapshot deleted: %s", spew.Sdump(got))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("nothing pruned")
	}

	close(events)
	if err := <-doneCh; err != nil {
		t.Fatal(err)
	}
}

// A failing commit is retried, logged, and leaves the loop armed for
// the next burst.
func Test_CommitFailureKeepsLoopArmed(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dbMock := NewMockDB(mockCtrl)
	s1 := snap(1, 0)
	s2 := snap(2, time.Minute)

	failed := make(chan struct{})
	recovered := make(chan struct{})
	gomock.InOrder(
		dbMock.EXPECT().Snapshots().Return(snapshot.History{s1}, nil),
		// First burst: all attempts fail (1 try + 2 retries).
		dbMock.EXPECT().Commit().Return(snapshot.Snapshot{}, errors.New("git exploded")).Times(2),
		dbMock.EXPECT().Commit().DoAndReturn(func() (snapshot.Snapshot, error) {
			close(failed)
			return snapshot.Snapshot{}, errors.New("git exploded")
		}),
		// Second burst succeeds.
		dbMock.EXPECT().Commit().Return(s2, nil),
		dbMock.EXPECT().Snapshots().DoAndReturn(func() (snapshot.History, error) {
			close(recovered)
			return snapshot.History{s2, s1}, nil
		}),
	)

	events := make(chan watcher.Event, 16)
	doneCh := runTracker(dbMock, events, testConfig(t, 10))

	events <- watcher.Event{Path: "file.txt", Op: "WRITE"}
	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("commit never attempted")
	}

	events <- watcher.Event{Path: "file.txt", Op: "WRITE"}
	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not survive the failed cycle")
	}

	close(events)
	if err := <-doneCh; err != nil {
		t.Fatal(err)
	}
}

// Tracking an empty store takes a baseline snapshot before any change
// arrives.
func Test_BaselineSnapshotOnEmptyStore(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dbMock := NewMockDB(mockCtrl)
	s1 := snap(1, 0)

	baseline := make(chan struct{})
	gomock.InOrder(
		dbMock.EXPECT().Snapshots().Return(snapshot.History{}, nil),
		dbMock.EXPECT().Commit().Return(s1, nil),
		dbMock.EXPECT().Snapshots().DoAndReturn(func() (snapshot.History, error) {
			close(baseline)
			return snapshot.History{s1}, nil
		}),
	)

	events := make(chan watcher.Event)
	doneCh := runTracker(dbMock, events, testConfig(t, 10))

	select {
	case <-baseline:
	case <-time.After(5 * time.Second):
		t.Fatal("no baseline snapshot")
	}

	close(events)
	if err := <-doneCh; err != nil {
		t.Fatal(err)
	}
}

// A no-change window skips the snapshot without failing the loop.
func Test_NoChangesSkipsSnapshot(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dbMock := NewMockDB(mockCtrl)
	s1 := snap(1, 0)

	skipped := make(chan struct{})
	gomock.InOrder(
		dbMock.EXPECT().Snapshots().Return(snapshot.History{s1}, nil),
		dbMock.EXPECT().Commit().DoAndReturn(func() (snapshot.Snapshot, error) {
			close(skipped)
			return snapshot.Snapshot{}, snapshot.ErrNoChanges
		}),
	)

	events := make(chan watcher.Event, 16)
	doneCh := runTracker(dbMock, events, testConfig(t, 10))

	events <- watcher.Event{Path: "file.txt", Op: "CHMOD"}

	select {
	case <-skipped:
	case <-time.After(5 * time.Second):
		t.Fatal("commit never attempted")
	}

	close(events)
	if err := <-doneCh; err != nil {
		t.Fatal(err)
	}
}
