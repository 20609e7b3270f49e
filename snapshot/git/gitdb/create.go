package gitdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
)

// commit snapshots the work tree using git plumbing:
// First, stage everything into the store's index.
// Second, write the tree.
// Third, if the tree differs from the latest snapshot's, create a
// parentless commit for it and register its ref.
// No HEAD or branch state is involved, so a snapshot never depends on
// the snapshots pruned before or after it.
func (db *DB) commit() (snapshot.Snapshot, error) {
	if _, err := db.dataRepo.Run("add", "-A"); err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "staging tracked tree")
	}

	treeSha, err := db.dataRepo.RunSha("write-tree")
	if err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "writing tree")
	}

	history, err := db.listSnapshots()
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	if latest, err := history.Newest(); err == nil {
		latestTree, err := db.dataRepo.RunSha("rev-parse", string(latest.ID)+"^{tree}")
		if err != nil {
			return snapshot.Snapshot{}, errors.Wrap(err, "resolving latest snapshot tree")
		}
		if latestTree == treeSha {
			return snapshot.Snapshot{}, snapshot.ErrNoChanges
		}
	}

	seq := history.NextSeq()
	now := time.Now()
	msg := fmt.Sprintf("snapshot %d %s", seq, now.Format(time.RFC3339))

	commitSha, err := db.dataRepo.RunSha("commit-tree", treeSha, "-m", msg)
	if err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "committing tree")
	}

	if _, err := db.dataRepo.Run("update-ref", snapshotRef(seq), commitSha); err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "registering snapshot ref")
	}

	// The committer timestamp is what listSnapshots will report; use it
	// rather than our own clock reading.
	ctime, err := db.commitTime(commitSha)
	if err != nil {
		ctime = now
	}

	return snapshot.Snapshot{Seq: seq, Time: ctime, ID: snapshot.ID(commitSha)}, nil
}

func (db *DB) commitTime(sha string) (time.Time, error) {
	out, err := db.dataRepo.Run("show", "-s", "--format=%ct", sha)
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

// deleteSnapshot drops s's ref. Objects stay in the odb until git gc;
// that is the external tool's concern, not ours.
func (db *DB) deleteSnapshot(s snapshot.Snapshot) error {
	if _, err := db.dataRepo.Run("update-ref", "-d", snapshotRef(s.Seq), string(s.ID)); err != nil {
		return errors.Wrapf(err, "deleting snapshot %d", s.Seq)
	}
	return nil
}
