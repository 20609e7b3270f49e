package gitdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
)

// Snapshots are registered under their own refs so that the history is
// exactly the set of live refs and deletion is a ref deletion.
const snapshotRefSpace = "refs/pyfile-tracker/snapshots"

func snapshotRef(seq int) string {
	return fmt.Sprintf("%s/%06d", snapshotRefSpace, seq)
}

func seqFromRef(ref string) (int, error) {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return 0, fmt.Errorf("malformed snapshot ref %q", ref)
	}
	return strconv.Atoi(ref[idx+1:])
}

// listSnapshots rebuilds the history from the snapshot refs.
// Each line of for-each-ref is "<refname> <sha> <committer unix time>".
func (db *DB) listSnapshots() (snapshot.History, error) {
	out, err := db.dataRepo.Run(
		"for-each-ref",
		"--format=%(refname) %(objectname) %(creatordate:unix)",
		snapshotRefSpace)
	if err != nil {
		return nil, errors.Wrap(err, "listing snapshot refs")
	}

	var h snapshot.History
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed for-each-ref line %q", line)
		}
		seq, err := seqFromRef(fields[0])
		if err != nil {
			return nil, err
		}
		unix, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed timestamp in %q: %v", line, err)
		}
		h = append(h, snapshot.Snapshot{
			Seq:  seq,
			Time: time.Unix(unix, 0),
			ID:   snapshot.ID(fields[1]),
		})
	}
	h.Sort()
	return h, nil
}

// shaPresent reports whether sha exists in the object database.
func (db *DB) shaPresent(sha string) error {
	code, err := db.dataRepo.RunExitCode("rev-parse", "--verify", "--quiet", sha+"^{object}")
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("object %s not present in store", sha)
	}
	return nil
}
