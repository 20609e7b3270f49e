package gitdb

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
)

// checkout materializes s into a fresh staging dir with a throwaway
// index, leaving the store's own index and the real work tree alone.
func (db *DB) checkout(s snapshot.Snapshot) (path string, err error) {
	if err := db.shaPresent(string(s.ID)); err != nil {
		return "", errors.Wrapf(snapshot.ErrNoSuchRevision, "snapshot %d (%s) not in store", s.Seq, s.ID)
	}

	indexDir, err := db.tmp.TempDir("git-index")
	if err != nil {
		return "", err
	}
	indexFilename := filepath.Join(indexDir.Dir, "index")
	defer os.RemoveAll(indexDir.Dir)

	coDir, err := db.tmp.TempDir("checkout")
	if err != nil {
		return "", err
	}

	extraEnv := []string{"GIT_INDEX_FILE=" + indexFilename}

	cmd := db.dataRepo.CommandAt(coDir.Dir, "read-tree", string(s.ID))
	cmd.Env = append(os.Environ(), extraEnv...)
	if _, err = db.dataRepo.RunCmd(cmd); err != nil {
		return "", errors.Wrap(err, "reading snapshot tree")
	}

	cmd = db.dataRepo.CommandAt(coDir.Dir, "checkout-index", "-a")
	cmd.Env = append(os.Environ(), extraEnv...)
	if _, err = db.dataRepo.RunCmd(cmd); err != nil {
		return "", errors.Wrap(err, "checking out snapshot tree")
	}

	db.checkouts[coDir.Dir] = true

	return coDir.Dir, nil
}

func (db *DB) releaseCheckout(path string) error {
	if exists := db.checkouts[path]; !exists {
		return nil
	}
	delete(db.checkouts, path)
	return os.RemoveAll(path)
}
