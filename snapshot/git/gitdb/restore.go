package gitdb

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
)

// restore checks s out into a staging dir and then syncs the staged
// tree into the work tree: files not present in the snapshot are
// deleted, everything else is copied over. Directories left empty by
// deletions are kept, matching what a checkout would leave behind.
func (db *DB) restore(s snapshot.Snapshot) error {
	staged, err := db.checkout(s)
	if err != nil {
		return err
	}
	defer db.releaseCheckout(staged)

	workTree := db.dataRepo.WorkTree()

	current, err := relFiles(workTree)
	if err != nil {
		return errors.Wrap(err, "scanning tracked tree")
	}
	snapFiles, err := relFiles(staged)
	if err != nil {
		return errors.Wrap(err, "scanning staged snapshot")
	}

	for rel := range current {
		if snapFiles[rel] {
			continue
		}
		path := filepath.Join(workTree, rel)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", rel)
		}
		log.Debugf("restore: removed %s", rel)
	}

	for rel := range snapFiles {
		src := filepath.Join(staged, rel)
		dst := filepath.Join(workTree, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.Wrapf(err, "creating parent of %s", rel)
		}
		if err := copyFile(src, dst); err != nil {
			return errors.Wrapf(err, "restoring %s", rel)
		}
	}

	return nil
}

// relFiles returns the set of file paths under root, relative to root.
// Directories themselves are not entries; symlinks count as files.
func relFiles(root string) (map[string]bool, error) {
	files := map[string]bool{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = true
		return nil
	})
	return files, err
}

func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(target, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
