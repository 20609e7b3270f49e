// Package store locates the version store for a tracked folder and
// guards its pairing. Each tracked folder gets its own store, keyed by
// a hash of the folder's absolute path, rooted under a per-user base
// directory (per-drive on Windows). The store holds the git dir and a
// small metadata file binding it to the tracked path.
package store

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/Alvareaux/pyfile-tracker/snapshot"
)

const (
	baseDirName  = ".pyfile_tracker"
	metadataFile = "store.json"

	// GitDirName is the git dir inside the version root.
	GitDirName = "repo.git"
)

// Store is a located version root bound to a tracked folder.
type Store struct {
	// Root is the version root directory.
	Root string
	// InputPath is the absolute path of the tracked folder.
	InputPath string
}

// GitDir is where the store's git repository lives.
func (s *Store) GitDir() string {
	return filepath.Join(s.Root, GitDirName)
}

type metadata struct {
	InputPath string `json:"input_path"`
}

// Locate finds (and creates if needed) the version root for inputPath.
// With an explicit output the root is exactly that path; otherwise it
// is <base>/<sha1(abs input)[:12]> under the default base dir.
// The returned store is bound to inputPath: reusing a store with a
// different tracked folder is a configuration error.
func Locate(inputPath, output string) (*Store, error) {
	s, err := locate(inputPath, output)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return nil, err
	}
	if err := s.bindInput(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenExisting is Locate for the restore path: the store must already
// exist and hold a repository, since there is nothing to restore from
// otherwise. A missing store is reported without creating anything on
// disk.
func OpenExisting(inputPath, output string) (*Store, error) {
	s, err := locate(inputPath, output)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(s.GitDir(), "HEAD")); err != nil {
		return nil, errors.Wrapf(snapshot.ErrStoreUnavailable, "no store repository at %s", s.GitDir())
	}
	if err := s.bindInput(); err != nil {
		return nil, err
	}
	return s, nil
}

// locate computes the version root for inputPath without touching the
// filesystem.
func locate(inputPath, output string) (*Store, error) {
	absInput, err := filepath.Abs(expandUser(inputPath))
	if err != nil {
		return nil, err
	}

	var root string
	if output != "" {
		if root, err = filepath.Abs(expandUser(output)); err != nil {
			return nil, err
		}
	} else {
		base, err := defaultBase(absInput)
		if err != nil {
			return nil, err
		}
		sum := sha1.Sum([]byte(absInput))
		root = filepath.Join(base, hex.EncodeToString(sum[:])[:12])
	}

	if err := ensureOutsideInput(absInput, root); err != nil {
		return nil, err
	}
	return &Store{Root: root, InputPath: absInput}, nil
}

// defaultBase returns the base directory all stores live under:
// the drive root on Windows, the home directory otherwise.
func defaultBase(absInput string) (string, error) {
	if runtime.GOOS == "windows" {
		if vol := filepath.VolumeName(absInput); vol != "" {
			return filepath.Join(vol+string(os.PathSeparator), baseDirName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, baseDirName), nil
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ensureOutsideInput rejects a version root inside the tracked tree:
// snapshots of the store itself would recurse.
func ensureOutsideInput(absInput, root string) error {
	rel, err := filepath.Rel(absInput, root)
	if err != nil {
		// Different drives; safely outside.
		return nil
	}
	outside := rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator))
	if !outside {
		return &snapshot.ConfigError{Msg: "version store is inside the tracked folder; move it outside or pass --output"}
	}
	return nil
}

// bindInput records the tracked path in the store on first use and
// rejects reuse with a different tracked path afterwards.
func (s *Store) bindInput() error {
	path := filepath.Join(s.Root, metadataFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var m metadata
		if jsonErr := json.Unmarshal(data, &m); jsonErr == nil && m.InputPath != "" {
			if filepath.Clean(m.InputPath) != s.InputPath {
				return &snapshot.ConfigError{
					Msg: "version store already linked to a different input path: " + m.InputPath,
				}
			}
			return nil
		}
		// Unparseable metadata is rewritten below, matching a fresh store.
	} else if !os.IsNotExist(err) {
		return err
	}

	out, err := json.MarshalIndent(metadata{InputPath: s.InputPath}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
