// Package temp makes hierarchical temporary directories.
// It offers the same interface as the os temp helpers, but recursive.
// The more you use this to create temporary directories, the fewer
// places we need to change when we want to relocate all our tempfiles.
package temp

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Create a new TempDir in directory dir with prefix string.
func NewTempDir(dir, prefix string) (*TempDir, error) {
	p, err := os.MkdirTemp(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &TempDir{Dir: p}, nil
}

// TempDir is a temporary directory, that may live under other temporary directories.
type TempDir struct {
	Dir string
}

// Create a new directory with a fixed name (this lets us structure our temp files)
func (d *TempDir) FixedDir(name string) (*TempDir, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return nil, fmt.Errorf("temp.TempDir.FixedDir: Invalid name %v", name)
	}
	p := path.Join(d.Dir, name)
	if err := os.MkdirAll(p, 0777); err != nil {
		return nil, err
	}
	return &TempDir{p}, nil
}

// Create a new temporary directory under d
func (d *TempDir) TempDir(prefix string) (*TempDir, error) {
	p, err := os.MkdirTemp(d.Dir, prefix)
	if err != nil {
		return nil, err
	}
	return &TempDir{Dir: p}, nil
}

// TempDirDefault creates a TempDir rooted in the default temp dir
func TempDirDefault() (*TempDir, error) {
	tmpDir, err := os.MkdirTemp("", "pyfile-tracker-tmp-")
	if err != nil {
		return nil, fmt.Errorf("temp.TempDirDefault: couldn't MkdirTemp: %v", err)
	}
	return &TempDir{tmpDir}, err
}
