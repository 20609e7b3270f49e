// Package repo provides utilities for operating on the store's git repo.
// The store keeps its git dir outside the tracked folder, so every
// command runs with an explicit --git-dir and (where needed) an explicit
// --work-tree instead of relying on repo discovery.
package repo

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Repository is a git repository whose git dir and work tree live in
// different places: gitDir under the version store, workTree at the
// tracked folder.
type Repository struct {
	gitDir   string
	workTree string
}

// GitDir is where r's object database and refs live on disk.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkTree is the tree r stages and checks out against.
func (r *Repository) WorkTree() string {
	return r.workTree
}

// Command creates an exec.Cmd to run a git command against r.
// The command runs from inside the work tree so that tree-wide
// operations like `add -A` see the whole tree.
func (r *Repository) Command(args ...string) *exec.Cmd {
	argv := []string{"--git-dir=" + r.gitDir}
	if r.workTree != "" {
		argv = append(argv, "--work-tree="+r.workTree)
	}
	argv = append(argv, args...)
	cmd := exec.Command("git", argv...)
	if r.workTree != "" {
		cmd.Dir = r.workTree
	}
	return cmd
}

// CommandAt is Command with the work tree overridden, for staging
// operations that materialize trees somewhere other than r's work tree.
func (r *Repository) CommandAt(workTree string, args ...string) *exec.Cmd {
	argv := append([]string{"--git-dir=" + r.gitDir, "--work-tree=" + workTree}, args...)
	cmd := exec.Command("git", argv...)
	cmd.Dir = workTree
	return cmd
}

// Run a git command in r, returning its stdout.
func (r *Repository) Run(args ...string) (string, error) {
	return r.RunCmd(r.Command(args...))
}

// RunCmd runs cmd (that must have been created by Command), returning
// its output and error.
func (r *Repository) RunCmd(cmd *exec.Cmd) (string, error) {
	log.Debugf("repo.Repository.Run %v", cmd.Args[1:])
	data, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.Debugf("repo.Repository.Run error: %s", string(exitErr.Stderr))
			return string(data), fmt.Errorf("git %s: %v: %s",
				strings.Join(cmd.Args[1:], " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return string(data), err
	}
	return string(data), nil
}

// RunSha runs a git command that returns a sha.
func (r *Repository) RunSha(args ...string) (string, error) {
	out, err := r.Run(args...)
	if err != nil {
		return out, err
	}
	return validateSha(out)
}

// RunExitCode runs a git command where the exit code is the answer
// (e.g. rev-parse --verify --quiet). Returns the code with a nil error
// for plain non-zero exits.
func (r *Repository) RunExitCode(args ...string) (int, error) {
	cmd := r.Command(args...)
	log.Debugf("repo.Repository.RunExitCode %v", cmd.Args[1:])
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// validateSha trims and validates sha as a git sha, returning the valid sha xor an error
func validateSha(sha string) (string, error) {
	if len(sha) == 40 || len(sha) == 41 && sha[40] == '\n' {
		return sha[0:40], nil
	}
	return "", fmt.Errorf("sha not 40 or 41 (with a \\n) characters: %q", sha)
}

// NewRepository returns a Repository for an existing git dir.
// It checks that gitDir actually holds a repository.
func NewRepository(gitDir, workTree string) (*Repository, error) {
	r := &Repository{gitDir: gitDir, workTree: workTree}
	if _, err := os.Stat(gitDir); err != nil {
		return nil, err
	}
	if _, err := r.Run("rev-parse", "--git-dir"); err != nil {
		return nil, err
	}
	return r, nil
}

// InitRepository initializes a repository at gitDir if none exists and
// gives it a local committer identity, so commits work on machines with
// no global git config.
func InitRepository(gitDir, workTree string) (*Repository, error) {
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		return nil, err
	}
	r := &Repository{gitDir: gitDir, workTree: workTree}
	if _, err := os.Stat(gitDir + "/HEAD"); err != nil {
		if _, err := r.Run("init"); err != nil {
			return nil, err
		}
		if _, err := r.Run("config", "user.name", "pyfile-tracker"); err != nil {
			return nil, err
		}
		if _, err := r.Run("config", "user.email", "pyfile-tracker@local"); err != nil {
			return nil, err
		}
	}
	return r, nil
}
