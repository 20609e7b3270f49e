package repo

import (
	"path/filepath"
	"testing"
)

func makeRepo(t *testing.T) *Repository {
	gitDir := filepath.Join(t.TempDir(), "repo.git")
	r, err := InitRepository(gitDir, t.TempDir())
	if err != nil {
		t.Fatalf("error init'ing repo: %v", err)
	}
	return r
}

func TestRunExitCode(t *testing.T) {
	r := makeRepo(t)

	code, err := r.RunExitCode("rev-parse", "--git-dir")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	missing := "0123456789012345678901234567890123456789"
	code, err = r.RunExitCode("rev-parse", "--verify", "--quiet", missing+"^{object}")
	if err != nil {
		t.Fatal(err)
	}
	if code == 0 {
		t.Fatal("expected a non-zero exit for a missing object")
	}
}

func TestInitRepositoryIsIdempotent(t *testing.T) {
	gitDir := filepath.Join(t.TempDir(), "repo.git")
	workTree := t.TempDir()

	if _, err := InitRepository(gitDir, workTree); err != nil {
		t.Fatal(err)
	}
	r, err := InitRepository(gitDir, workTree)
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if _, err := r.Run("rev-parse", "--git-dir"); err != nil {
		t.Fatal(err)
	}
}
