// Package gitdb implements the snapshot store on top of an external git
// repository. The git dir lives under the version root, outside the
// tracked tree; the tracked tree is the work tree. Every snapshot is a
// parentless commit registered under its own ref, so deleting a
// snapshot is a ref deletion and the history is whatever refs exist.
package gitdb

import (
	"fmt"
	"sync"

	"github.com/Alvareaux/pyfile-tracker/os/temp"
	"github.com/Alvareaux/pyfile-tracker/snapshot"
	"github.com/Alvareaux/pyfile-tracker/snapshot/git/repo"
)

// MakeDB makes a gitdb.DB that uses dataRepo for data and tmp for
// temporary directories.
func MakeDB(dataRepo *repo.Repository, tmp *temp.TempDir) *DB {
	result := &DB{
		reqCh:     make(chan req),
		dataRepo:  dataRepo,
		tmp:       tmp,
		checkouts: make(map[string]bool),
	}
	go result.loop()
	return result
}

// DB stores its data in a git repo.
// Requests are served by a single goroutine, so at most one
// commit/prune/restore cycle touches the repo at a time.
type DB struct {
	// DB uses a goroutine to serve requests, with requests of type req
	reqCh chan req

	closeOnce sync.Once

	// All data below here should be accessed only by the loop() goroutine
	dataRepo  *repo.Repository
	tmp       *temp.TempDir
	checkouts map[string]bool // staging checkouts we own and may delete
}

// req is a request interface
type req interface {
	req()
}

// Close stops the DB.
func (db *DB) Close() {
	db.closeOnce.Do(func() { close(db.reqCh) })
}

// loop loops serving requests serially
func (db *DB) loop() {
	for r := range db.reqCh {
		switch r := r.(type) {
		case commitReq:
			s, err := db.commit()
			r.resultCh <- snapAndError{snap: s, err: err}
		case snapshotsReq:
			h, err := db.listSnapshots()
			r.resultCh <- historyAndError{history: h, err: err}
		case checkoutReq:
			path, err := db.checkout(r.snap)
			r.resultCh <- stringAndError{str: path, err: err}
		case releaseCheckoutReq:
			r.resultCh <- db.releaseCheckout(r.path)
		case restoreReq:
			r.resultCh <- db.restore(r.snap)
		case deleteReq:
			r.resultCh <- db.deleteSnapshot(r.snap)
		default:
			panic(fmt.Errorf("unknown reqtype: %T %v", r, r))
		}
	}
}

type snapAndError struct {
	snap snapshot.Snapshot
	err  error
}

type historyAndError struct {
	history snapshot.History
	err     error
}

type stringAndError struct {
	str string
	err error
}

type commitReq struct {
	resultCh chan snapAndError
}

func (r commitReq) req() {}

// Commit records the current state of the work tree as a new snapshot.
func (db *DB) Commit() (snapshot.Snapshot, error) {
	resultCh := make(chan snapAndError)
	db.reqCh <- commitReq{resultCh: resultCh}
	result := <-resultCh
	return result.snap, result.err
}

type snapshotsReq struct {
	resultCh chan historyAndError
}

func (r snapshotsReq) req() {}

// Snapshots rebuilds the history from the store's refs, newest first.
func (db *DB) Snapshots() (snapshot.History, error) {
	resultCh := make(chan historyAndError)
	db.reqCh <- snapshotsReq{resultCh: resultCh}
	result := <-resultCh
	return result.history, result.err
}

type checkoutReq struct {
	snap     snapshot.Snapshot
	resultCh chan stringAndError
}

func (r checkoutReq) req() {}

// Checkout materializes s into a staging directory, returning the path
// where it lives or an error. The work tree is not touched.
func (db *DB) Checkout(s snapshot.Snapshot) (path string, err error) {
	resultCh := make(chan stringAndError)
	db.reqCh <- checkoutReq{snap: s, resultCh: resultCh}
	result := <-resultCh
	return result.str, result.err
}

type releaseCheckoutReq struct {
	path     string
	resultCh chan error
}

func (r releaseCheckoutReq) req() {}

// ReleaseCheckout releases a path from a previous Checkout so the DB
// can reclaim it.
func (db *DB) ReleaseCheckout(path string) error {
	resultCh := make(chan error)
	db.reqCh <- releaseCheckoutReq{path: path, resultCh: resultCh}
	return <-resultCh
}

type restoreReq struct {
	snap     snapshot.Snapshot
	resultCh chan error
}

func (r restoreReq) req() {}

// Restore rewrites the work tree to match s: files absent from the
// snapshot are removed, everything else is overwritten.
func (db *DB) Restore(s snapshot.Snapshot) error {
	resultCh := make(chan error)
	db.reqCh <- restoreReq{snap: s, resultCh: resultCh}
	return <-resultCh
}

type deleteReq struct {
	snap     snapshot.Snapshot
	resultCh chan error
}

func (r deleteReq) req() {}

// Delete removes s from the store. The underlying objects are left for
// git's own gc.
func (db *DB) Delete(s snapshot.Snapshot) error {
	resultCh := make(chan error)
	db.reqCh <- deleteReq{snap: s, resultCh: resultCh}
	return <-resultCh
}
