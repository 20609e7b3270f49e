// Package tracker runs the watch loop: it consumes file-change events,
// coalesces each burst behind a quiescence window, and takes one
// snapshot per burst, pruning the store afterwards under the configured
// retention rule.
package tracker

import (
	"time"

	"github.com/cenkalti/backoff"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Alvareaux/pyfile-tracker/common/stats"
	"github.com/Alvareaux/pyfile-tracker/snapshot"
	"github.com/Alvareaux/pyfile-tracker/watcher"
)

// DefaultDebounce is the quiescence window after the last change before
// a snapshot is taken.
const DefaultDebounce = 2 * time.Second

// Config carries the per-run tracking configuration. It is supplied at
// startup and never changes during a run.
type Config struct {
	Rule     snapshot.Rule
	Debounce time.Duration

	// RetryInterval spaces the retries of a failed commit; git lock
	// contention from an overlapping restore clears quickly.
	RetryInterval time.Duration
	RetryCount    uint64
}

// Tracker owns the debounce state machine. Snapshot creation and
// pruning run inline in the event loop, so at most one
// commit-and-prune cycle is in flight; events arriving during a cycle
// queue up and start a fresh debounce window afterwards.
type Tracker struct {
	db      snapshot.DB
	events  <-chan watcher.Event
	cfg     Config
	stat    stats.StatsReceiver
	session string
}

// New builds a Tracker over db consuming events.
func New(db snapshot.DB, events <-chan watcher.Event, cfg Config, stat stats.StatsReceiver) *Tracker {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 2
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}

	session := "unknown"
	if u, err := uuid.NewV4(); err == nil {
		session = u.String()
	}

	return &Tracker{
		db:      db,
		events:  events,
		cfg:     cfg,
		stat:    stat.Scope("tracker"),
		session: session,
	}
}

// Run consumes events until the channel closes. A snapshot is taken
// after each burst of events once the debounce window passes with no
// further changes. Returns only on channel close or a fatal store
// error at startup.
func (t *Tracker) Run() error {
	logger := log.WithField("session", t.session)

	// A store being tracked always has a baseline snapshot to restore
	// to, even before the first change burst.
	h, err := t.db.Snapshots()
	if err != nil {
		return errors.Wrap(err, "reading store history")
	}
	if _, err := h.Newest(); err != nil {
		logger.Info("empty store; creating baseline snapshot")
		t.cycle(logger)
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				logger.Info("change stream closed; stopping tracking")
				return nil
			}
			logger.Debugf("change detected at %s (%s)", ev.Path, ev.Op)
			if timer == nil {
				timer = time.NewTimer(t.cfg.Debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(t.cfg.Debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			t.cycle(logger)
		}
	}
}

// cycle takes one snapshot and prunes. Failures are logged and counted;
// the loop stays armed for the next burst either way.
func (t *Tracker) cycle(logger *log.Entry) {
	s, err := t.commitWithRetry()
	switch {
	case errors.Cause(err) == snapshot.ErrNoChanges:
		t.stat.Counter("snapshots", "skipped").Inc(1)
		logger.Debug("no changes since last snapshot; skipping")
		return
	case err != nil:
		t.stat.Counter("snapshots", "failed").Inc(1)
		logger.Errorf("snapshot failed: %v", err)
		return
	}

	t.stat.Counter("snapshots", "created").Inc(1)
	logger.Infof("snapshot %d at %s (%s)", s.Seq, s.Time.Format(time.RFC3339), s.ID)

	t.prune(logger)
}

func (t *Tracker) commitWithRetry() (snapshot.Snapshot, error) {
	var s snapshot.Snapshot
	var commitErr error
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(t.cfg.RetryInterval), t.cfg.RetryCount)
	backoff.Retry(func() error {
		s, commitErr = t.db.Commit()
		if errors.Cause(commitErr) == snapshot.ErrNoChanges {
			// Not transient; don't retry.
			return nil
		}
		return commitErr
	}, b)
	return s, commitErr
}

func (t *Tracker) prune(logger *log.Entry) {
	h, err := t.db.Snapshots()
	if err != nil {
		logger.Errorf("listing snapshots for prune: %v", err)
		return
	}
	t.stat.Gauge("history", "size").Update(int64(len(h)))

	doomed := t.cfg.Rule.Prune(h, time.Now())
	for _, s := range doomed {
		if err := t.db.Delete(s); err != nil {
			logger.Errorf("pruning snapshot %d: %v", s.Seq, err)
			continue
		}
		t.stat.Counter("snapshots", "pruned").Inc(1)
		logger.Debugf("pruned snapshot %d from %s", s.Seq, s.Time.Format(time.RFC3339))
	}
	if len(doomed) > 0 {
		logger.Infof("retention %s: pruned %d snapshot(s), %d kept",
			t.cfg.Rule, len(doomed), len(h)-len(doomed))
	}
}
