package snapshot

import (
	"strconv"
	"time"
)

// ruleKind describes the kind of a retention Rule.
// kind instead of type because type is a keyword
type ruleKind int

const (
	keepLastN ruleKind = iota
	keepWindow
)

// Rule decides which snapshots a store keeps. Exactly one rule is active
// per tracked folder; it is fixed for the lifetime of the process.
type Rule struct {
	kind   ruleKind
	n      int
	window time.Duration
}

// NewKeepLastN returns a rule that keeps the n most recent snapshots.
func NewKeepLastN(n int) (Rule, error) {
	if n <= 0 {
		return Rule{}, configErrorf("keep-last must be positive, got %d", n)
	}
	return Rule{kind: keepLastN, n: n}, nil
}

// NewKeepWindow returns a rule that keeps every snapshot younger than d.
func NewKeepWindow(d time.Duration) (Rule, error) {
	if d <= 0 {
		return Rule{}, configErrorf("keep-window must be positive, got %v", d)
	}
	return Rule{kind: keepWindow, window: d}, nil
}

// ParseRule parses retention rule text: an integer N (keep the last N
// snapshots) or a duration like "30m", "1h", "1d" (keep snapshots
// younger than that).
func ParseRule(text string) (Rule, error) {
	if n, err := strconv.Atoi(text); err == nil {
		return NewKeepLastN(n)
	}
	d, err := ParseDuration(text)
	if err != nil {
		return Rule{}, configErrorf("invalid retention rule %q: use an integer N or a duration like 30m, 1h, 1d", text)
	}
	return NewKeepWindow(d)
}

func (r Rule) String() string {
	if r.kind == keepLastN {
		return "keep-last " + strconv.Itoa(r.n)
	}
	return "keep-window " + r.window.String()
}

// Prune returns the snapshots in h that the rule discards, evaluated at
// instant now. Pure: the caller performs the actual deletion against the
// store. The newest snapshot is never in the returned set — a tracked
// store must stay resolvable at index 0.
func (r Rule) Prune(h History, now time.Time) []Snapshot {
	if len(h) == 0 {
		return nil
	}
	var doomed []Snapshot
	switch r.kind {
	case keepLastN:
		if len(h) > r.n {
			doomed = append(doomed, h[r.n:]...)
		}
	case keepWindow:
		cutoff := now.Add(-r.window)
		// h[0] survives unconditionally.
		for _, s := range h[1:] {
			if s.Time.Before(cutoff) {
				doomed = append(doomed, s)
			}
		}
	}
	return doomed
}
