package snapshot

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// requestKind describes the kind of a restore Request.
type requestKind int

const (
	byIndex requestKind = iota
	byTime
)

// Request selects one snapshot out of a history: either a relative
// index (0 = latest, -1 = oldest) or a point in time.
type Request struct {
	kind  requestKind
	index int
	at    time.Time
}

// ByIndex requests the snapshot at position i counted from the newest.
// Negative indices count from the oldest end: -1 is the earliest.
func ByIndex(i int) Request {
	return Request{kind: byIndex, index: i}
}

// ByTime requests the most recent snapshot taken at or before t.
func ByTime(t time.Time) Request {
	return Request{kind: byTime, at: t}
}

var durationRE = regexp.MustCompile(`^(\d+)\s*([smhd])$`)

// ParseDuration parses the duration syntax shared by retention rules
// and restore requests: an integer followed by s, m, h or d.
func ParseDuration(text string) (time.Duration, error) {
	m := durationRE.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0, configErrorf("invalid duration %q: use forms like 45s, 30m, 1h, 1d", text)
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, configErrorf("invalid duration %q: %v", text, err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(amount) * unit, nil
}

var epochRE = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseTimeRequest parses the text of a time-based restore request:
// a duration-before-now ("30m", "1h", "1d"), raw epoch seconds, or an
// ISO-8601 datetime (a space may stand in for the 'T' separator).
// Duration forms are anchored to now exactly once, here.
func ParseTimeRequest(text string, now time.Time) (Request, error) {
	s := strings.TrimSpace(text)

	if durationRE.MatchString(strings.ToLower(s)) {
		d, err := ParseDuration(s)
		if err != nil {
			return Request{}, err
		}
		return ByTime(now.Add(-d)), nil
	}

	if epochRE.MatchString(s) {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Request{}, configErrorf("invalid timestamp %q", text)
		}
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * float64(time.Second))
		return ByTime(time.Unix(sec, nsec)), nil
	}

	if strings.Contains(s, " ") && !strings.Contains(s, "T") {
		s = strings.Replace(s, " ", "T", 1)
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ByTime(t), nil
		}
	}
	return Request{}, configErrorf("invalid restore point %q: use an index, epoch seconds, an ISO datetime, or a duration like 1h", text)
}

// Resolve maps req onto exactly one snapshot in h.
// Fails with ErrNoHistory when h is empty and ErrNoSuchRevision when the
// request is out of range or predates all history.
func Resolve(h History, req Request) (Snapshot, error) {
	if len(h) == 0 {
		return Snapshot{}, ErrNoHistory
	}

	switch req.kind {
	case byIndex:
		pos := req.index
		if pos < 0 {
			// -1 is the oldest snapshot, -2 the second-oldest.
			pos = len(h) + pos
		}
		if pos < 0 || pos >= len(h) {
			return Snapshot{}, ErrNoSuchRevision
		}
		return h[pos], nil

	case byTime:
		// h is newest first; the first snapshot at or before the
		// requested instant is the closest one. Ties at equal
		// timestamps are already ordered newer-creation first.
		for _, s := range h {
			if !s.Time.After(req.at) {
				return s, nil
			}
		}
		return Snapshot{}, ErrNoSuchRevision
	}
	return Snapshot{}, ErrNoSuchRevision
}
