package snapshot

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for the resolve and commit paths. Callers compare with
// errors.Cause so wrapped context doesn't hide them.
var (
	// ErrNoHistory means the store has no snapshots at all.
	ErrNoHistory = errors.New("no snapshots exist in the store")

	// ErrNoSuchRevision means the request cannot be satisfied by any
	// snapshot in the history.
	ErrNoSuchRevision = errors.New("no such revision")

	// ErrNoChanges means a commit was requested but the tracked tree is
	// identical to the latest snapshot.
	ErrNoChanges = errors.New("no changes since last snapshot")

	// ErrStoreUnavailable means the version store is missing or unusable.
	ErrStoreUnavailable = errors.New("version store unavailable")
)

// ConfigError reports invalid configuration (retention rule, restore
// request syntax, path setup). Always fatal at startup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err (or its cause) is a ConfigError.
func IsConfigError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigError)
	return ok
}
