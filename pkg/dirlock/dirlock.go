// Package dirlock takes an exclusive OS-level lock on a node's data
// directory so two processes can never open the same engine concurrently.
package dirlock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyHeld is returned by Acquire when another process already holds
// the lock on this data directory.
var ErrAlreadyHeld = fmt.Errorf("dirlock: data directory already locked by another process")

// Handle owns the exclusive lock on a data directory's LOCK file. The lock
// is released by calling Release; it must be acquired before any engine
// file is opened and released only after the engine has been closed.
type Handle struct {
	flock *flock.Flock
	path  string
}

// Acquire creates "<dataDir>/LOCK" if it does not already exist and takes a
// non-blocking exclusive lock on it. It returns ErrAlreadyHeld if another
// process holds the lock, or a wrapped I/O error for any other failure.
// Both are fatal-resource conditions for the caller: startup must not
// proceed without exclusive ownership of the data directory.
func Acquire(dataDir string) (*Handle, error) {
	path := filepath.Join(dataDir, "LOCK")
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("dirlock: lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyHeld
	}
	return &Handle{flock: fl, path: path}, nil
}

// Path returns the path of the underlying lock file.
func (h *Handle) Path() string {
	return h.path
}

// Release drops the exclusive lock. Safe to call more than once.
func (h *Handle) Release() error {
	if err := h.flock.Unlock(); err != nil {
		return fmt.Errorf("dirlock: unlock %s: %w", h.path, err)
	}
	return nil
}
