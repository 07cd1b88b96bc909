// Package runlock keeps two xnatflow processes from driving the same run at
// once. Each run id maps to a lock file under the state directory's locks/
// folder; the lock is an advisory flock released on Release or process exit.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"xnatflow/internal/config"
)

// ErrLocked reports that another process already owns the run.
var ErrLocked = errors.New("run is locked by another process")

// Lock is a held run lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// PathFor returns the lock file used for runID inside dir.
func PathFor(dir, runID string) string {
	name := config.FileComponent(runID)
	if name == "" {
		name = "run"
	}
	return filepath.Join(dir, name+".lock")
}

// Acquire takes the lock for runID without blocking.
func Acquire(dir, runID string) (*Lock, error) {
	if dir == "" {
		return nil, fmt.Errorf("acquire run lock: lock directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	path := PathFor(dir, runID)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (run %s, lock %s)", ErrLocked, runID, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Release drops the lock. Calling it on a nil or released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	l.lock = nil
	return nil
}
