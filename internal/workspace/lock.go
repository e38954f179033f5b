package workspace

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another process holds the workspace lock.
var ErrBusy = errors.New("workspace is locked by another coworker process")

// Lock is an acquired workspace lock.
type Lock struct {
	flock *flock.Flock
}

// Lock takes the exclusive workspace lock without blocking. The system
// directory is created when missing.
func (l Layout) Lock() (*Lock, error) {
	if err := os.MkdirAll(l.System, 0o755); err != nil {
		return nil, fmt.Errorf("create system directory: %w", err)
	}
	fl := flock.New(l.LockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return &Lock{flock: fl}, nil
}

// Unlock releases the lock. It is safe to call on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
