package artifact

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an advisory lock on a run directory.
type Lock struct {
	fl *flock.Flock
}

// Lock takes the run directory's advisory lock without blocking.
// Returns ErrRunDirLocked if another process holds it.
func (d RunDir) Lock() (*Lock, error) {
	if err := d.Ensure(); err != nil {
		return nil, err
	}
	fl := flock.New(d.LockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", d.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrRunDirLocked, string(d))
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}
