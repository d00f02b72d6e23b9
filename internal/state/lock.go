package state

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gitlab.com/tozd/go/errors"
)

// LockFile is the advisory lock taken by mutating commands.
const LockFile = ".lock"

// ErrLocked indicates another pquilt process holds the metadata lock.
var ErrLocked = errors.Base("patch queue is locked by another process")

// Lock is a held metadata lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the advisory lock of the metadata directory dir without
// blocking, creating dir if needed.
func Acquire(dir string) (*Lock, error) {
	fl := flock.New(filepath.Join(dir, LockFile))
	if err := mkdirFor(fl.Path()); err != nil {
		return nil, err
	}
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Errorf("failed to lock %s: %w", dir, err)
	}
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.Errorf("failed to unlock %s: %w", l.fl.Path(), err)
	}
	return nil
}

func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
