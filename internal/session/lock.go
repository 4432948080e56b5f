package session

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside each date folder while a workflow holds it.
// Its name is not numeric, so the resume scan never counts it.
const LockFileName = ".readaloud.lock"

type dirLock struct {
	dir  string
	lock *flock.Flock
}

func acquireDirLock(dir string) (*dirLock, error) {
	l := flock.New(filepath.Join(dir, LockFileName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDirLocked, dir)
	}
	return &dirLock{dir: dir, lock: l}, nil
}

func (d *dirLock) release() error {
	if d == nil {
		return nil
	}
	return d.lock.Unlock()
}
