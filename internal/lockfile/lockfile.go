// Package lockfile provides host-local mutual exclusion for runguard sessions.
//
// A lock is a regular file created with O_CREATE|O_EXCL: the create either
// succeeds atomically or fails because another process already holds the
// claim. There is no observe-then-create gap, so the filesystem primitive is
// the entire exclusion mechanism.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Locker is the capability the retry runner acquires around every attempt.
// FileLock implements it against the filesystem; tests substitute an
// in-memory fake.
type Locker interface {
	// TryAcquire attempts to claim the lock. It returns false when another
	// process already holds it. It never blocks.
	TryAcquire() (bool, error)
	// Release drops the claim. Releasing a lock that is not held is a no-op,
	// never an error.
	Release() error
}

// FileLock is a Locker backed by a file at a fixed, well-known path.
type FileLock struct {
	path string
}

// New returns a FileLock for the given path. The lock is not acquired.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// TryAcquire claims the lock via an exclusive create. A concurrent claimant
// racing on the same path sees os.ErrExist and reports AlreadyHeld as
// (false, nil).
func (l *FileLock) TryAcquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}

	// Record the owner pid so operators can inspect a held lock.
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")

	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close lock file: %w", err)
	}
	return true, nil
}

// Release removes the lock file. A missing file means the lock is already
// free and is not an error.
func (l *FileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
