package vfs

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/flintdb/flintdb/internal/ferr"
)

// Lock is an advisory, whole-file exclusive lock held for the lifetime of a
// single writer's open BlockStorage handle.
type Lock struct {
	file *os.File
}

// TryLock attempts a non-blocking exclusive flock on path. It returns
// ferr.Busy (wrapped) if another process already holds the lock.
//
// The lock file is created if absent and is never removed on release: the
// spec requires the lock file to persist so a crashed writer's lock state is
// observable by the next opener.
func TryLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", path, err)
	}

	flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if flockErr != nil {
		_ = f.Close()

		if errors.Is(flockErr, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("lock %q: %w", path, ferr.Busy)
		}

		return nil, fmt.Errorf("flock %q: %w", path, flockErr)
	}

	return &Lock{file: f}, nil
}

// Close releases the lock. The backing file is left in place. Safe to call
// on a nil *Lock.
func (l *Lock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	return err
}
