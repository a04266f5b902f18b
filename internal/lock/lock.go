// Package lock provides an advisory, process-exclusive lock on a file.
//
// Two publish runs against the same output directory would race on the same
// archive and sidecar files, so a run holds the lock for its whole duration.
// The lock is released by the operating system if the process dies.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// Lock is a held advisory lock.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the lock at path without blocking. The file is created if
// needed and stamped with the holder's PID for diagnostics.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := tryLock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			holder, _ := os.ReadFile(path)
			if len(holder) > 0 {
				return nil, fmt.Errorf("%w (pid %s): %s", ErrLocked, string(holder), path)
			}
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	return &Lock{path: path, f: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := unlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	return errors.Join(err, closeErr)
}
