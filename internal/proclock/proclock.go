// Package proclock implements a host-local, crash-tolerant mutual
// exclusion guard backed by a pidfile. It keeps two consumer processes
// from running at the same time on one machine; it is not safe across
// machines or shared filesystems.
package proclock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type ProcessLock struct {
	path   string
	active bool
}

func New(path string) *ProcessLock {
	return &ProcessLock{path: path}
}

// Acquire tries to take the lock. It returns false when another live
// process already holds it; that is an expected outcome, not an error.
// A pidfile left behind by a crashed process (dead pid, or garbage
// content) is removed and the lock is taken over.
func (l *ProcessLock) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && pidAlive(pid) {
			return false, nil
		}
		// Stale lock: previous holder is gone.
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return false, fmt.Errorf("remove stale lock: %w", rmErr)
		}
	case errors.Is(err, fs.ErrNotExist):
		// no lock file, proceed
	default:
		return false, fmt.Errorf("read lock file: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(l.path, []byte(pid), 0o644); err != nil {
		return false, fmt.Errorf("write lock file: %w", err)
	}

	l.active = true
	return true, nil
}

// Release removes the lock file if this process holds it. It is safe to
// call twice and safe to call when the file was removed externally.
func (l *ProcessLock) Release() {
	if !l.active {
		return
	}
	l.active = false

	if _, err := os.Stat(l.path); err != nil {
		return
	}
	_ = os.Remove(l.path)
}

// Active reports whether this process currently holds the lock.
func (l *ProcessLock) Active() bool { return l.active }

// pidAlive checks process liveness with signal 0. EPERM still means the
// process exists, just owned by someone else.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
