package proc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked means another harness instance holds the lock.
var ErrLocked = errors.New("proc: another harness instance is running")

// RunLock is a PID-stamped single-instance lock file. With the lock held,
// the supervisor's handle registry is the complete set of harness-owned
// processes, so cleanup never has to guess by command-line pattern.
type RunLock struct {
	path string
}

// AcquireLock takes the lock at path. A lock file left by a dead process
// is considered stale and replaced.
func AcquireLock(path string) (*RunLock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &RunLock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("proc: create lock %s: %w", path, err)
		}
		pid, readErr := readLockPID(path)
		if readErr == nil && pidAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrLocked, pid, path)
		}
		// Stale or unreadable lock; remove and retry once.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("proc: remove stale lock %s: %w", path, rmErr)
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
}

// Release drops the lock.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readLockPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// pidAlive probes a PID with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
