// Package lock serializes lifecycle commands across invocations.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"xcbridgectl/internal/logger"
)

// ErrLocked is returned when another invocation holds the lock.
var ErrLocked = errors.New("another xcbridgectl install or uninstall is running")

// Lock is a held exclusive flock.
type Lock struct {
	file *os.File
	path string
}

// DefaultPath returns the per-user lock file in the OS temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "xcbridgectl-"+strconv.Itoa(os.Getuid())+".lock")
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	// The pid is informational; the flock is what excludes other runs.
	if err := writePID(f, os.Getpid()); err != nil {
		log := logger.WithComponent("lock")
		log.Debug().Err(err).Str("path", path).Msg("Failed to record pid in lock file")
	}
	return &Lock{file: f, path: path}, nil
}

type pidFile interface {
	Truncate(size int64) error
	WriteString(s string) (int, error)
}

func writePID(f pidFile, pid int) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		return fmt.Errorf("failed to write pid: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself is left in
// place so a concurrent opener never locks an unlinked inode.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
