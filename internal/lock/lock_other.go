//go:build !unix

package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FileName is created in the target root while a run holds the lock.
const FileName = ".wssync.lock"

// ErrHeld is returned by Acquire when another process holds the lock.
var ErrHeld = errors.New("lock: held by another run")

// Lock is a held advisory lock.
type Lock struct {
	path string
}

// Acquire creates the lock file in dir exclusively. Without flock a file
// left by a killed run has to be removed by hand.
func Acquire(dir string) (*Lock, error) {
	p := filepath.Join(dir, FileName)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrHeld, p)
		}
		return nil, fmt.Errorf("lock: create %s: %w", p, err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("lock: close %s: %w", p, err)
	}
	return &Lock{path: p}, nil
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	p := l.path
	l.path = ""
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("lock: release %s: %w", p, err)
	}
	return nil
}
