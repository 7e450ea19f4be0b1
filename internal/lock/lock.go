//go:build unix

// Package lock implements an advisory lock guarding a target tree.
//
// The lock is flock(2) on a file in the target root, so the kernel drops it
// when the holder exits for any reason, including SIGKILL. A leftover file
// from a killed run does not block the next one.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FileName is created in the target root while a run holds the lock.
const FileName = ".wssync.lock"

// ErrHeld is returned by Acquire when another process holds the lock.
var ErrHeld = errors.New("lock: held by another run")

// Lock is a held advisory lock.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the lock in dir without blocking. It fails with ErrHeld
// when another run holds it.
func Acquire(dir string) (*Lock, error) {
	p := filepath.Join(dir, FileName)
	for {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("lock: open %s: %w", p, err)
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s%s", ErrHeld, p, holder(p))
			}
			return nil, fmt.Errorf("lock: flock %s: %w", p, err)
		}

		// The previous holder may have unlinked the file between our open
		// and flock; then we locked an orphaned inode and must start over.
		same, err := samePath(f, p)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if !same {
			_ = f.Close()
			continue
		}

		if err := f.Truncate(0); err == nil {
			_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		}
		return &Lock{path: p, f: f}, nil
	}
}

func samePath(f *os.File, p string) (bool, error) {
	held, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("lock: stat held file: %w", err)
	}
	onDisk, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock: stat %s: %w", p, err)
	}
	return os.SameFile(held, onDisk), nil
}

// holder renders the pid recorded in the lock file, if any.
func holder(p string) string {
	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return ""
	}
	return " (pid " + strconv.Itoa(pid) + ")"
}

// Release removes the lock file and drops the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f, p := l.f, l.path
	l.f, l.path = nil, ""

	// Unlink while still holding the lock so a waiter that opened the old
	// inode notices the swap in samePath.
	rmErr := os.Remove(p)
	closeErr := f.Close()
	if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return fmt.Errorf("lock: release %s: %w", p, rmErr)
	}
	if closeErr != nil {
		return fmt.Errorf("lock: close %s: %w", p, closeErr)
	}
	return nil
}
