package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tmpPattern = ".wssync-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to target directory
}

// NewFS creates a new FS provider rooted at the given directory,
// creating it when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute target root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the target root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes target root: %s", rel)
	}
	return abs, nil
}

// Stat returns file info for a target path.
func (f *FS) Stat(path string) (fs.FileInfo, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info, nil
}

// Read returns the raw bytes of a target file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// MkdirAll creates a directory (and parents) under the target root.
func (f *FS) MkdirAll(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	return nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	return f.replace(path, func(tmp *os.File) error {
		if _, err := tmp.Write(content); err != nil {
			return fmt.Errorf("storage: write temp: %w", err)
		}
		// CreateTemp uses 0600; the catalogue is served to other users.
		if err := tmp.Chmod(0o644); err != nil {
			return fmt.Errorf("storage: chmod: %w", err)
		}
		return nil
	})
}

// Clone copies src into path via a temp file, then applies the source mode
// and modification time before renaming into place. An existing file at
// path is replaced.
func (f *FS) Clone(src, path string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("storage: open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("storage: stat source: %w", err)
	}

	return f.replace(path, func(tmp *os.File) error {
		if _, err := io.Copy(tmp, in); err != nil {
			return fmt.Errorf("storage: copy %s: %w", src, err)
		}
		if err := tmp.Chmod(info.Mode().Perm()); err != nil {
			return fmt.Errorf("storage: chmod: %w", err)
		}
		return nil
	}, func(tmpName string) error {
		if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
			return fmt.Errorf("storage: chtimes: %w", err)
		}
		return nil
	})
}

// replace runs fill against a fresh temp file next to path, syncs and closes
// it, runs any after hooks on the closed temp file and renames it over path.
func (f *FS) replace(path string, fill func(*os.File) error, after ...func(string) error) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	for _, fn := range after {
		if err := fn(tmpName); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
