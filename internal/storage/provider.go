// Package storage defines the target-tree file-system abstraction.
package storage

import "io/fs"

// Provider is the interface for operations on the mirrored target tree.
// All paths are relative to the target root and use the host separator.
type Provider interface {
	// Root returns the absolute target root.
	Root() string
	// Stat returns file info for path, following symlinks.
	Stat(path string) (fs.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// MkdirAll creates the directory path and any missing parents.
	MkdirAll(path string) error
	// Clone copies the absolute file src to path, carrying over its
	// permission bits and modification time.
	Clone(src, path string) error
}
