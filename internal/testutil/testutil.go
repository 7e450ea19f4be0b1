// Package testutil provides shared test helpers for building source and target trees.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/storage"
)

// Logger returns a logger that drops everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestTarget creates a temporary target directory with a storage.Provider.
func TestTarget(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// SetModTime sets both atime and mtime of path.
func SetModTime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

// ModTime returns the modification time of path.
func ModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.ModTime()
}

// ReadFile returns the content of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Meta is the metadata written by WriteWorkspace.
type Meta struct {
	Title       string
	Author      string
	Description string
}

// WriteWorkspace fills dir with the five files a complete workspace carries.
// Names listed in skip are left out.
func WriteWorkspace(t *testing.T, dir string, m Meta, skip ...string) {
	t.Helper()
	files := map[string]string{
		models.TitleFile:       m.Title + "\n",
		models.AuthorFile:      m.Author + "\n",
		models.DescriptionFile: "  " + m.Description + "\n",
		models.ReportFile:      "%PDF-1.4",
		models.LogoFile:        "\x89PNG",
	}
	for _, s := range skip {
		delete(files, s)
	}
	for name, content := range files {
		WriteFile(t, filepath.Join(dir, name), content)
	}
}
