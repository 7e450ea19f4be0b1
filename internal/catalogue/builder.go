// Package catalogue builds and persists the workspace catalogue.
package catalogue

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/storage"
)

// Builder derives catalogue entries from mirrored workspace directories.
type Builder struct {
	store  storage.Provider
	prefix string
	logger *slog.Logger
}

// NewBuilder returns a Builder reading from store. prefix is prepended to
// the doc and image paths of every complete entry.
func NewBuilder(store storage.Provider, prefix string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, prefix: NormalizePrefix(prefix), logger: logger}
}

// NormalizePrefix returns "" for an empty prefix and otherwise the prefix
// with exactly one trailing slash.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/"
}

// ResolvePrefix turns an optional configured prefix into link form. An unset
// prefix yields ""; a set one, even empty, ends in exactly one slash, so an
// explicit "" links from the site root ("/").
func ResolvePrefix(prefix *string) string {
	if prefix == nil {
		return ""
	}
	return strings.TrimRight(*prefix, "/") + "/"
}

// Build produces one entry per workspace, numbering them from 1.
func (b *Builder) Build(workspaces []string) []models.Entry {
	entries := make([]models.Entry, 0, len(workspaces))
	nextID := 1
	for _, ws := range workspaces {
		var e models.Entry
		e, nextID = b.BuildEntry(ws, nextID)
		entries = append(entries, e)
	}
	return entries
}

// BuildEntry reads the workspace metadata from the target tree. Any failure
// yields the placeholder entry; the returned entry always carries nextID and
// the second result is nextID+1.
func (b *Builder) BuildEntry(ws string, nextID int) (models.Entry, int) {
	e, err := b.readEntry(ws)
	if err != nil {
		b.logger.Warn("using default catalogue entry",
			slog.String("workspace", ws),
			slog.String("error", err.Error()))
		return models.DefaultEntry(nextID), nextID + 1
	}
	e.ID = nextID
	return e, nextID + 1
}

func (b *Builder) readEntry(ws string) (models.Entry, error) {
	title, err := b.readText(ws, models.TitleFile)
	if err != nil {
		return models.Entry{}, err
	}
	author, err := b.readText(ws, models.AuthorFile)
	if err != nil {
		return models.Entry{}, err
	}
	description, err := b.readText(ws, models.DescriptionFile)
	if err != nil {
		return models.Entry{}, err
	}
	for _, name := range []string{models.ReportFile, models.LogoFile} {
		if err := b.requireFile(ws, name); err != nil {
			return models.Entry{}, err
		}
	}
	return models.Entry{
		Title:       title,
		Author:      author,
		Description: description,
		Doc:         b.prefix + ws + "/" + models.ReportFile,
		Image:       b.prefix + ws + "/" + models.LogoFile,
	}, nil
}

func (b *Builder) readText(ws, name string) (string, error) {
	data, err := b.store.Read(filepath.Join(ws, name))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("catalogue: %s/%s is not valid UTF-8", ws, name)
	}
	return strings.TrimSpace(string(data)), nil
}

func (b *Builder) requireFile(ws, name string) error {
	info, err := b.store.Stat(filepath.Join(ws, name))
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("catalogue: %s/%s: %w", ws, name, apperr.ErrMissingAsset)
	}
	return nil
}
