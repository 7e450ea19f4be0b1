// Package mirror copies new and updated workspace files into the target tree.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/storage"
)

// CopyFunc is called after each file is copied (or would be, in dry-run mode).
type CopyFunc func(models.FileEntry)

// Options configures a Syncer.
type Options struct {
	// SourceRoot holds one directory per workspace.
	SourceRoot string
	// Docs, when set, narrows each workspace to SourceRoot/<ws>/<Docs>.
	Docs string
	// Exclude lists doublestar patterns matched against the slash-separated
	// path relative to the workspace source directory.
	Exclude []string
	DryRun  bool
	Logger  *slog.Logger
	OnCopy  CopyFunc
}

// Syncer mirrors workspace directories into a storage.Provider.
type Syncer struct {
	opts  Options
	store storage.Provider
}

// New returns a Syncer writing into store.
func New(store storage.Provider, opts Options) (*Syncer, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("mirror: invalid exclude pattern %q", p)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Syncer{opts: opts, store: store}, nil
}

// SourceDir returns the directory walked for workspace ws.
func (s *Syncer) SourceDir(ws string) string {
	if s.opts.Docs != "" {
		return filepath.Join(s.opts.SourceRoot, ws, s.opts.Docs)
	}
	return filepath.Join(s.opts.SourceRoot, ws)
}

// SyncWorkspace copies every file under the workspace source directory that
// is missing from <target>/<ws> or whose modification time is strictly later
// than the destination copy. It reports whether anything was copied.
//
// A missing source directory is logged and yields (false, nil).
func (s *Syncer) SyncWorkspace(ctx context.Context, ws string) (bool, error) {
	logger := s.opts.Logger
	srcDir := s.SourceDir(ws)

	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		logger.Warn("source workspace missing",
			slog.String("workspace", ws),
			slog.String("path", srcDir))
		return false, nil
	}

	// WalkDir does not descend into a symlinked root, so walk its target.
	root, err := filepath.EvalSymlinks(srcDir)
	if err != nil {
		return false, fmt.Errorf("mirror: resolve %s: %w", srcDir, err)
	}

	copied := false
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel != "." && s.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := filepath.Join(ws, rel)
		if d.IsDir() {
			if s.opts.DryRun {
				return nil
			}
			return s.store.MkdirAll(dst)
		}

		srcInfo, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !srcInfo.Mode().IsRegular() {
			return nil
		}

		need, err := s.needsCopy(srcInfo, dst)
		if err != nil {
			return err
		}
		if !need {
			return nil
		}

		if !s.opts.DryRun {
			if err := s.store.Clone(p, dst); err != nil {
				return err
			}
		}
		copied = true

		entry := models.FileEntry{
			Workspace: ws,
			Path:      filepath.ToSlash(rel),
			Source:    p,
			Dest:      filepath.Join(s.store.Root(), dst),
			Size:      srcInfo.Size(),
			ModTime:   srcInfo.ModTime(),
		}
		logger.Info("copied",
			slog.String("src", entry.Source),
			slog.String("dst", entry.Dest),
			slog.Bool("dry_run", s.opts.DryRun))
		if s.opts.OnCopy != nil {
			s.opts.OnCopy(entry)
		}
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("mirror: sync %s: %w", ws, err)
	}
	return copied, nil
}

// needsCopy is true when dst is absent or older than the source.
func (s *Syncer) needsCopy(src fs.FileInfo, dst string) (bool, error) {
	dstInfo, err := s.store.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return src.ModTime().After(dstInfo.ModTime()), nil
}

func (s *Syncer) excluded(rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, p := range s.opts.Exclude {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}
