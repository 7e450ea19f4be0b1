// Package watcher triggers synchronization passes when the source tree changes.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a pass runs.
const DefaultDebounce = 2 * time.Second

// TriggerFunc runs a pass. Errors are logged and do not stop the watcher.
type TriggerFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on root and every directory below it and
// calls fn once the tree has been quiet for debounce after a change, until
// ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, fn TriggerFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", debounce))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			timer, fire = nil, nil
			if err := fn(ctx); err != nil {
				logger.Error("watcher: pass failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) != 0 {
				logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
// Symlinked directories are watched at their resolved target.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return addTree(w, root, make(map[string]bool))
}

func addTree(w *fsnotify.Watcher, root string, seen map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	if seen[resolved] {
		return nil
	}
	seen[resolved] = true

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				return addTree(w, path, seen)
			}
		}
		return nil
	})
}
