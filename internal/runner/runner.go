// Package runner drives a full synchronization pass: mirror every workspace,
// then rebuild the catalogue when anything was copied.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/catalogue"
	"github.com/starford/wssync/internal/history"
	"github.com/starford/wssync/internal/lock"
	"github.com/starford/wssync/internal/metrics"
	"github.com/starford/wssync/internal/mirror"
	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/storage"
)

// Settings describes what a pass mirrors and where the catalogue goes.
type Settings struct {
	SourceRoot    string
	Docs          string
	Exclude       []string
	Prefix        string
	CatalogueFile string
	DryRun        bool
	Lock          bool
}

// Hook is called after every pass with its result and error.
type Hook func(res models.RunResult, err error)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithHistory records every pass in h.
func WithHistory(h history.Store) Option {
	return func(r *Runner) { r.history = h }
}

// WithMetrics reports every pass to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithHook adds a post-run hook.
func WithHook(h Hook) Option {
	return func(r *Runner) { r.hooks = append(r.hooks, h) }
}

// Runner executes synchronization passes. Passes are serialized.
type Runner struct {
	mu       sync.Mutex
	settings Settings
	store    storage.Provider
	logger   *slog.Logger
	history  history.Store
	metrics  *metrics.Metrics
	hooks    []Hook
}

// New creates a Runner mirroring into store.
func New(store storage.Provider, s Settings, opts ...Option) *Runner {
	if s.CatalogueFile == "" {
		s.CatalogueFile = catalogue.DefaultFile
	}
	r := &Runner{settings: s, store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Settings returns the runner's settings.
func (r *Runner) Settings() Settings {
	return r.settings
}

// Store returns the target storage.
func (r *Runner) Store() storage.Provider {
	return r.store
}

// Run performs one pass. The catalogue file is rewritten only when at least
// one file was copied; otherwise it is left untouched.
func (r *Runner) Run(ctx context.Context) (models.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.run(ctx)
	res.FinishedAt = time.Now()
	r.after(res, err)
	return res, err
}

func (r *Runner) run(ctx context.Context) (models.RunResult, error) {
	s := r.settings
	res := models.RunResult{StartedAt: time.Now(), DryRun: s.DryRun, Copied: []models.FileEntry{}}

	if s.Lock && !s.DryRun {
		l, err := lock.Acquire(r.store.Root())
		if err != nil {
			if errors.Is(err, lock.ErrHeld) {
				return res, fmt.Errorf("runner: %w: %v", apperr.ErrLocked, err)
			}
			return res, fmt.Errorf("runner: %w", err)
		}
		defer func() {
			if err := l.Release(); err != nil {
				r.logger.Warn("release lock failed", slog.String("error", err.Error()))
			}
		}()
	}

	workspaces, err := ListWorkspaces(s.SourceRoot)
	if err != nil {
		return res, err
	}
	res.Workspaces = workspaces

	syncer, err := mirror.New(r.store, mirror.Options{
		SourceRoot: s.SourceRoot,
		Docs:       s.Docs,
		Exclude:    s.Exclude,
		DryRun:     s.DryRun,
		Logger:     r.logger,
		OnCopy: func(e models.FileEntry) {
			res.Copied = append(res.Copied, e)
		},
	})
	if err != nil {
		return res, fmt.Errorf("runner: %w", err)
	}

	needUpdate := false
	for _, ws := range workspaces {
		r.logger.Info("processing workspace", slog.String("workspace", ws))
		copied, err := syncer.SyncWorkspace(ctx, ws)
		if err != nil {
			return res, err
		}
		if copied {
			needUpdate = true
		}
	}

	if !needUpdate || s.DryRun {
		r.logger.Info("catalogue unchanged",
			slog.Int("workspaces", len(workspaces)),
			slog.Int("copied", len(res.Copied)),
			slog.Bool("dry_run", s.DryRun))
		return res, nil
	}

	builder := catalogue.NewBuilder(r.store, s.Prefix, r.logger)
	res.Entries = builder.Build(workspaces)
	if err := catalogue.Save(r.store, s.CatalogueFile, res.Entries); err != nil {
		return res, err
	}
	res.Rebuilt = true
	r.logger.Info("catalogue updated",
		slog.String("path", filepath.Join(r.store.Root(), s.CatalogueFile)),
		slog.Int("entries", len(res.Entries)))
	return res, nil
}

func (r *Runner) after(res models.RunResult, err error) {
	if r.history != nil && err == nil {
		if _, herr := r.history.Record(res); herr != nil {
			r.logger.Warn("record run failed", slog.String("error", herr.Error()))
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveRun(res, err)
	}
	for _, h := range r.hooks {
		h(res, err)
	}
}

// ListWorkspaces returns the names of the immediate subdirectories of root,
// in directory listing order.
func ListWorkspaces(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("runner: list workspaces: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(root, e.Name()))
			isDir = err == nil && info.IsDir()
		}
		if isDir {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
