package syncservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/catalogue"
	"github.com/starford/wssync/internal/history"
	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/runner"
)

// WorkspaceStatus describes one workspace as seen on both sides.
type WorkspaceStatus struct {
	Name      string    `json:"name"`
	SourceDir string    `json:"source_dir"`
	Present   bool      `json:"present"`
	Mirrored  bool      `json:"mirrored"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Service exposes catalogue reads, run history and on-demand passes to the
// HTTP and MCP surfaces.
type Service struct {
	runner  *runner.Runner
	history history.Store
	logger  *slog.Logger
}

// NewService creates a new Service. hist may be nil when history is disabled.
func NewService(r *runner.Runner, hist history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: r, history: hist, logger: logger}
}

// Catalogue returns the catalogue as last written to the target tree.
func (s *Service) Catalogue(_ context.Context) ([]models.Entry, error) {
	set := s.runner.Settings()
	return catalogue.Load(s.runner.Store(), set.CatalogueFile, s.logger)
}

// Entry returns the catalogue entry with the given id.
func (s *Service) Entry(ctx context.Context, id int) (models.Entry, error) {
	entries, err := s.Catalogue(ctx)
	if err != nil {
		return models.Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Entry{}, fmt.Errorf("entry %d: %w", id, apperr.ErrNotFound)
}

// Workspaces lists the workspaces currently present under the source root.
func (s *Service) Workspaces(_ context.Context) ([]WorkspaceStatus, error) {
	set := s.runner.Settings()
	names, err := runner.ListWorkspaces(set.SourceRoot)
	if err != nil {
		return nil, err
	}
	out := make([]WorkspaceStatus, 0, len(names))
	for _, name := range names {
		ws := WorkspaceStatus{Name: name, SourceDir: filepath.Join(set.SourceRoot, name)}
		if set.Docs != "" {
			ws.SourceDir = filepath.Join(ws.SourceDir, set.Docs)
		}
		if info, err := os.Stat(ws.SourceDir); err == nil && info.IsDir() {
			ws.Present = true
		}
		if info, err := s.runner.Store().Stat(name); err == nil && info.IsDir() {
			ws.Mirrored = true
			ws.UpdatedAt = info.ModTime()
		}
		out = append(out, ws)
	}
	return out, nil
}

// Runs returns the most recent recorded runs.
func (s *Service) Runs(_ context.Context, limit int) ([]history.Run, error) {
	if s.history == nil {
		return nil, fmt.Errorf("run history: %w", apperr.ErrDisabled)
	}
	return s.history.Recent(limit)
}

// Sync performs one pass now.
func (s *Service) Sync(ctx context.Context) (models.RunResult, error) {
	return s.runner.Run(ctx)
}
