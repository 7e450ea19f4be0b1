package api

import (
	"time"

	"github.com/starford/wssync/internal/history"
	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/syncservice"
)

// Entry is a catalogue entry (aliased from the domain layer).
type Entry = models.Entry

// WorkspaceListResponse wraps workspace listings.
type WorkspaceListResponse struct {
	Workspaces []syncservice.WorkspaceStatus `json:"workspaces" validate:"required"`
}

// RunListResponse wraps recorded runs.
type RunListResponse struct {
	Runs []history.Run `json:"runs" validate:"required"`
}

// SyncResponse summarises an on-demand pass.
type SyncResponse struct {
	Workspaces []string           `json:"workspaces" validate:"required"`
	Copied     []models.FileEntry `json:"copied" validate:"required"`
	Rebuilt    bool               `json:"rebuilt" example:"true"`
	Duration   string             `json:"duration" example:"35ms"`
	FinishedAt time.Time          `json:"finished_at"`
}

func newSyncResponse(res models.RunResult) SyncResponse {
	ws := res.Workspaces
	if ws == nil {
		ws = []string{}
	}
	copied := res.Copied
	if copied == nil {
		copied = []models.FileEntry{}
	}
	return SyncResponse{
		Workspaces: ws,
		Copied:     copied,
		Rebuilt:    res.Rebuilt,
		Duration:   res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
		FinishedAt: res.FinishedAt,
	}
}
