package models

import "time"

// RunResult summarises one synchronization pass.
type RunResult struct {
	Workspaces []string    `json:"workspaces"`
	Copied     []FileEntry `json:"copied"`
	Rebuilt    bool        `json:"rebuilt"`
	DryRun     bool        `json:"dry_run"`
	Entries    []Entry     `json:"entries,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// AnyCopied reports whether at least one file was copied.
func (r RunResult) AnyCopied() bool {
	return len(r.Copied) > 0
}
