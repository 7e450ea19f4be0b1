package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/wssync/internal/checksum"
	"github.com/starford/wssync/internal/models"
)

// Run is one row of the runs table.
type Run struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Workspaces int       `json:"workspaces"`
	Copied     int       `json:"copied"`
	Rebuilt    bool      `json:"rebuilt"`
	DryRun     bool      `json:"dry_run"`
}

// Copy is one row of the copies table.
type Copy struct {
	Workspace string    `json:"workspace"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Checksum  string    `json:"checksum"`
}

// Record stores a finished run and its copied files within a transaction.
// The digest of each copied file is taken from its destination for audit;
// it plays no part in deciding what gets copied.
func (db *DB) Record(res models.RunResult) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	r, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, workspaces, copied, rebuilt, dry_run)
		VALUES (?, ?, ?, ?, ?, ?)
	`, res.StartedAt.UTC(), res.FinishedAt.UTC(), len(res.Workspaces), len(res.Copied), res.Rebuilt, res.DryRun)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}

	if len(res.Copied) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO copies (run_id, workspace, path, size, mod_time, checksum) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("history: prepare copy insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range res.Copied {
			sum := ""
			if !res.DryRun {
				var err error
				if sum, err = checksum.SumFile(c.Dest); err != nil {
					db.logger.Debug("history: checksum failed, recording empty digest",
						slog.String("path", c.Dest),
						slog.String("error", err.Error()))
				}
			}
			if _, err := stmt.Exec(runID, c.Workspace, c.Path, c.Size, c.ModTime.UTC(), sum); err != nil {
				return 0, fmt.Errorf("history: insert copy: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return runID, nil
}

// Recent returns the latest runs, newest first.
func (db *DB) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, workspaces, copied, rebuilt, dry_run
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Workspaces, &r.Copied, &r.Rebuilt, &r.DryRun); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Copies returns the files copied by run id.
func (db *DB) Copies(runID int64) ([]Copy, error) {
	rows, err := db.conn.Query(`
		SELECT workspace, path, size, mod_time, checksum
		FROM copies WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: copies: %w", err)
	}
	defer rows.Close()

	out := []Copy{}
	for rows.Next() {
		var c Copy
		if err := rows.Scan(&c.Workspace, &c.Path, &c.Size, &c.ModTime, &c.Checksum); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
