package history

import "github.com/starford/wssync/internal/models"

// Store defines the run history operations used by the rest of the app.
type Store interface {
	Record(res models.RunResult) (int64, error)
	Recent(limit int) ([]Run, error)
	Copies(runID int64) ([]Copy, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
