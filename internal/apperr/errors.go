package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrWorkspaceMissing = errors.New("workspace missing")
	ErrMissingAsset     = errors.New("missing required file")
	ErrLocked           = errors.New("another run holds the lock")
	ErrDisabled         = errors.New("feature disabled")
)
