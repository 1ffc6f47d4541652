package records

import "errors"

// Error kinds surfaced by the store. Every failure wraps exactly one of them;
// match with errors.Is. The store never retries.
var (
	// ErrStorageUnavailable means this binary cannot run the embedded database at all.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConnection means opening or upgrading the database failed; callers may retry.
	ErrConnection = errors.New("connection error")
	// ErrWrite means an add, update, delete or restore was rejected and had no effect.
	ErrWrite = errors.New("write error")
	// ErrInvalidBackup means a snapshot failed validation before anything was written.
	ErrInvalidBackup = errors.New("invalid backup")
	// ErrQuery means a query named an unknown collection or index, or misused one.
	ErrQuery = errors.New("query error")
)
