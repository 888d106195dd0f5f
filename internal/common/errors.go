// Package common defines sentinel errors shared by the notesync client layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrStaleWrite is returned by a guarded remote upsert when the stored row
	// is newer than the record being written.
	ErrStaleWrite = errors.New("stale write")

	// Identity errors.
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")

	// Sync preconditions.
	ErrSyncDisabled   = errors.New("sync is disabled")
	ErrSyncInProgress = errors.New("sync already in progress")

	// Validation errors.
	ErrInvalidFolderName = errors.New("invalid folder name")
	ErrFolderExists      = errors.New("folder already exists")
	ErrInvalidNote       = errors.New("invalid note")
	ErrUnknownSetting    = errors.New("unknown setting")

	// Backup errors.
	ErrNoSnapshot = errors.New("no snapshot found")
)
