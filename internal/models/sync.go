package models

import "time"

type SyncType string

const (
	SyncTypeFull SyncType = "full"
	SyncTypeAuto SyncType = "auto"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncLogEntry is an append-only audit record of one sync pass.
type SyncLogEntry struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	SyncType          SyncType   `json:"sync_type"`
	Status            SyncStatus `json:"status"`
	NotesCount        int        `json:"notes_count"`
	ConflictsResolved int        `json:"conflicts_resolved"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	DurationMs        int64      `json:"duration_ms"`
	CreatedAt         Timestamp  `json:"created_at"`
}

// SyncMetadata is the process-local sync state.
type SyncMetadata struct {
	LastSyncAt  time.Time
	HasSynced   bool
	SyncEnabled bool
}

// Due reports whether a sync is warranted at now for the given interval.
func (m SyncMetadata) Due(now time.Time, interval time.Duration) bool {
	return !m.HasSynced || now.Sub(m.LastSyncAt) > interval
}

// SyncResult is the only thing a sync caller ever receives.
type SyncResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	NotesCount        int    `json:"notes_count,omitempty"`
	FoldersCount      int    `json:"folders_count,omitempty"`
	ConflictsResolved int    `json:"conflicts_resolved,omitempty"`
	TrueConflicts     int    `json:"true_conflicts,omitempty"`
	SyncDurationMs    int64  `json:"sync_duration_ms,omitempty"`
}
