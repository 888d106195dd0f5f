package remote

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/models"
)

// Identity resolves the signed-in user.
type Identity interface {
	CurrentUser(ctx context.Context) (string, error)
}

// Client is the remote replica of a single user's data. Every call is
// scoped to the user returned by CurrentUser.
type Client interface {
	Close() error
	CurrentUser(ctx context.Context) (string, error)

	FetchNotes(ctx context.Context) ([]models.Note, error)
	FetchNote(ctx context.Context, id string) (*models.Note, error)
	UpsertNote(ctx context.Context, note *models.Note) error
	SoftDeleteNote(ctx context.Context, id string) error

	FetchFolders(ctx context.Context) ([]models.Folder, error)
	FetchFolder(ctx context.Context, id string) (*models.Folder, error)
	UpsertFolder(ctx context.Context, folder *models.Folder) error

	FetchUserSettings(ctx context.Context) (*models.UserSettings, error)
	UpsertSettings(ctx context.Context, s *models.UserSettings) error

	InsertSyncLogEntry(ctx context.Context, e *models.SyncLogEntry) error
	RecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLogEntry, error)
}
