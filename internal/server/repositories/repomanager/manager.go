package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/folders"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/settings"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/synclogs"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Notes(db dbx.DBTX) notes.Repository
	Folders(db dbx.DBTX) folders.Repository
	Settings(db dbx.DBTX) settings.Repository
	SyncLogs(db dbx.DBTX) synclogs.Repository
}
