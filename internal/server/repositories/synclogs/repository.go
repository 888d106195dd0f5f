package synclogs

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, e *models.SyncLogEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error)
}
