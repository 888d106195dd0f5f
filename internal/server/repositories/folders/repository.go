package folders

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/models"
)

type Repository interface {
	SelectActive(ctx context.Context, userID string) ([]models.Folder, error)
	Get(ctx context.Context, userID, id string) (*models.Folder, error)
	Upsert(ctx context.Context, userID string, folder *models.Folder) error
}
