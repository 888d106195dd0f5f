package notes

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/models"
)

type Repository interface {
	SelectActive(ctx context.Context, userID string) ([]models.Note, error)
	Get(ctx context.Context, userID, id string) (*models.Note, error)
	Upsert(ctx context.Context, userID string, note *models.Note) error
	SoftDelete(ctx context.Context, userID, id string) error
}
