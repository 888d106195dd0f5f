package settings

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Upsert(ctx context.Context, userID string, s *models.UserSettings) error
}
