// Package settings stores the per-user settings document as JSONB, one row
// per user identity.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns (nil, nil) when the user has no settings row yet.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	var (
		doc     []byte
		updated models.Timestamp
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT settings, updated_at FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&doc, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	var s models.UserSettings
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.UserID = userID
	s.UpdatedAt = updated
	return &s, nil
}

// Upsert replaces the user's settings document and stamps updated_at.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, s *models.UserSettings) error {
	doc := *s
	doc.UserID = ""
	doc.UpdatedAt = models.Timestamp{}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	var updated models.Timestamp
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, settings, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, userID, payload).Scan(&updated)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	s.UserID = userID
	s.UpdatedAt = updated
	return nil
}
