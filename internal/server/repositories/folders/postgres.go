// Package folders provides the PostgreSQL-backed repository of the
// authoritative folder replica.
package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const folderColumns = `id, name, color, created_at, updated_at, deleted`

func (r *PostgresRepository) SelectActive(ctx context.Context, userID string) ([]models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE user_id = $1 AND NOT deleted
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	result := []models.Folder{}
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.Color, &f.CreatedAt, &f.UpdatedAt, &f.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Folder, error) {
	var f models.Folder
	err := r.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&f.ID, &f.Name, &f.Color, &f.CreatedAt, &f.UpdatedAt, &f.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &f, nil
}

// Upsert follows the same guard as notes: an existing row is replaced only
// when it is owned by userID and not newer than folder.UpdatedAt.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, folder *models.Folder) error {
	query := `
		INSERT INTO folders (id, user_id, name, color, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), now(), $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
			WHERE folders.user_id = EXCLUDED.user_id AND folders.updated_at <= $7
		RETURNING created_at, updated_at
	`
	var created, updated models.Timestamp
	err := r.db.QueryRowContext(ctx, query,
		folder.ID, userID, folder.Name, folder.Color, folder.CreatedAt, folder.Deleted, folder.UpdatedAt,
	).Scan(&created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrStaleWrite
		}
		return fmt.Errorf("failed to upsert folder: %w", err)
	}
	folder.CreatedAt, folder.UpdatedAt = created, updated
	return nil
}
