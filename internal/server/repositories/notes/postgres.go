// Package notes provides the PostgreSQL-backed repository of the
// authoritative note replica.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/models"
)

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const noteColumns = `id, title, content, folder_id, created_at, updated_at, deleted`

// SelectActive returns the user's non-deleted notes, most recently updated first.
func (r *PostgresRepository) SelectActive(ctx context.Context, userID string) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes
		WHERE user_id = $1 AND NOT deleted
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	result := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	return result, nil
}

// Get returns one note, deleted or not, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND user_id = $2`

	n, err := scanNote(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &n, nil
}

// Upsert writes note for userID and stamps updated_at with the server clock.
// An existing row is only replaced when it belongs to the same user and is
// not newer than note.UpdatedAt; otherwise common.ErrStaleWrite is returned
// and note is left unchanged. On success note carries the stored timestamps.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, note *models.Note) error {
	query := `
		INSERT INTO notes (id, user_id, title, content, folder_id, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), now(), $7)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			folder_id = EXCLUDED.folder_id,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
			WHERE notes.user_id = EXCLUDED.user_id AND notes.updated_at <= $8
		RETURNING created_at, updated_at
	`
	var created, updated models.Timestamp
	err := r.db.QueryRowContext(ctx, query,
		note.ID, userID, note.Title, note.Content, nullString(note.FolderID), note.CreatedAt, note.Deleted, note.UpdatedAt,
	).Scan(&created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrStaleWrite
		}
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	note.CreatedAt, note.UpdatedAt = created, updated
	return nil
}

// SoftDelete marks the note deleted and bumps updated_at.
func (r *PostgresRepository) SoftDelete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET deleted = TRUE, updated_at = now() WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var n models.Note
	var folder sql.NullString
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &folder, &n.CreatedAt, &n.UpdatedAt, &n.Deleted); err != nil {
		return models.Note{}, err
	}
	if folder.Valid {
		n.FolderID = &folder.String
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
