// Package synclogs keeps the append-only audit trail of sync passes.
package synclogs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert assigns an id when the entry has none and fills CreatedAt from the
// database clock.
func (r *PostgresRepository) Insert(ctx context.Context, e *models.SyncLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var errMsg any
	if e.ErrorMessage != "" {
		errMsg = e.ErrorMessage
	}

	var created models.Timestamp
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sync_logs (id, user_id, sync_type, status, notes_count, conflicts_resolved, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING created_at
	`, e.ID, e.UserID, string(e.SyncType), string(e.Status), e.NotesCount, e.ConflictsResolved, errMsg, e.DurationMs,
	).Scan(&created)
	if err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}
	e.CreatedAt = created
	return nil
}

// ListRecent returns the newest entries of a user first.
func (r *PostgresRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, sync_type, status, notes_count, conflicts_resolved, COALESCE(error_message, ''), duration_ms, created_at
		FROM sync_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	items := make([]models.SyncLogEntry, 0)
	for rows.Next() {
		var (
			e          models.SyncLogEntry
			typ, state string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &state, &e.NotesCount, &e.ConflictsResolved,
			&e.ErrorMessage, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		e.SyncType = models.SyncType(typ)
		e.Status = models.SyncStatus(state)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return items, nil
}
