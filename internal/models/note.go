// Package models defines the synchronized entities (notes, folders, user
// settings), the sync audit record and the result returned to callers.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/google/uuid"
)

// Note is a user note. Deleted notes stay in the collection (trash) until
// they are purged.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FolderID  *string   `json:"folder_id"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

func NewNote(title, content string, folderID *string) Note {
	now := Now()
	return Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		FolderID:  folderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n Note) Key() string      { return n.ID }
func (n Note) Stamp() Timestamp { return n.UpdatedAt }
func (n Note) IsDeleted() bool  { return n.Deleted }

// Touch refreshes UpdatedAt, never moving it before CreatedAt.
func (n *Note) Touch(now time.Time) {
	n.UpdatedAt = touch(n.CreatedAt, now)
}

func (n Note) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: empty id", common.ErrInvalidNote)
	}
	if n.CreatedAt.Valid() && n.UpdatedAt.Valid() && n.UpdatedAt.Before(n.CreatedAt) {
		return fmt.Errorf("%w: updated_at before created_at", common.ErrInvalidNote)
	}
	return nil
}

func touch(created Timestamp, now time.Time) Timestamp {
	ts := TimestampOf(now)
	if created.Valid() && ts.Before(created) {
		return TimestampOf(created.Time())
	}
	return ts
}
