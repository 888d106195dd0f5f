package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/google/uuid"
)

const (
	MaxFolderNameLen = 100

	forbiddenFolderChars = `<>:"/\|?*`
)

type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// NewFolder validates name and returns a fresh folder.
func NewFolder(name, color string) (Folder, error) {
	name = strings.TrimSpace(name)
	if err := ValidateFolderName(name); err != nil {
		return Folder{}, err
	}
	now := Now()
	return Folder{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (f Folder) Key() string      { return f.ID }
func (f Folder) Stamp() Timestamp { return f.UpdatedAt }
func (f Folder) IsDeleted() bool  { return f.Deleted }

func (f *Folder) Touch(now time.Time) {
	f.UpdatedAt = touch(f.CreatedAt, now)
}

// ValidateFolderName rejects blank names, overly long names and names
// containing any of < > : " / \ | ? *.
func ValidateFolderName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", common.ErrInvalidFolderName)
	}
	if utf8.RuneCountInString(name) > MaxFolderNameLen {
		return fmt.Errorf("%w: longer than %d characters", common.ErrInvalidFolderName, MaxFolderNameLen)
	}
	if i := strings.IndexAny(name, forbiddenFolderChars); i >= 0 {
		return fmt.Errorf("%w: character %q is not allowed", common.ErrInvalidFolderName, name[i])
	}
	return nil
}
