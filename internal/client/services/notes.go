package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/remote"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
)

// NotePatch lists the fields to change; nil leaves a field as it is.
type NotePatch struct {
	Title       *string
	Content     *string
	FolderID    *string
	ClearFolder bool
}

// NoteService edits the local replica. Every mutation refreshes updated_at
// so the next sync pass carries it to the server.
type NoteService interface {
	CreateNote(ctx context.Context, title, content string, folderID *string) (models.Note, error)
	UpdateNote(ctx context.Context, id string, patch NotePatch) (models.Note, error)
	TrashNote(ctx context.Context, id string) error
	RestoreNote(ctx context.Context, id string) error
	PurgeNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, includeDeleted bool) ([]models.Note, error)

	CreateFolder(ctx context.Context, name, color string) (models.Folder, error)
	RenameFolder(ctx context.Context, id, name string) (models.Folder, error)
	TrashFolder(ctx context.Context, id string) error
	ListFolders(ctx context.Context) ([]models.Folder, error)

	Settings(ctx context.Context) (models.UserSettings, error)
	UpdateSettings(ctx context.Context, key, value string) (models.UserSettings, error)
}

type noteService struct {
	local  LocalStore
	remote remote.Client
	log    logging.Logger
	now    func() time.Time
}

// NewNoteService builds the editing service. client may be nil when no
// backend is configured; purges and settings changes then stay local.
func NewNoteService(local LocalStore, client remote.Client, log logging.Logger) NoteService {
	return &noteService{local: local, remote: client, log: log, now: time.Now}
}

func (s *noteService) CreateNote(ctx context.Context, title, content string, folderID *string) (models.Note, error) {
	if folderID != nil {
		if err := s.requireFolder(ctx, *folderID); err != nil {
			return models.Note{}, err
		}
	}

	notes, err := s.local.Notes(ctx)
	if err != nil {
		return models.Note{}, fmt.Errorf("error retrieving notes: %w", err)
	}

	n := models.NewNote(title, content, folderID)
	if err := s.local.SaveNotes(ctx, append(notes, n)); err != nil {
		return models.Note{}, fmt.Errorf("saving error: %w", err)
	}
	return n, nil
}

func (s *noteService) UpdateNote(ctx context.Context, id string, patch NotePatch) (models.Note, error) {
	if patch.FolderID != nil {
		if err := s.requireFolder(ctx, *patch.FolderID); err != nil {
			return models.Note{}, err
		}
	}

	var out models.Note
	err := s.mutateNote(ctx, id, func(n *models.Note) error {
		if patch.Title != nil {
			n.Title = *patch.Title
		}
		if patch.Content != nil {
			n.Content = *patch.Content
		}
		switch {
		case patch.ClearFolder:
			n.FolderID = nil
		case patch.FolderID != nil:
			n.FolderID = patch.FolderID
		}
		out = *n
		return nil
	})
	return out, err
}

func (s *noteService) TrashNote(ctx context.Context, id string) error {
	return s.mutateNote(ctx, id, func(n *models.Note) error {
		n.Deleted = true
		return nil
	})
}

func (s *noteService) RestoreNote(ctx context.Context, id string) error {
	return s.mutateNote(ctx, id, func(n *models.Note) error {
		n.Deleted = false
		return nil
	})
}

// PurgeNote removes the note from this device and soft-deletes it on the
// server. When the server cannot be reached the note is trashed instead, so
// the next sync pass carries the deletion.
func (s *noteService) PurgeNote(ctx context.Context, id string) error {
	if s.remote != nil {
		err := s.remote.SoftDeleteNote(ctx, id)
		if err == nil || errors.Is(err, common.ErrNotFound) {
			return s.removeNote(ctx, id)
		}
		s.log.Warn(ctx, "server delete failed, trashing locally", "id", id, "error", err)
	}
	return s.TrashNote(ctx, id)
}

func (s *noteService) ListNotes(ctx context.Context, includeDeleted bool) ([]models.Note, error) {
	notes, err := s.local.Notes(ctx)
	if err != nil {
		return nil, fmt.Errorf("error retrieving notes: %w", err)
	}
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if includeDeleted || !n.Deleted {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Note) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

func (s *noteService) CreateFolder(ctx context.Context, name, color string) (models.Folder, error) {
	f, err := models.NewFolder(name, color)
	if err != nil {
		return models.Folder{}, err
	}

	folders, err := s.local.Folders(ctx)
	if err != nil {
		return models.Folder{}, fmt.Errorf("error retrieving folders: %w", err)
	}
	if nameTaken(folders, f.Name, "") {
		return models.Folder{}, fmt.Errorf("%w: %s", common.ErrFolderExists, f.Name)
	}

	if err := s.local.SaveFolders(ctx, append(folders, f)); err != nil {
		return models.Folder{}, fmt.Errorf("saving error: %w", err)
	}
	return f, nil
}

func (s *noteService) RenameFolder(ctx context.Context, id, name string) (models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := models.ValidateFolderName(name); err != nil {
		return models.Folder{}, err
	}

	folders, err := s.local.Folders(ctx)
	if err != nil {
		return models.Folder{}, fmt.Errorf("error retrieving folders: %w", err)
	}
	i := slices.IndexFunc(folders, func(f models.Folder) bool { return f.ID == id && !f.Deleted })
	if i < 0 {
		return models.Folder{}, fmt.Errorf("folder %s: %w", id, common.ErrNotFound)
	}
	if nameTaken(folders, name, id) {
		return models.Folder{}, fmt.Errorf("%w: %s", common.ErrFolderExists, name)
	}

	folders[i].Name = name
	folders[i].Touch(s.now())
	if err := s.local.SaveFolders(ctx, folders); err != nil {
		return models.Folder{}, fmt.Errorf("saving error: %w", err)
	}
	return folders[i], nil
}

// TrashFolder soft-deletes the folder and moves its notes out of it.
func (s *noteService) TrashFolder(ctx context.Context, id string) error {
	folders, err := s.local.Folders(ctx)
	if err != nil {
		return fmt.Errorf("error retrieving folders: %w", err)
	}
	i := slices.IndexFunc(folders, func(f models.Folder) bool { return f.ID == id && !f.Deleted })
	if i < 0 {
		return fmt.Errorf("folder %s: %w", id, common.ErrNotFound)
	}
	folders[i].Deleted = true
	folders[i].Touch(s.now())
	if err := s.local.SaveFolders(ctx, folders); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}

	notes, err := s.local.Notes(ctx)
	if err != nil {
		return fmt.Errorf("error retrieving notes: %w", err)
	}
	moved := false
	for j := range notes {
		if notes[j].FolderID != nil && *notes[j].FolderID == id {
			notes[j].FolderID = nil
			notes[j].Touch(s.now())
			moved = true
		}
	}
	if !moved {
		return nil
	}
	if err := s.local.SaveNotes(ctx, notes); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return nil
}

func (s *noteService) ListFolders(ctx context.Context) ([]models.Folder, error) {
	folders, err := s.local.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("error retrieving folders: %w", err)
	}
	out := make([]models.Folder, 0, len(folders))
	for _, f := range folders {
		if !f.Deleted {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Folder) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// Settings returns the local settings, or the defaults on a fresh install.
func (s *noteService) Settings(ctx context.Context) (models.UserSettings, error) {
	cur, err := s.local.Settings(ctx)
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("error retrieving settings: %w", err)
	}
	if cur == nil {
		return models.DefaultSettings(), nil
	}
	return *cur, nil
}

// UpdateSettings changes one setting locally and, when a backend is
// configured, pushes the record so the change survives the next pass in
// which the server copy wins.
func (s *noteService) UpdateSettings(ctx context.Context, key, value string) (models.UserSettings, error) {
	cur, err := s.Settings(ctx)
	if err != nil {
		return models.UserSettings{}, err
	}
	if err := cur.Set(key, value); err != nil {
		return models.UserSettings{}, err
	}
	cur.UpdatedAt = models.TimestampOf(s.now())

	if s.remote != nil && cur.SyncIsEnabled() {
		pushed := cur
		if err := s.remote.UpsertSettings(ctx, &pushed); err != nil {
			s.log.Warn(ctx, "settings kept local, server update failed", "key", key, "error", err)
		} else {
			cur = pushed
		}
	}

	if err := s.local.SaveSettings(ctx, &cur); err != nil {
		return models.UserSettings{}, fmt.Errorf("saving error: %w", err)
	}
	return cur, nil
}

func (s *noteService) mutateNote(ctx context.Context, id string, fn func(*models.Note) error) error {
	notes, err := s.local.Notes(ctx)
	if err != nil {
		return fmt.Errorf("error retrieving notes: %w", err)
	}
	i := slices.IndexFunc(notes, func(n models.Note) bool { return n.ID == id })
	if i < 0 {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if err := fn(&notes[i]); err != nil {
		return err
	}
	notes[i].Touch(s.now())
	if err := s.local.SaveNotes(ctx, notes); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return nil
}

func (s *noteService) removeNote(ctx context.Context, id string) error {
	notes, err := s.local.Notes(ctx)
	if err != nil {
		return fmt.Errorf("error retrieving notes: %w", err)
	}
	out := slices.DeleteFunc(notes, func(n models.Note) bool { return n.ID == id })
	if err := s.local.SaveNotes(ctx, out); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return nil
}

func (s *noteService) requireFolder(ctx context.Context, id string) error {
	folders, err := s.local.Folders(ctx)
	if err != nil {
		return fmt.Errorf("error retrieving folders: %w", err)
	}
	if !slices.ContainsFunc(folders, func(f models.Folder) bool { return f.ID == id && !f.Deleted }) {
		return fmt.Errorf("folder %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func nameTaken(folders []models.Folder, name, exceptID string) bool {
	return slices.ContainsFunc(folders, func(f models.Folder) bool {
		return !f.Deleted && f.ID != exceptID && strings.EqualFold(f.Name, name)
	})
}
