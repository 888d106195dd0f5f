// Package collections is the typed face of the local store: it maps each
// synchronized collection and scalar onto a fixed kv key and (de)serializes
// it as JSON.
//
// Reads are forgiving. A missing or undecodable blob reads as an empty
// collection (or nil settings) and a warning is logged; only a failure of the
// database itself is returned as an error.
package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/repositories/kv"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
)

const (
	KeyNotes    = "@notesync/notes"
	KeyFolders  = "@notesync/folders"
	KeySettings = "@notesync/settings"
	KeyLastSync = "@notesync/last_sync"
	KeySession  = "@notesync/session"
)

type Store struct {
	kv  kv.Repository
	log logging.Logger
}

func New(repo kv.Repository, log logging.Logger) *Store {
	return &Store{kv: repo, log: log}
}

func (s *Store) Notes(ctx context.Context) ([]models.Note, error) {
	return getList[models.Note](ctx, s, KeyNotes)
}

func (s *Store) SaveNotes(ctx context.Context, notes []models.Note) error {
	return setList(ctx, s, KeyNotes, notes)
}

func (s *Store) Folders(ctx context.Context) ([]models.Folder, error) {
	return getList[models.Folder](ctx, s, KeyFolders)
}

func (s *Store) SaveFolders(ctx context.Context, folders []models.Folder) error {
	return setList(ctx, s, KeyFolders, folders)
}

// Settings returns nil when no settings were ever saved.
func (s *Store) Settings(ctx context.Context) (*models.UserSettings, error) {
	data, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out models.UserSettings
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn(ctx, "discarding unreadable local blob", "key", KeySettings, "error", err)
		return nil, nil
	}
	return &out, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.UserSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", KeySettings, err)
	}
	return s.kv.Set(ctx, KeySettings, data)
}

// LastSync returns the time of the last successful sync and whether one
// happened at all.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	data, err := s.kv.Get(ctx, KeyLastSync)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(data) == 0 {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		s.log.Warn(ctx, "discarding unreadable local blob", "key", KeyLastSync, "error", err)
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	return s.kv.Set(ctx, KeyLastSync, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// Metadata combines the last-sync time with the sync-enabled flag of the
// local settings.
func (s *Store) Metadata(ctx context.Context) (models.SyncMetadata, error) {
	last, ok, err := s.LastSync(ctx)
	if err != nil {
		return models.SyncMetadata{}, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return models.SyncMetadata{}, err
	}
	return models.SyncMetadata{LastSyncAt: last, HasSynced: ok, SyncEnabled: settings.SyncIsEnabled()}, nil
}

// SessionToken returns the stored access token or "".
func (s *Store) SessionToken(ctx context.Context) (string, error) {
	data, err := s.kv.Get(ctx, KeySession)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) SetSessionToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, KeySession, []byte(token))
}

func (s *Store) ClearSession(ctx context.Context) error {
	return s.kv.Delete(ctx, KeySession)
}

func getList[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn(ctx, "discarding unreadable local blob", "key", key, "error", err)
		return []T{}, nil
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func setList[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}
