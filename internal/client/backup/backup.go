// Package backup stores point-in-time snapshots of the local replica in an
// S3-compatible bucket and merges them back on restore.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/merge"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/cryptox"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/google/uuid"
)

const snapshotVersion = 1

// ErrPassphraseRequired is returned when restoring an encrypted snapshot
// without a passphrase.
var ErrPassphraseRequired = errors.New("backup passphrase required")

// Snapshot is the JSON document written per backup.
type Snapshot struct {
	Version   int                  `json:"version"`
	UserID    string               `json:"user_id"`
	CreatedAt time.Time            `json:"created_at"`
	Notes     []models.Note        `json:"notes"`
	Folders   []models.Folder      `json:"folders"`
	Settings  *models.UserSettings `json:"settings,omitempty"`
}

type LocalStore interface {
	Notes(ctx context.Context) ([]models.Note, error)
	SaveNotes(ctx context.Context, notes []models.Note) error
	Folders(ctx context.Context) ([]models.Folder, error)
	SaveFolders(ctx context.Context, folders []models.Folder) error
	Settings(ctx context.Context) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, s *models.UserSettings) error
}

type Identity interface {
	CurrentUser(ctx context.Context) (string, error)
}

// RestoreResult describes what a restore changed.
type RestoreResult struct {
	Key       string
	Notes     int
	Folders   int
	Conflicts int
}

type Service struct {
	local      LocalStore
	store      ObjectStore
	identity   Identity
	log        logging.Logger
	now        func() time.Time
	passphrase []byte
}

type Option func(*Service)

// WithPassphrase seals uploaded snapshots and opens sealed ones on restore.
func WithPassphrase(p string) Option {
	return func(s *Service) {
		if p != "" {
			s.passphrase = []byte(p)
		}
	}
}

func NewService(local LocalStore, store ObjectStore, identity Identity, log logging.Logger, opts ...Option) *Service {
	s := &Service{local: local, store: store, identity: identity, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SnapshotPrefix is where the snapshots of a user live.
func SnapshotPrefix(userID string) string {
	return fmt.Sprintf("users/%s/snapshots/", userID)
}

// snapshotKey uses a time-ordered UUID so the newest snapshot sorts last.
func snapshotKey(userID string, t time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	t = t.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s.json", SnapshotPrefix(userID), t.Year(), t.Month(), t.Day(), id), nil
}

// Push uploads the whole local replica and returns the object key.
func (s *Service) Push(ctx context.Context) (string, error) {
	uid, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	snap := Snapshot{Version: snapshotVersion, UserID: uid, CreatedAt: s.now().UTC()}
	if snap.Notes, err = s.local.Notes(ctx); err != nil {
		return "", err
	}
	if snap.Folders, err = s.local.Folders(ctx); err != nil {
		return "", err
	}
	if snap.Settings, err = s.local.Settings(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if s.passphrase != nil {
		if body, err = cryptox.Seal(body, s.passphrase); err != nil {
			return "", fmt.Errorf("failed to encrypt snapshot: %w", err)
		}
	}
	key, err := snapshotKey(uid, snap.CreatedAt)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, key, body); err != nil {
		return "", err
	}

	s.log.Info(ctx, "snapshot uploaded", "key", key, "notes", len(snap.Notes), "folders", len(snap.Folders))
	return key, nil
}

// Restore merges the newest snapshot into the local replica. The snapshot
// plays the remote side of the merge, so local records newer than the
// snapshot survive and nothing local is dropped.
func (s *Service) Restore(ctx context.Context) (RestoreResult, error) {
	uid, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return RestoreResult{}, err
	}

	keys, err := s.store.List(ctx, SnapshotPrefix(uid))
	if err != nil {
		return RestoreResult{}, err
	}
	if len(keys) == 0 {
		return RestoreResult{}, common.ErrNoSnapshot
	}
	key := slices.Max(keys)

	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return RestoreResult{}, fmt.Errorf("%w: %w", common.ErrNoSnapshot, err)
		}
		return RestoreResult{}, err
	}
	if cryptox.IsSealed(body) {
		if s.passphrase == nil {
			return RestoreResult{}, fmt.Errorf("snapshot %s is encrypted: %w", key, ErrPassphraseRequired)
		}
		if body, err = cryptox.Open(body, s.passphrase); err != nil {
			return RestoreResult{}, fmt.Errorf("snapshot %s: %w", key, err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return RestoreResult{}, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	if snap.UserID != "" && snap.UserID != uid {
		return RestoreResult{}, fmt.Errorf("snapshot %s belongs to another user", key)
	}

	res := RestoreResult{Key: key}

	notes, err := s.local.Notes(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	mn := merge.Collection(notes, snap.Notes)
	if err := s.local.SaveNotes(ctx, mn.Merged); err != nil {
		return RestoreResult{}, err
	}

	folders, err := s.local.Folders(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	mf := merge.Collection(folders, snap.Folders)
	if err := s.local.SaveFolders(ctx, mf.Merged); err != nil {
		return RestoreResult{}, err
	}

	settings, err := s.local.Settings(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	if settings == nil && snap.Settings != nil {
		if err := s.local.SaveSettings(ctx, snap.Settings); err != nil {
			return RestoreResult{}, err
		}
	}

	res.Notes, res.Folders = len(mn.Merged), len(mf.Merged)
	res.Conflicts = mn.Conflicts + mf.Conflicts
	s.log.Info(ctx, "snapshot restored", "key", key, "notes", res.Notes, "folders", res.Folders)
	return res, nil
}
