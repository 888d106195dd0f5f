package backup

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, body []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = slices.Clone(body)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return b, nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

type memLocal struct {
	notes    []models.Note
	folders  []models.Folder
	settings *models.UserSettings
}

func (l *memLocal) Notes(context.Context) ([]models.Note, error) { return slices.Clone(l.notes), nil }
func (l *memLocal) SaveNotes(_ context.Context, n []models.Note) error {
	l.notes = slices.Clone(n)
	return nil
}
func (l *memLocal) Folders(context.Context) ([]models.Folder, error) {
	return slices.Clone(l.folders), nil
}
func (l *memLocal) SaveFolders(_ context.Context, f []models.Folder) error {
	l.folders = slices.Clone(f)
	return nil
}
func (l *memLocal) Settings(context.Context) (*models.UserSettings, error) { return l.settings, nil }
func (l *memLocal) SaveSettings(_ context.Context, s *models.UserSettings) error {
	l.settings = s
	return nil
}

type staticIdentity struct {
	uid string
	err error
}

func (s staticIdentity) CurrentUser(context.Context) (string, error) { return s.uid, s.err }

func ts(minute int) models.Timestamp {
	return models.TimestampOf(time.Date(2024, 5, 1, 12, minute, 0, 0, time.UTC))
}

func newTestService(local *memLocal, store ObjectStore) *Service {
	s := NewService(local, store, staticIdentity{uid: "u1"}, logging.Nop())
	s.now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestPush_WritesSnapshotUnderUserPrefix(t *testing.T) {
	local := &memLocal{
		notes:   []models.Note{{ID: "n1", Title: "a", UpdatedAt: ts(1)}},
		folders: []models.Folder{{ID: "f1", Name: "work", UpdatedAt: ts(1)}},
	}
	store := newMemStore()
	svc := newTestService(local, store)

	key, err := svc.Push(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "users/u1/snapshots/2025/03/07/"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(store.objects[key], &snap))
	assert.Equal(t, snapshotVersion, snap.Version)
	assert.Equal(t, "u1", snap.UserID)
	require.Len(t, snap.Notes, 1)
	assert.Equal(t, "n1", snap.Notes[0].ID)
	require.Len(t, snap.Folders, 1)
	assert.Nil(t, snap.Settings)
}

func TestPush_Unauthenticated(t *testing.T) {
	svc := NewService(&memLocal{}, newMemStore(), staticIdentity{err: common.ErrUnauthenticated}, logging.Nop())
	_, err := svc.Push(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestPush_StoreError(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("bucket gone")
	svc := newTestService(&memLocal{}, store)

	_, err := svc.Push(context.Background())
	assert.ErrorContains(t, err, "bucket gone")
}

func TestRestore_NoSnapshot(t *testing.T) {
	svc := newTestService(&memLocal{}, newMemStore())
	_, err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, common.ErrNoSnapshot)
}

func TestRestore_MergesNewestSnapshotWithoutDroppingLocal(t *testing.T) {
	store := newMemStore()
	older := Snapshot{Version: 1, UserID: "u1", Notes: []models.Note{{ID: "old", UpdatedAt: ts(1)}}}
	newer := Snapshot{
		Version: 1,
		UserID:  "u1",
		Notes: []models.Note{
			{ID: "n1", Content: "snapshot", UpdatedAt: ts(5)},
			{ID: "n2", Content: "snapshot", UpdatedAt: ts(5)},
		},
		Settings: &models.UserSettings{SyncEnabled: new(bool)},
	}
	put := func(key string, s Snapshot) {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		store.objects[key] = b
	}
	put("users/u1/snapshots/2025/01/01/0190a000-0000-7000-8000-000000000000.json", older)
	put("users/u1/snapshots/2025/02/01/0190b000-0000-7000-8000-000000000000.json", newer)
	put("users/u2/snapshots/2026/01/01/0190c000-0000-7000-8000-000000000000.json", older)

	local := &memLocal{notes: []models.Note{
		{ID: "n1", Content: "local newer", UpdatedAt: ts(9)},
		{ID: "n2", Content: "local older", UpdatedAt: ts(2)},
		{ID: "n3", Content: "local only", UpdatedAt: ts(3)},
	}}
	svc := newTestService(local, store)

	res, err := svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "users/u1/snapshots/2025/02/01/0190b000-0000-7000-8000-000000000000.json", res.Key)
	assert.Equal(t, 3, res.Notes)

	byID := map[string]string{}
	for _, n := range local.notes {
		byID[n.ID] = n.Content
	}
	assert.Equal(t, map[string]string{
		"n1": "local newer",
		"n2": "snapshot",
		"n3": "local only",
	}, byID)
	require.NotNil(t, local.settings)
}

func TestRestore_KeepsExistingSettings(t *testing.T) {
	store := newMemStore()
	b, err := json.Marshal(Snapshot{Version: 1, UserID: "u1", Settings: &models.UserSettings{}})
	require.NoError(t, err)
	store.objects["users/u1/snapshots/2025/01/01/a.json"] = b

	enabled := true
	local := &memLocal{settings: &models.UserSettings{SyncEnabled: &enabled}}
	svc := newTestService(local, store)

	_, err = svc.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, local.settings.SyncEnabled)
	assert.True(t, *local.settings.SyncEnabled)
}

func TestRestore_CorruptSnapshot(t *testing.T) {
	store := newMemStore()
	store.objects["users/u1/snapshots/2025/01/01/a.json"] = []byte("{not json")
	svc := newTestService(&memLocal{}, store)

	_, err := svc.Restore(context.Background())
	assert.ErrorContains(t, err, "failed to decode snapshot")
}

func TestSnapshotKey_SortsByTime(t *testing.T) {
	day := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	a, err := snapshotKey("u1", day)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := snapshotKey("u1", day)
	require.NoError(t, err)
	assert.Less(t, a, b)
}

func TestPushRestore_Encrypted(t *testing.T) {
	store := newMemStore()
	src := &memLocal{notes: []models.Note{{ID: "secret-note", Content: "pin 1234", UpdatedAt: ts(1)}}}
	pusher := NewService(src, store, staticIdentity{uid: "u1"}, logging.Nop(), WithPassphrase("hunter2"))

	key, err := pusher.Push(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, string(store.objects[key]), "pin 1234")

	dst := &memLocal{}
	_, err = NewService(dst, store, staticIdentity{uid: "u1"}, logging.Nop()).Restore(context.Background())
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = NewService(dst, store, staticIdentity{uid: "u1"}, logging.Nop(), WithPassphrase("wrong")).
		Restore(context.Background())
	assert.Error(t, err)
	assert.Empty(t, dst.notes)

	res, err := NewService(dst, store, staticIdentity{uid: "u1"}, logging.Nop(), WithPassphrase("hunter2")).
		Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notes)
	require.Len(t, dst.notes, 1)
	assert.Equal(t, "pin 1234", dst.notes[0].Content)
}
