package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/remote"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/models"
)

/*************
 * In-memory remote replica
 *************/

// memRemote behaves like the Postgres backend: fetches skip deleted rows and
// return newest first, upserts are guarded and stamped with the server clock,
// and active folder names are unique per user.
type memRemote struct {
	remote.Client

	mu      sync.Mutex
	uid     string
	authErr error
	clock   time.Time

	notes    []models.Note
	folders  []models.Folder
	settings *models.UserSettings
	logs     []models.SyncLogEntry

	fetchNotesErr     error
	fetchFoldersErr   error
	fetchSettingsErr  error
	upsertSettingsErr error
	upsertNoteErr     error
	upsertFolderErr   map[string]error
	logErr            error
	beforeFetchNotes  func(ctx context.Context) error
	beforeCurrentUser func()

	calls map[string]int
}

func newMemRemote() *memRemote {
	return &memRemote{
		uid:   "user-1",
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		calls: map[string]int{},
	}
}

func (r *memRemote) hit(name string) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
}

func (r *memRemote) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *memRemote) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *memRemote) tick() models.Timestamp {
	r.clock = r.clock.Add(time.Second)
	return models.TimestampOf(r.clock)
}

func (r *memRemote) CurrentUser(ctx context.Context) (string, error) {
	r.hit("CurrentUser")
	if r.beforeCurrentUser != nil {
		r.beforeCurrentUser()
	}
	if r.authErr != nil {
		return "", r.authErr
	}
	return r.uid, nil
}

func (r *memRemote) FetchNotes(ctx context.Context) ([]models.Note, error) {
	r.hit("FetchNotes")
	if r.beforeFetchNotes != nil {
		if err := r.beforeFetchNotes(ctx); err != nil {
			return nil, err
		}
	}
	if r.fetchNotesErr != nil {
		return nil, r.fetchNotesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return activeNewestFirst(r.notes), nil
}

func (r *memRemote) FetchNote(ctx context.Context, id string) (*models.Note, error) {
	r.hit("FetchNote")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memRemote) UpsertNote(ctx context.Context, note *models.Note) error {
	r.hit("UpsertNote")
	if r.upsertNoteErr != nil {
		return r.upsertNoteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.notes, func(n models.Note) bool { return n.ID == note.ID })
	if i >= 0 && stale(r.notes[i].UpdatedAt, note.UpdatedAt) {
		return common.ErrStaleWrite
	}
	stored := *note
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = models.TimestampOf(r.clock)
	}
	stored.UpdatedAt = r.tick()
	if i >= 0 {
		r.notes[i] = stored
	} else {
		r.notes = append(r.notes, stored)
	}
	*note = stored
	return nil
}

func (r *memRemote) SoftDeleteNote(ctx context.Context, id string) error {
	r.hit("SoftDeleteNote")
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notes {
		if r.notes[i].ID == id {
			r.notes[i].Deleted = true
			r.notes[i].UpdatedAt = r.tick()
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memRemote) FetchFolders(ctx context.Context) ([]models.Folder, error) {
	r.hit("FetchFolders")
	if r.fetchFoldersErr != nil {
		return nil, r.fetchFoldersErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Folder, 0, len(r.folders))
	for _, f := range r.folders {
		if !f.Deleted {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memRemote) FetchFolder(ctx context.Context, id string) (*models.Folder, error) {
	r.hit("FetchFolder")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.folders {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memRemote) UpsertFolder(ctx context.Context, folder *models.Folder) error {
	r.hit("UpsertFolder")
	if err := r.upsertFolderErr[folder.ID]; err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.folders, func(f models.Folder) bool { return f.ID == folder.ID })
	if i >= 0 && stale(r.folders[i].UpdatedAt, folder.UpdatedAt) {
		return common.ErrStaleWrite
	}
	if !folder.Deleted && slices.ContainsFunc(r.folders, func(f models.Folder) bool {
		return !f.Deleted && f.ID != folder.ID && f.Name == folder.Name
	}) {
		return common.ErrFolderExists
	}
	stored := *folder
	stored.UpdatedAt = r.tick()
	if i >= 0 {
		r.folders[i] = stored
	} else {
		r.folders = append(r.folders, stored)
	}
	*folder = stored
	return nil
}

func (r *memRemote) FetchUserSettings(ctx context.Context) (*models.UserSettings, error) {
	r.hit("FetchUserSettings")
	if r.fetchSettingsErr != nil {
		return nil, r.fetchSettingsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil, nil
	}
	s := *r.settings
	return &s, nil
}

func (r *memRemote) UpsertSettings(ctx context.Context, s *models.UserSettings) error {
	r.hit("UpsertSettings")
	if r.upsertSettingsErr != nil {
		return r.upsertSettingsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UserID = r.uid
	s.UpdatedAt = r.tick()
	stored := *s
	r.settings = &stored
	return nil
}

func (r *memRemote) InsertSyncLogEntry(ctx context.Context, e *models.SyncLogEntry) error {
	r.hit("InsertSyncLogEntry")
	if r.logErr != nil {
		return r.logErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.UserID = r.uid
	r.logs = append(r.logs, *e)
	return nil
}

func (r *memRemote) lastLog() models.SyncLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return models.SyncLogEntry{}
	}
	return r.logs[len(r.logs)-1]
}

// stale mirrors the backend guard "stored.updated_at <= client.updated_at".
func stale(stored, client models.Timestamp) bool {
	return !client.Valid() || stored.Time().After(client.Time())
}

func activeNewestFirst(in []models.Note) []models.Note {
	out := make([]models.Note, 0, len(in))
	for _, n := range in {
		if !n.Deleted {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Note) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

/*************
 * In-memory local replica
 *************/

type memLocal struct {
	mu sync.Mutex

	notes     []models.Note
	folders   []models.Folder
	settings  *models.UserSettings
	lastSync  time.Time
	hasSynced bool

	saveNotesCalls    int
	saveFoldersCalls  int
	saveSettingsCalls int
	saveNotesErr      error
}

func (l *memLocal) Notes(context.Context) ([]models.Note, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.notes), nil
}

func (l *memLocal) SaveNotes(_ context.Context, notes []models.Note) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saveNotesCalls++
	if l.saveNotesErr != nil {
		return l.saveNotesErr
	}
	l.notes = slices.Clone(notes)
	return nil
}

func (l *memLocal) Folders(context.Context) ([]models.Folder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.folders), nil
}

func (l *memLocal) SaveFolders(_ context.Context, folders []models.Folder) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saveFoldersCalls++
	l.folders = slices.Clone(folders)
	return nil
}

func (l *memLocal) Settings(context.Context) (*models.UserSettings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settings == nil {
		return nil, nil
	}
	s := *l.settings
	return &s, nil
}

func (l *memLocal) SaveSettings(_ context.Context, s *models.UserSettings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saveSettingsCalls++
	v := *s
	l.settings = &v
	return nil
}

func (l *memLocal) LastSync(context.Context) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSync, l.hasSynced, nil
}

func (l *memLocal) SetLastSync(_ context.Context, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSync, l.hasSynced = t, true
	return nil
}

func (l *memLocal) note(id string) (models.Note, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.IndexFunc(l.notes, func(n models.Note) bool { return n.ID == id })
	if i < 0 {
		return models.Note{}, false
	}
	return l.notes[i], true
}

/*************
 * Helpers
 *************/

func ptr[T any](v T) *T { return &v }

func enabledSettings() *models.UserSettings {
	return &models.UserSettings{SyncEnabled: ptr(true), AutoSyncInterval: ptr(300)}
}

func at(minute int) models.Timestamp {
	return models.TimestampOf(time.Date(2024, 5, 1, 12, minute, 0, 0, time.UTC))
}

func note(id, content string, updated models.Timestamp) models.Note {
	return models.Note{ID: id, Title: id, Content: content, CreatedAt: at(0), UpdatedAt: updated}
}
