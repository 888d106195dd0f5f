package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/merge"
	"github.com/dmitrijs2005/notesync/internal/client/remote"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
)

// Result messages.
const (
	MsgSyncDisabled     = "Sync is disabled"
	MsgNotAuthenticated = "User not authenticated"
	MsgInProgress       = "Sync already in progress"
	MsgCompleted        = "Sync completed successfully"
	MsgNoSyncNeeded     = "No sync needed"
	msgFetchFailedTmpl  = "Failed to fetch server %s"
)

// DefaultRemoteTimeout bounds every single remote call of a pass.
const DefaultRemoteTimeout = 12 * time.Second

// LocalStore is the device-local replica.
type LocalStore interface {
	Notes(ctx context.Context) ([]models.Note, error)
	SaveNotes(ctx context.Context, notes []models.Note) error
	Folders(ctx context.Context) ([]models.Folder, error)
	SaveFolders(ctx context.Context, folders []models.Folder) error
	Settings(ctx context.Context) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, s *models.UserSettings) error
	LastSync(ctx context.Context) (time.Time, bool, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

type Collection string

const (
	CollectionNotes    Collection = "notes"
	CollectionFolders  Collection = "folders"
	CollectionSettings Collection = "settings"
)

// Policy decides what a failure of one collection does to the whole pass.
type Policy int

const (
	// Fatal aborts the pass and reports failure.
	Fatal Policy = iota
	// NonFatal logs a warning and continues with the next collection.
	NonFatal
)

// DefaultPolicies: notes are the primary entity, folders and settings are
// secondary metadata.
func DefaultPolicies() map[Collection]Policy {
	return map[Collection]Policy{
		CollectionNotes:    Fatal,
		CollectionFolders:  NonFatal,
		CollectionSettings: NonFatal,
	}
}

type SyncService interface {
	// PerformFullSync runs one complete pass. It never returns an error;
	// every outcome is described by the result.
	PerformFullSync(ctx context.Context) models.SyncResult
	// AutoSync runs a pass only when the configured interval has elapsed
	// since the last successful one.
	AutoSync(ctx context.Context) models.SyncResult
}

type SyncOption func(*syncService)

func WithClock(now func() time.Time) SyncOption {
	return func(s *syncService) { s.now = now }
}

func WithRemoteTimeout(d time.Duration) SyncOption {
	return func(s *syncService) {
		if d > 0 {
			s.remoteTimeout = d
		}
	}
}

func WithPolicies(p map[Collection]Policy) SyncOption {
	return func(s *syncService) { s.policies = p }
}

type syncService struct {
	local  LocalStore
	remote remote.Client
	log    logging.Logger

	now           func() time.Time
	remoteTimeout time.Duration
	policies      map[Collection]Policy

	running sync.Mutex
}

func NewSyncService(local LocalStore, client remote.Client, log logging.Logger, opts ...SyncOption) SyncService {
	s := &syncService{
		local:         local,
		remote:        client,
		log:           log.With("component", "sync"),
		now:           time.Now,
		remoteTimeout: DefaultRemoteTimeout,
		policies:      DefaultPolicies(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// fetchError marks a failed remote read of a whole collection.
type fetchError struct {
	collection Collection
	err        error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.collection, e.err)
}

func (e *fetchError) Unwrap() error { return e.err }

// pass accumulates the outcome of one sync run.
type pass struct {
	settings *models.UserSettings

	notes         int
	folders       int
	conflicts     int
	trueConflicts int
}

func (s *syncService) PerformFullSync(ctx context.Context) (res models.SyncResult) {
	defer recoverResult(&res)
	return s.run(ctx, models.SyncTypeFull)
}

func (s *syncService) AutoSync(ctx context.Context) (res models.SyncResult) {
	defer recoverResult(&res)
	settings, err := s.local.Settings(ctx)
	if err != nil {
		return failure(err)
	}
	last, ok, err := s.local.LastSync(ctx)
	if err != nil {
		return failure(err)
	}

	meta := models.SyncMetadata{LastSyncAt: last, HasSynced: ok, SyncEnabled: settings.SyncIsEnabled()}
	if !meta.Due(s.now(), settings.AutoSyncEvery()) {
		return models.SyncResult{Success: true, Message: MsgNoSyncNeeded}
	}
	return s.run(ctx, models.SyncTypeAuto)
}

func (s *syncService) run(ctx context.Context, typ models.SyncType) models.SyncResult {
	if !s.running.TryLock() {
		return models.SyncResult{Success: false, Message: MsgInProgress}
	}
	defer s.running.Unlock()

	settings, err := s.local.Settings(ctx)
	if err != nil {
		return failure(err)
	}
	if !settings.SyncIsEnabled() {
		return models.SyncResult{Success: false, Message: MsgSyncDisabled}
	}

	var uid string
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		uid, err = s.remote.CurrentUser(ctx)
		return err
	})
	if err != nil {
		s.log.Info(ctx, "sync skipped", "reason", err)
		return models.SyncResult{Success: false, Message: MsgNotAuthenticated}
	}

	log := s.log.With("user_id", uid, "sync_type", string(typ))
	start := s.now()
	p := &pass{settings: settings}

	if err := s.stages(ctx, p, log); err != nil {
		elapsed := s.now().Sub(start).Milliseconds()
		log.Error(ctx, "sync failed", "error", err, "duration_ms", elapsed)
		s.audit(ctx, log, &models.SyncLogEntry{
			SyncType:     typ,
			Status:       models.SyncStatusFailed,
			ErrorMessage: err.Error(),
			DurationMs:   elapsed,
		})

		var fe *fetchError
		if errors.As(err, &fe) {
			return models.SyncResult{Success: false, Message: fmt.Sprintf(msgFetchFailedTmpl, fe.collection)}
		}
		return failure(err)
	}

	if err := s.local.SetLastSync(ctx, s.now()); err != nil {
		log.Warn(ctx, "failed to record last sync time", "error", err)
	}

	elapsed := s.now().Sub(start).Milliseconds()
	s.audit(ctx, log, &models.SyncLogEntry{
		SyncType:          typ,
		Status:            models.SyncStatusSuccess,
		NotesCount:        p.notes,
		ConflictsResolved: p.conflicts,
		DurationMs:        elapsed,
	})
	log.Info(ctx, "sync completed",
		"notes", p.notes, "folders", p.folders,
		"conflicts", p.conflicts, "true_conflicts", p.trueConflicts,
		"duration_ms", elapsed)

	return models.SyncResult{
		Success:           true,
		Message:           MsgCompleted,
		NotesCount:        p.notes,
		FoldersCount:      p.folders,
		ConflictsResolved: p.conflicts,
		TrueConflicts:     p.trueConflicts,
		SyncDurationMs:    elapsed,
	}
}

// recoverResult turns a panic that escaped the pass into the generic failure
// result. Panics inside the collection stages are already audited by stages.
func recoverResult(res *models.SyncResult) {
	if r := recover(); r != nil {
		*res = failure(fmt.Errorf("panic: %v", r))
	}
}

// stages runs the collections in their fixed order. A panic inside a stage is
// turned into an error so the failed pass is still audited.
func (s *syncService) stages(ctx context.Context, p *pass, log logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	steps := []struct {
		name Collection
		fn   func(context.Context, *pass, logging.Logger) error
	}{
		{CollectionNotes, s.syncNotes},
		{CollectionFolders, s.syncFolders},
		{CollectionSettings, s.syncSettings},
	}

	for _, st := range steps {
		err := st.fn(ctx, p, log)
		if err == nil {
			continue
		}
		if s.policies[st.name] == NonFatal {
			log.Warn(ctx, "collection skipped", "collection", string(st.name), "error", err)
			continue
		}
		return err
	}
	return nil
}

func (s *syncService) syncNotes(ctx context.Context, p *pass, log logging.Logger) error {
	local, err := s.local.Notes(ctx)
	if err != nil {
		return err
	}

	var fetched []models.Note
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = s.remote.FetchNotes(ctx)
		return err
	}); err != nil {
		return &fetchError{collection: CollectionNotes, err: err}
	}

	res := merge.Collection(local, fetched)
	reportMalformed(ctx, log, CollectionNotes, res.Malformed)

	if err := s.local.SaveNotes(ctx, res.Merged); err != nil {
		return fmt.Errorf("failed to save notes: %w", err)
	}

	merged, _, err := pushLocalWins(ctx, s, log, res, fetched, s.remote.UpsertNote, s.remote.FetchNote)
	if err != nil {
		return err
	}
	if len(res.LocalWins) > 0 {
		if err := s.local.SaveNotes(ctx, merged); err != nil {
			return fmt.Errorf("failed to save notes: %w", err)
		}
	}

	p.notes = len(merged)
	p.conflicts += res.Conflicts
	p.trueConflicts += res.TrueConflicts
	return nil
}

func (s *syncService) syncFolders(ctx context.Context, p *pass, log logging.Logger) error {
	local, err := s.local.Folders(ctx)
	if err != nil {
		return err
	}

	var fetched []models.Folder
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = s.remote.FetchFolders(ctx)
		return err
	}); err != nil {
		return &fetchError{collection: CollectionFolders, err: err}
	}

	res := merge.Collection(local, fetched)
	reportMalformed(ctx, log, CollectionFolders, res.Malformed)

	if err := s.local.SaveFolders(ctx, res.Merged); err != nil {
		return fmt.Errorf("failed to save folders: %w", err)
	}

	merged, rejected, err := pushLocalWins(ctx, s, log, res, fetched, s.remote.UpsertFolder, s.remote.FetchFolder)
	if err != nil {
		return err
	}
	if merged, err = s.resolveNameClashes(ctx, log, merged, fetched, rejected); err != nil {
		return err
	}
	if len(res.LocalWins) > 0 {
		if err := s.local.SaveFolders(ctx, merged); err != nil {
			return fmt.Errorf("failed to save folders: %w", err)
		}
	}

	p.folders = len(merged)
	p.conflicts += res.Conflicts
	p.trueConflicts += res.TrueConflicts
	return nil
}

// syncSettings lets the remote record win key by key. When the user has no
// remote record yet the local one becomes the baseline.
func (s *syncService) syncSettings(ctx context.Context, p *pass, log logging.Logger) error {
	var fetched *models.UserSettings
	if err := s.call(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = s.remote.FetchUserSettings(ctx)
		return err
	}); err != nil {
		return &fetchError{collection: CollectionSettings, err: err}
	}

	if fetched != nil {
		merged := models.MergeSettings(p.settings, fetched)
		if err := s.local.SaveSettings(ctx, merged); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		return nil
	}

	baseline := *p.settings
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.remote.UpsertSettings(ctx, &baseline)
	}); err != nil {
		return fmt.Errorf("failed to push settings: %w", err)
	}
	log.Info(ctx, "settings baseline pushed")
	if err := s.local.SaveSettings(ctx, &baseline); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// resolveNameClashes drops every local folder the server refused because an
// active folder with the same name already exists there. Notes filed under the
// dropped folder are moved to the server's folder and touched so the next pass
// pushes them.
func (s *syncService) resolveNameClashes(
	ctx context.Context,
	log logging.Logger,
	merged, fetched []models.Folder,
	rejected map[string]error,
) ([]models.Folder, error) {
	moved := map[string]string{}
	for id, err := range rejected {
		if !errors.Is(err, common.ErrFolderExists) {
			continue
		}
		i := slices.IndexFunc(merged, func(f models.Folder) bool { return f.ID == id })
		if i < 0 {
			continue
		}
		name := merged[i].Name
		j := slices.IndexFunc(fetched, func(f models.Folder) bool {
			return !f.Deleted && f.ID != id && f.Name == name
		})
		if j < 0 {
			log.Warn(ctx, "folder name taken on server but not fetched yet", "id", id, "name", name)
			continue
		}
		moved[id] = fetched[j].ID
		log.Info(ctx, "folder name taken on server, adopted server folder", "id", id, "server_id", fetched[j].ID, "name", name)
	}
	if len(moved) == 0 {
		return merged, nil
	}

	merged = slices.DeleteFunc(merged, func(f models.Folder) bool { _, ok := moved[f.ID]; return ok })

	notes, err := s.local.Notes(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	changed := false
	for i := range notes {
		if notes[i].FolderID == nil {
			continue
		}
		if to, ok := moved[*notes[i].FolderID]; ok {
			notes[i].FolderID = &to
			notes[i].Touch(now)
			changed = true
		}
	}
	if changed {
		if err := s.local.SaveNotes(ctx, notes); err != nil {
			return nil, fmt.Errorf("failed to save notes: %w", err)
		}
	}
	return merged, nil
}

// rejectedRecord reports errors that refuse one record while the backend
// stays usable for the rest of the collection.
func rejectedRecord(err error) bool {
	return errors.Is(err, common.ErrFolderExists) || errors.Is(err, remote.ErrUnauthorized)
}

type tombstone interface {
	IsDeleted() bool
}

// pushLocalWins writes every record the merge took from the local side and
// returns the merged collection with the server-stamped versions in place.
// A write rejected because the server holds a newer copy adopts that copy.
// A record the server refuses outright keeps its local value, is reported in
// the returned map and does not stop the remaining pushes. Local-only tombstones are not pushed: the server either never saw the
// record or already has it deleted.
func pushLocalWins[T merge.Record](
	ctx context.Context,
	s *syncService,
	log logging.Logger,
	res merge.Result[T],
	fetched []T,
	upsert func(context.Context, *T) error,
	fetchOne func(context.Context, string) (*T, error),
) ([]T, map[string]error, error) {
	out := slices.Clone(res.Merged)
	if len(res.LocalWins) == 0 {
		return out, nil, nil
	}

	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Key()] = i
	}
	onServer := make(map[string]bool, len(fetched))
	for _, r := range fetched {
		onServer[r.Key()] = true
	}

	rejected := map[string]error{}
	for _, id := range res.LocalWins {
		i, ok := index[id]
		if !ok {
			continue
		}
		rec := out[i]
		if t, ok := any(rec).(tombstone); ok && t.IsDeleted() && !onServer[id] {
			continue
		}

		err := s.call(ctx, func(ctx context.Context) error { return upsert(ctx, &rec) })
		switch {
		case err == nil:
			out[i] = rec
		case errors.Is(err, common.ErrStaleWrite):
			var current *T
			if err := s.call(ctx, func(ctx context.Context) error {
				var err error
				current, err = fetchOne(ctx, id)
				return err
			}); err != nil {
				return nil, nil, fmt.Errorf("failed to adopt server copy of %s: %w", id, err)
			}
			log.Info(ctx, "server copy is newer, adopted", "id", id)
			out[i] = *current
		case rejectedRecord(err):
			log.Warn(ctx, "server refused record, kept local copy", "id", id, "error", err)
			rejected[id] = err
		default:
			return nil, nil, fmt.Errorf("failed to push %s: %w", id, err)
		}
	}
	return out, rejected, nil
}

// call runs one remote operation under the per-call deadline.
func (s *syncService) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	return fn(ctx)
}

// audit writes the sync log entry. Its failure never changes the result.
func (s *syncService) audit(ctx context.Context, log logging.Logger, e *models.SyncLogEntry) {
	err := s.call(ctx, func(ctx context.Context) error {
		return s.remote.InsertSyncLogEntry(ctx, e)
	})
	if err != nil {
		log.Warn(ctx, "failed to write sync log", "status", string(e.Status), "error", err)
	}
}

func reportMalformed(ctx context.Context, log logging.Logger, c Collection, ids []string) {
	if len(ids) > 0 {
		log.Warn(ctx, "unparseable updated_at treated as oldest", "collection", string(c), "ids", ids)
	}
}

func failure(err error) models.SyncResult {
	return models.SyncResult{Success: false, Message: "Sync failed: " + err.Error()}
}
