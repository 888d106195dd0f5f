package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	uid string
	err error
}

func (f fakeIdentity) CurrentUser(context.Context) (string, error) { return f.uid, f.err }

func newClient(t *testing.T, id Identity) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresClient(db, repomanager.NewPostgresRepositoryManager(), id), mock
}

var (
	ts          = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	noteColumns = []string{"id", "title", "content", "folder_id", "created_at", "updated_at", "deleted"}
)

func TestFetchNotes_ScopedToCurrentUser(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{uid: "u1"})

	mock.ExpectQuery(`SELECT .* FROM notes`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(noteColumns).AddRow("n1", "t", "c", nil, ts, ts, false))

	items, err := c.FetchNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalls_UnauthenticatedNeverTouchDB(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{err: common.ErrUnauthenticated})
	ctx := context.Background()

	_, err := c.FetchNotes(ctx)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = c.FetchFolders(ctx)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = c.FetchUserSettings(ctx)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
	require.ErrorIs(t, c.UpsertNote(ctx, &models.Note{ID: "n1"}), common.ErrUnauthenticated)
	require.ErrorIs(t, c.SoftDeleteNote(ctx, "n1"), common.ErrUnauthenticated)
	require.ErrorIs(t, c.InsertSyncLogEntry(ctx, &models.SyncLogEntry{}), common.ErrUnauthenticated)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNote_StaleWritePassesThrough(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{uid: "u1"})

	mock.ExpectQuery(`INSERT INTO notes`).WillReturnError(sql.ErrNoRows)

	err := c.UpsertNote(context.Background(), &models.Note{ID: "n1", UpdatedAt: models.TimestampOf(ts)})
	require.ErrorIs(t, err, common.ErrStaleWrite)
}

func TestFetchNote_NotFound(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{uid: "u1"})

	mock.ExpectQuery(`SELECT .* FROM notes WHERE id = \$1 AND user_id = \$2`).
		WithArgs("nope", "u1").
		WillReturnError(sql.ErrNoRows)

	_, err := c.FetchNote(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpsertFolder_DuplicateName(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{uid: "u1"})

	mock.ExpectQuery(`INSERT INTO folders`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key"})

	err := c.UpsertFolder(context.Background(), &models.Folder{ID: "f1", Name: "Work"})
	require.ErrorIs(t, err, common.ErrFolderExists)
}

func TestInsertSyncLogEntry_StampsUser(t *testing.T) {
	c, mock := newClient(t, fakeIdentity{uid: "u1"})

	mock.ExpectQuery(`INSERT INTO sync_logs`).
		WithArgs(sqlmock.AnyArg(), "u1", "auto", "success", 0, 0, nil, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(ts))

	e := &models.SyncLogEntry{UserID: "spoofed", SyncType: models.SyncTypeAuto, Status: models.SyncStatusSuccess}
	require.NoError(t, c.InsertSyncLogEntry(context.Background(), e))
	assert.Equal(t, "u1", e.UserID)
}

func TestMapError(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
		{"bad conn", driver.ErrBadConn, ErrUnavailable},
		{"privilege", &pgconn.PgError{Code: pgInsufficientPrivilege}, ErrUnauthorized},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, common.ErrFolderExists},
		{"not found", common.ErrNotFound, common.ErrNotFound},
		{"stale", common.ErrStaleWrite, common.ErrStaleWrite},
		{"other", base, base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}
	assert.NoError(t, mapError(nil))
}
