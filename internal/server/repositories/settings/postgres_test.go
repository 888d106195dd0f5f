package settings

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var ts = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGet_NoRowIsNilNil(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT settings, updated_at FROM user_settings WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGet_DecodesDocument(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT settings, updated_at FROM user_settings`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"settings", "updated_at"}).
			AddRow([]byte(`{"sync_enabled":true,"display":{"theme":"dark"},"unknown":1}`), ts))

	s, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.SyncIsEnabled())
	assert.Equal(t, "dark", s.Display.Theme)
	assert.True(t, s.UpdatedAt.Time().Equal(ts))
}

func TestGet_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT settings`).WithArgs("u1").WillReturnError(errors.New("down"))
	mock.ExpectQuery(`SELECT settings`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"settings", "updated_at"}).AddRow([]byte(`[1,2]`), ts))

	_, err := repo.Get(context.Background(), "u1")
	require.ErrorContains(t, err, "failed to get settings: down")

	_, err = repo.Get(context.Background(), "u1")
	require.ErrorContains(t, err, "failed to decode settings")
}

func TestUpsert_StripsIdentityFromDocument(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	enabled := true

	mock.ExpectQuery(`INSERT INTO user_settings .* ON CONFLICT \(user_id\) DO UPDATE SET settings = EXCLUDED\.settings, updated_at = EXCLUDED\.updated_at RETURNING updated_at`).
		WithArgs("u1", []byte(`{"sync_enabled":true,"updated_at":null}`)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(ts))

	s := &models.UserSettings{UserID: "someone-else", SyncEnabled: &enabled, UpdatedAt: models.Now()}
	require.NoError(t, repo.Upsert(context.Background(), "u1", s))

	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.UpdatedAt.Time().Equal(ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO user_settings`).WillReturnError(errors.New("down"))

	err := repo.Upsert(context.Background(), "u1", &models.UserSettings{})
	require.ErrorContains(t, err, "failed to upsert settings: down")
}
