package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/auth"
	"github.com/dmitrijs2005/notesync/internal/client/repositories"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/collections"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func openLocal(t *testing.T) *repositories.Repositories {
	t.Helper()
	repos, err := repositories.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := auth.GenerateToken(uid, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestLogin_StoresSession(t *testing.T) {
	repos := openLocal(t)
	svc := NewAuthService(repos.DB, testSecret)
	ctx := context.Background()

	uid, err := svc.Login(ctx, token(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	who, err := svc.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", who)
}

func TestLogin_RejectsInvalidToken(t *testing.T) {
	repos := openLocal(t)
	svc := NewAuthService(repos.DB, testSecret)

	other, err := auth.GenerateToken("mallory", []byte("other-secret"), time.Hour)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), other)
	require.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = svc.WhoAmI(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestLogin_SwitchingUserWipesLocalReplica(t *testing.T) {
	repos := openLocal(t)
	store := collections.New(repos.KV, logging.Nop())
	svc := NewAuthService(repos.DB, testSecret)
	ctx := context.Background()

	_, err := svc.Login(ctx, token(t, "alice"))
	require.NoError(t, err)
	require.NoError(t, store.SaveNotes(ctx, []models.Note{models.NewNote("a", "b", nil)}))

	_, err = svc.Login(ctx, token(t, "alice"))
	require.NoError(t, err)
	notes, err := store.Notes(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 1, "same user keeps the replica")

	_, err = svc.Login(ctx, token(t, "bob"))
	require.NoError(t, err)
	notes, err = store.Notes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)

	who, err := svc.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", who)
}

func TestLogout(t *testing.T) {
	repos := openLocal(t)
	store := collections.New(repos.KV, logging.Nop())
	svc := NewAuthService(repos.DB, testSecret)
	ctx := context.Background()

	_, err := svc.Login(ctx, token(t, "alice"))
	require.NoError(t, err)
	require.NoError(t, store.SaveNotes(ctx, []models.Note{models.NewNote("a", "b", nil)}))

	require.NoError(t, svc.Logout(ctx, false))
	_, err = svc.WhoAmI(ctx)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
	notes, _ := store.Notes(ctx)
	assert.Len(t, notes, 1)

	require.NoError(t, svc.Logout(ctx, true))
	notes, _ = store.Notes(ctx)
	assert.Empty(t, notes)
}
