// Package services contains the application services of the notesync
// client: session handling, local editing and the sync orchestrator.
// This file defines the session service: token login, logout and identity
// lookup against the local store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/auth"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/collections"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/kv"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/logging"
)

// AuthService defines session operations for the CLI.
//
// Contract:
//   - Login: validate an access token and store it as the session. Signing
//     in as a different user wipes the local replica first.
//   - Logout: forget the session, optionally wiping all local data.
//   - WhoAmI: the user id of the stored session.
type AuthService interface {
	Login(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, wipe bool) error
	WhoAmI(ctx context.Context) (string, error)
}

// authService is backed by the local SQLite database.
type authService struct {
	db     *sql.DB
	secret []byte
}

func NewAuthService(db *sql.DB, secret []byte) AuthService {
	return &authService{db: db, secret: secret}
}

func (a *authService) Login(ctx context.Context, token string) (string, error) {
	uid, err := auth.GetUserIDFromToken(token, a.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	previous, err := a.WhoAmI(ctx)
	if err != nil && !errors.Is(err, common.ErrUnauthenticated) {
		return "", err
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := kv.NewSQLiteRepository(tx)
		if previous != "" && previous != uid {
			if err := repo.Clear(ctx); err != nil {
				return err
			}
		}
		return repo.Set(ctx, collections.KeySession, []byte(token))
	})
	if err != nil {
		return "", fmt.Errorf("session saving error: %w", err)
	}
	return uid, nil
}

func (a *authService) Logout(ctx context.Context, wipe bool) error {
	repo := kv.NewSQLiteRepository(a.db)
	if wipe {
		return repo.Clear(ctx)
	}
	return repo.Delete(ctx, collections.KeySession)
}

// WhoAmI returns an error wrapping common.ErrUnauthenticated when no valid
// session is stored.
func (a *authService) WhoAmI(ctx context.Context) (string, error) {
	store := collections.New(kv.NewSQLiteRepository(a.db), logging.Nop())
	return auth.NewTokenIdentity(store, a.secret).CurrentUser(ctx)
}
