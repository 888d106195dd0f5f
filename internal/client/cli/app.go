package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/notesync/internal/auth"
	"github.com/dmitrijs2005/notesync/internal/client/backup"
	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/dmitrijs2005/notesync/internal/client/remote"
	"github.com/dmitrijs2005/notesync/internal/client/repositories"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/collections"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
)

var errRemoteNotConfigured = errors.New("remote_dsn is not configured")

// App wires the local store, the identity provider and the services for one
// command invocation. The backend connection is created on first use.
type App struct {
	cfg *config.Config
	log logging.Logger
	in  *bufio.Reader
	out printer

	repos    *repositories.Repositories
	store    *collections.Store
	identity *auth.TokenIdentity

	remote *remote.PostgresClient
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if cfg.LocalDBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.LocalDBPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	repos, err := repositories.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", cfg.LocalDBPath, "error", err)
		return nil, err
	}
	store := collections.New(repos.KV, log)

	// A stored session wins over a token from the configuration.
	tokens := auth.FirstToken{store, auth.StaticToken(cfg.AccessToken)}

	return &App{
		cfg:      cfg,
		log:      log,
		in:       bufio.NewReader(in),
		out:      newPrinter(out),
		repos:    repos,
		store:    store,
		identity: auth.NewTokenIdentity(tokens, []byte(cfg.JWTSecret)),
	}, nil
}

func (a *App) Close() error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	errs = append(errs, a.repos.Close())
	return errors.Join(errs...)
}

// Remote returns the backend client. Nothing is dialled until a call needs it.
func (a *App) Remote() (*remote.PostgresClient, error) {
	if a.remote != nil {
		return a.remote, nil
	}
	if a.cfg.RemoteDSN == "" {
		return nil, errRemoteNotConfigured
	}
	db, err := remote.OpenLazy(a.cfg.RemoteDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	a.remote = remote.NewPostgresClient(db, repomanager.NewPostgresRepositoryManager(), a.identity)
	return a.remote, nil
}

func (a *App) SyncService() (services.SyncService, error) {
	c, err := a.Remote()
	if err != nil {
		return nil, err
	}
	return services.NewSyncService(a.store, c, a.log, services.WithRemoteTimeout(a.cfg.RemoteTimeout)), nil
}

// NoteService works without a backend; purges and settings then stay local.
func (a *App) NoteService() services.NoteService {
	c, err := a.Remote()
	if err != nil {
		return services.NewNoteService(a.store, nil, a.log)
	}
	return services.NewNoteService(a.store, c, a.log)
}

func (a *App) AuthService() services.AuthService {
	return services.NewAuthService(a.repos.DB, []byte(a.cfg.JWTSecret))
}

func (a *App) BackupService(ctx context.Context) (*backup.Service, error) {
	st, err := backup.NewS3Store(ctx, backup.S3Config{
		Region:       a.cfg.S3Region,
		AccessKey:    a.cfg.S3AccessKey,
		SecretKey:    a.cfg.S3SecretKey,
		BaseEndpoint: a.cfg.S3BaseEndpoint,
		Bucket:       a.cfg.S3Bucket,
	})
	if err != nil {
		return nil, err
	}
	return backup.NewService(a.store, st, a.identity, a.log, backup.WithPassphrase(a.cfg.BackupPassphrase)), nil
}

func (a *App) Listener() *remote.Listener {
	return remote.NewListener(a.cfg.RemoteDSN, a.identity, a.log)
}
