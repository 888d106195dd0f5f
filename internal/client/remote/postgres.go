package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgreSQL error codes the client distinguishes.
const (
	pgUniqueViolation       = "23505"
	pgInsufficientPrivilege = "42501"
)

type PostgresClient struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	identity Identity
}

func NewPostgresClient(db *sql.DB, repos repomanager.RepositoryManager, identity Identity) *PostgresClient {
	return &PostgresClient{db: db, repos: repos, identity: identity}
}

// Open connects to the backend with the pgx driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, mapError(err)
	}
	return db, nil
}

// OpenLazy returns a pool that connects on first use. Connection failures
// then surface per call as ErrUnavailable.
func OpenLazy(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies the backend schema.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	return mapError(c.repos.RunMigrations(ctx, c.db))
}

func (c *PostgresClient) Close() error {
	return c.db.Close()
}

func (c *PostgresClient) CurrentUser(ctx context.Context) (string, error) {
	return c.identity.CurrentUser(ctx)
}

func (c *PostgresClient) FetchNotes(ctx context.Context) ([]models.Note, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.repos.Notes(c.db).SelectActive(ctx, uid)
	return items, mapError(err)
}

func (c *PostgresClient) FetchNote(ctx context.Context, id string) (*models.Note, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	n, err := c.repos.Notes(c.db).Get(ctx, uid, id)
	return n, mapError(err)
}

func (c *PostgresClient) UpsertNote(ctx context.Context, note *models.Note) error {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return mapError(c.repos.Notes(c.db).Upsert(ctx, uid, note))
}

func (c *PostgresClient) SoftDeleteNote(ctx context.Context, id string) error {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return mapError(c.repos.Notes(c.db).SoftDelete(ctx, uid, id))
}

func (c *PostgresClient) FetchFolders(ctx context.Context) ([]models.Folder, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.repos.Folders(c.db).SelectActive(ctx, uid)
	return items, mapError(err)
}

func (c *PostgresClient) FetchFolder(ctx context.Context, id string) (*models.Folder, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	f, err := c.repos.Folders(c.db).Get(ctx, uid, id)
	return f, mapError(err)
}

func (c *PostgresClient) UpsertFolder(ctx context.Context, folder *models.Folder) error {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return mapError(c.repos.Folders(c.db).Upsert(ctx, uid, folder))
}

// FetchUserSettings returns (nil, nil) when the user has no settings row.
func (c *PostgresClient) FetchUserSettings(ctx context.Context) (*models.UserSettings, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s, err := c.repos.Settings(c.db).Get(ctx, uid)
	return s, mapError(err)
}

func (c *PostgresClient) UpsertSettings(ctx context.Context, s *models.UserSettings) error {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return mapError(c.repos.Settings(c.db).Upsert(ctx, uid, s))
}

// InsertSyncLogEntry records e under the current user, overriding e.UserID.
func (c *PostgresClient) InsertSyncLogEntry(ctx context.Context, e *models.SyncLogEntry) error {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	e.UserID = uid
	return mapError(c.repos.SyncLogs(c.db).Insert(ctx, e))
}

func (c *PostgresClient) RecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	uid, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.repos.SyncLogs(c.db).ListRecent(ctx, uid, limit)
	return items, mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrStaleWrite) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", common.ErrFolderExists, err)
		case pgInsufficientPrivilege:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}
	return err
}
