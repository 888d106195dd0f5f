// Package remote talks to the shared backend replica of a user's notes,
// folders, settings and sync audit log.
//
// # Overview
//
// The package provides:
//  1. A storage-agnostic contract (see the Client interface) used by the
//     sync orchestrator: fetch, guarded upsert, soft delete and audit log
//     insertion, all scoped to the signed-in user.
//  2. A concrete PostgreSQL implementation (see PostgresClient) built on the
//     server repositories and the pgx database/sql driver.
//  3. A change feed (see Listener) that LISTENs on the notesync_changes
//     channel and hands the current user's notifications to a callback,
//     reconnecting with exponential backoff.
//
// # Error Handling
//
// Transport failures are reported as ErrUnavailable, permission failures
// as ErrUnauthorized. Domain conditions keep their common sentinels
// (common.ErrNotFound, common.ErrStaleWrite, common.ErrFolderExists,
// common.ErrUnauthenticated) and are matched with errors.Is.
//
// # Concurrency & Contexts
//
// PostgresClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation; callers apply their own
// deadlines.
package remote
