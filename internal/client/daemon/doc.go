// Package daemon keeps the local replica in sync while the process runs.
//
// Triggers:
//  1. A ticker calls AutoSync every poll interval.
//  2. Remote change notifications start a debounced full sync.
//  3. Writes to the local database file start a debounced AutoSync.
//
// Syncs run one at a time on a single worker goroutine; a trigger that
// arrives while the same kind of sync is already queued is coalesced.
// Every result is handed to the configured Publisher.
package daemon
