// Package cli implements the notesync command line on top of cobra.
//
// Every invocation loads the configuration, opens the local SQLite replica
// and builds the services it needs; the Postgres backend is only dialled by
// commands that talk to it. Output is styled with lipgloss when stdout is a
// terminal and plain otherwise.
//
// Commands: sync, autosync, watch, status, login, logout, whoami,
// note (add|list|edit|trash|restore|purge), folder (add|list|rename|trash),
// settings (show|set), backup (push|restore), remote migrate.
package cli
