// Package config loads runtime configuration for the notesync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file given with --config (JSON, YAML or TOML).
//  3. NOTESYNC_* environment variables, e.g. NOTESYNC_REMOTE_DSN.
//  4. Command-line flags that were explicitly set.
//
// Example file
//
//	local_db_path: ~/.config/notesync/notesync.db
//	remote_dsn: postgres://notes:notes@db:5432/notesync?sslmode=disable
//	remote_timeout: 12s
//	poll_interval: 30s
//	status_addr: 127.0.0.1:7777
package config
