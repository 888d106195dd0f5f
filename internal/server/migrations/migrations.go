// Package migrations embeds the goose migrations of the backend Postgres
// schema shared by every device of a user.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
