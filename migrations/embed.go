// Package migrations embeds the SQL schema migrations into the binary.
//
// Files are named NNN_description.up.sql / NNN_description.down.sql and
// applied by database.DB.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
