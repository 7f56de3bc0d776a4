// Package migrations embeds the goose SQL migrations, one directory per dialect.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite3/*.sql.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
