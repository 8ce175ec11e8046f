// Package migrations embeds the SQL schema applied by core/database.RunMigrations.
package migrations

import "embed"

// FS holds the NNNN_name.up.sql / .down.sql pairs.
//
//go:embed *.sql
var FS embed.FS
