// Package migrations embeds the SQL migration files into the binary.
//
// Pass FS to database.DB.Migrate at startup; the files do not need to be
// present on the target device.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
