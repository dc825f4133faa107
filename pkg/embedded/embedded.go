// Package embedded provides static assets compiled into the binaries.
package embedded

import (
	"embed"
)

// Schemas contains the SQL schema of every database, one file per database
// named <name>_schema.sql.
//
//go:embed schemas/*.sql
var Schemas embed.FS
