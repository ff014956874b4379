// Package migrations holds the schema of the object store. Files are named
// NNN_name.up.sql; the numeric prefix becomes PRAGMA user_version once
// applied.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
