// Package dbmigrations exposes embedded SQL migrations for connector binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into connector binaries.
//
//go:embed *.sql
var Files embed.FS
