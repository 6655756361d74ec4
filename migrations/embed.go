// Package migrations holds the goose migrations for the user store.
package migrations

import "embed"

// Files is read by the migration runner at startup.
//
//go:embed *.sql
var Files embed.FS
