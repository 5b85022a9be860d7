// Package migrations embeds the country database schema.
package migrations

import "embed"

// FS holds the versioned SQL migrations applied by cmd/migrate.
//
//go:embed *.sql
var FS embed.FS
