package migrations

import "embed"

// FS contains the embedded SQLite schema for case records.
//
//go:embed *.sql
var FS embed.FS
