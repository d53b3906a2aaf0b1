// Package migrations embeds the SQL schema files applied to every case
// database. Embedding keeps case creation independent of the working
// directory, which matters for the CLI.
package migrations

import "embed"

// FS is the embedded migrations filesystem.
// Contains all .sql files in this directory (e.g. 001_initial.sql).
//
//go:embed *.sql
var FS embed.FS
