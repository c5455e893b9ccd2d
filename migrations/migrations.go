// Package migrations embeds SQL migration files for goose.
//
// Each backend has its own directory because the embedded and hosted schemas
// differ in column types. Files follow the naming convention NNNNN_description.sql
// and are applied in order when a store is opened.
package migrations

import "embed"

// Directories inside FS, one per storage backend.
const (
	DirSQLite   = "sqlite"
	DirPostgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
