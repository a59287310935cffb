// Package all registers every storage backend with the storage factory.
// Configuration picks which one to use; binaries import this package so that
// all of them are available.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "ingest/internal/storage/duckdb"
	_ "ingest/internal/storage/mssql"
	_ "ingest/internal/storage/postgres"
	_ "ingest/internal/storage/sqlite"
)
