package postgres

import "ingest/internal/storage"

func init() {
	storage.Register("postgres", New)
}
