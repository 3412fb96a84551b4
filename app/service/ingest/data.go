package ingest

import "time"

// Document is one successfully ingested file. Owner is stored explicitly
// and checked by equality; the owner-prefixed stored name is only a path
// convention.
type Document struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	StoredName string    `json:"stored_name"`
	StoredAt   string    `json:"stored_at"`
	Format     string    `json:"format"`
	IngestedAt time.Time `json:"ingested_at"`
}
