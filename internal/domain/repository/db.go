package repository

import (
	"context"
)

// SearchResult represents a single ranked match from the vector index.
// Source carries the path of the file the matched chunk came from.
type SearchResult struct {
	ID      string
	Content string
	Score   float32
	Source  string
}

// VectorRecord is one embedded chunk ready for upsert. ID must be unique
// within a repository and stable across retries so that re-indexing
// overwrites instead of duplicating.
type VectorRecord struct {
	ID     string
	Vector []float32
	Text   string
	Source string
}

// VectorRepository defines the interface for vector database operations.
// Every operation is scoped to a repository namespace so that multiple
// indexed repositories share one collection without bleeding into each
// other's search results.
type VectorRepository interface {
	UpsertRecords(ctx context.Context, repoID string, records []VectorRecord) error
	Search(ctx context.Context, repoID string, vector []float32, limit int) ([]SearchResult, error)
	DeleteRepo(ctx context.Context, repoID string) error
	Close() error
}
