package repository

import (
	"context"
)

// EmbeddingClient defines the interface for generating embeddings from text.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// EmbeddingRouter defines the interface for routing embedding work to an
// appropriate backend.
type EmbeddingRouter interface {
	RouteEmbeddingTask(task TaskType) EmbeddingClient
}
