package query

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

// ContextRetriever embeds a question and assembles ranked context text from
// the repository's slice of the vector index.
type ContextRetriever struct {
	vectors repository.VectorRepository
	router  repository.EmbeddingRouter
	topK    int
}

// NewContextRetriever creates a ContextRetriever requesting topK matches per
// question.
func NewContextRetriever(vectors repository.VectorRepository, router repository.EmbeddingRouter, topK int) *ContextRetriever {
	if topK < 1 {
		topK = 5
	}
	return &ContextRetriever{
		vectors: vectors,
		router:  router,
		topK:    topK,
	}
}

// GetContext returns the concatenated context for question within repoID, or
// an empty string when retrieval fails or nothing is indexed there. Callers
// must treat empty as "no context available", never as an error.
func (r *ContextRetriever) GetContext(ctx context.Context, repoID, question string) string {
	embedder := r.router.RouteEmbeddingTask(repository.TaskType("embedding"))
	if embedder == nil {
		log.Printf("[Retriever] ⚠️ No embedding client available")
		return ""
	}

	vecs, err := embedder.Embed(ctx, []string{question})
	if err != nil || len(vecs) == 0 {
		log.Printf("[Retriever] ⚠️ Question embedding failed for %s: %v", repoID, err)
		return ""
	}

	results, err := r.vectors.Search(ctx, repoID, vecs[0], r.topK)
	if err != nil {
		log.Printf("[Retriever] ⚠️ Vector search failed in %s: %v", repoID, err)
		return ""
	}

	log.Printf("[Retriever] 🔍 Retrieved %d matches from %s", len(results), repoID)
	return buildContext(results)
}

// buildContext concatenates matches in ranked order, each introduced by a
// delimiter line naming its source file.
func buildContext(results []repository.SearchResult) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "--- Content from %s ---\n%s\n", res.Source, res.Content)
	}
	return b.String()
}
