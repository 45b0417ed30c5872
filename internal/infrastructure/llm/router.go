package llm

import (
	"log"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

// TaskType is a re-export of domain.TaskType for convenience, or use domain directly.
type TaskType = repository.TaskType

const (
	TaskEmbedding        TaskType = repository.TaskType("embedding")
	TaskAnswerGeneration TaskType = repository.TaskType("answer_generation")
)

// Router picks between the local and cloud backends for each task. Cloud
// clients are optional; when absent (local-only mode, or no API key) every
// task stays on the local backend.
type Router struct {
	localLLM   repository.LLMClient
	localEmbed repository.EmbeddingClient
	cloudLLM   repository.LLMClient
	cloudEmbed repository.EmbeddingClient
}

// NewRouter initializes the router with the local backends and, optionally,
// the cloud backends. Pass nil cloud clients to force local-only routing.
func NewRouter(localLLM repository.LLMClient, localEmbed repository.EmbeddingClient, cloudLLM repository.LLMClient, cloudEmbed repository.EmbeddingClient) *Router {
	return &Router{
		localLLM:   localLLM,
		localEmbed: localEmbed,
		cloudLLM:   cloudLLM,
		cloudEmbed: cloudEmbed,
	}
}

// RouteLLMTask returns the generation backend for the task, preferring the
// cloud when it is configured.
func (r *Router) RouteLLMTask(task repository.TaskType) repository.LLMClient {
	selected := r.localLLM
	icon := "🏠"
	if r.cloudLLM != nil {
		selected = r.cloudLLM
		icon = "☁️"
	}

	log.Printf("[Router] 🛤️  Routing task '%s' to %s %s", task, icon, selected.Name())
	return selected
}

// RouteEmbeddingTask returns the embedding backend for the task. Index-time
// and query-time embeddings must come from the same backend, so the choice
// is fixed for the process lifetime.
func (r *Router) RouteEmbeddingTask(task repository.TaskType) repository.EmbeddingClient {
	selected := r.localEmbed
	icon := "🏠"
	if r.cloudEmbed != nil {
		selected = r.cloudEmbed
		icon = "☁️"
	}

	log.Printf("[Router] 🛤️  Routing task '%s' to %s %s", task, icon, selected.Name())
	return selected
}
