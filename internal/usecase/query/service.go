package query

import (
	"context"
	"errors"
	"time"

	"github.com/reposage/reposage-api/internal/infrastructure/metrics"
)

// ErrNoContext signals that no indexed content matched the question's
// repository, either because it was never indexed or retrieval failed.
var ErrNoContext = errors.New("no context found for repository")

// Result is a finished answer and where it came from.
type Result struct {
	Answer string
	Source string
}

const (
	sourceCache     = "cache"
	sourceGenerated = "generated"
)

type contextSource interface {
	GetContext(ctx context.Context, repoID, question string) string
}

type answerSource interface {
	Generate(ctx context.Context, question, contextText string) string
}

// Service answers questions about indexed repositories, consulting the
// response cache before running retrieval and generation.
type Service struct {
	cache     *AnswerCache
	retriever contextSource
	generator answerSource
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// NewService creates a query Service. timeout bounds a single uncached
// answer, retrieval and generation together.
func NewService(cache *AnswerCache, retriever *ContextRetriever, generator *AnswerGenerator, m *metrics.Metrics, timeout time.Duration) *Service {
	if timeout < 1 {
		timeout = 60 * time.Second
	}
	return &Service{
		cache:     cache,
		retriever: retriever,
		generator: generator,
		metrics:   m,
		timeout:   timeout,
	}
}

// Answer resolves question against repoID. Identical questions within the
// cache TTL return the stored answer without touching the index or the
// model. ErrNoContext means the repository has nothing to ground an answer
// on; every other outcome, apologies included, is a valid answer.
func (s *Service) Answer(ctx context.Context, repoID, question string) (*Result, error) {
	start := time.Now()
	defer func() {
		s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	if answer, ok := s.cache.Get(ctx, repoID, question); ok {
		s.metrics.CacheHits.Inc()
		s.metrics.Queries.WithLabelValues(sourceCache).Inc()
		return &Result{Answer: answer, Source: sourceCache}, nil
	}
	s.metrics.CacheMisses.Inc()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contextText := s.retriever.GetContext(ctx, repoID, question)
	if contextText == "" {
		s.metrics.Queries.WithLabelValues("no_context").Inc()
		return nil, ErrNoContext
	}

	answer := s.generator.Generate(ctx, question, contextText)

	// Failed generations cache their apology too. Retrying the same
	// question inside the TTL would hit the same failing model anyway.
	s.cache.Set(ctx, repoID, question, answer)

	s.metrics.Queries.WithLabelValues(sourceGenerated).Inc()
	return &Result{Answer: answer, Source: sourceGenerated}, nil
}
