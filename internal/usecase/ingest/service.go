package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
)

// indexRunner is the background task the service dispatches. Satisfied by
// *Orchestrator.
type indexRunner interface {
	Run(ctx context.Context, repoURL, repoID string, job *models.IndexJob) error
}

// SubmitResult is the immediate answer to an index submission. The actual
// indexing outcome must be polled via IndexStatus or the job audit trail.
type SubmitResult struct {
	RepoID         string
	AlreadyIndexed bool
}

// Service exposes the indexing entry points to the transport layer.
type Service struct {
	tracker *StatusTracker
	jobs    database.JobRepository
	runner  indexRunner
}

// NewService creates the ingestion service.
func NewService(tracker *StatusTracker, jobs database.JobRepository, orch *Orchestrator) *Service {
	return &Service{
		tracker: tracker,
		jobs:    jobs,
		runner:  orch,
	}
}

// DeriveRepoID computes the repository identity from its URL: the last two
// path segments joined by an underscore. The same URL always yields the same
// id; distinct URLs sharing their last two segments collide, which is an
// accepted limitation.
func DeriveRepoID(repoURL string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("repository URL %q has no owner/name path", repoURL)
	}
	return parts[len(parts)-2] + "_" + parts[len(parts)-1], nil
}

// SubmitIndex computes the repo id and, unless the repository is already
// indexed or an indexing run is in flight, launches the orchestrator in the
// background. It returns immediately; callers poll for completion.
func (s *Service) SubmitIndex(ctx context.Context, repoURL string) (*SubmitResult, error) {
	repoID, err := DeriveRepoID(repoURL)
	if err != nil {
		return nil, err
	}

	if s.tracker.IsIndexed(ctx, repoID) {
		log.Printf("[Ingest] Repository %s already indexed, skipping", repoID)
		return &SubmitResult{RepoID: repoID, AlreadyIndexed: true}, nil
	}

	// The claim is taken before the goroutine launches so two concurrent
	// submissions for the same repository cannot both start a run.
	if !s.tracker.Claim(ctx, repoID) {
		log.Printf("[Ingest] Indexing already in flight for %s, skipping", repoID)
		return &SubmitResult{RepoID: repoID, AlreadyIndexed: false}, nil
	}

	job := &models.IndexJob{
		RepoID:  repoID,
		RepoURL: repoURL,
		Status:  models.JobStatusPending,
		Version: 1,
	}
	jobID, err := s.jobs.CreateJob(ctx, job)
	if err != nil {
		// The audit row is observability, not the source of truth. Index anyway.
		log.Printf("[Ingest] ⚠️ Could not create job record for %s: %v", repoID, err)
		job = nil
	} else {
		job.ID = jobID
	}

	go func() {
		// Detached from the request: the run keeps its own lifetime.
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Ingest] 🛑 Indexing run for %s panicked: %v", repoID, r)
				s.tracker.Release(ctx, repoID)
			}
		}()
		if err := s.runner.Run(ctx, repoURL, repoID, job); err != nil {
			log.Printf("[Ingest] Background indexing for %s ended with failure: %v", repoID, err)
		}
	}()

	log.Printf("[Ingest] 📥 Indexing scheduled for %s (%s)", repoID, repoURL)
	return &SubmitResult{RepoID: repoID, AlreadyIndexed: false}, nil
}

// IndexStatus reports "complete" once a repository has a finished index,
// otherwise "pending".
func (s *Service) IndexStatus(ctx context.Context, repoID string) string {
	if s.tracker.IsIndexed(ctx, repoID) {
		return "complete"
	}
	return "pending"
}

// LatestJob returns the most recent audit job for repoID with its step log.
// Returns database.ErrNotFound when the repository has never been submitted.
func (s *Service) LatestJob(ctx context.Context, repoID string) (*models.IndexJob, []*models.IndexJobStep, error) {
	job, err := s.jobs.GetLatestJobByRepoID(ctx, repoID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.jobs.GetJobSteps(ctx, job.ID)
	if err != nil {
		return nil, nil, err
	}
	return job, steps, nil
}
