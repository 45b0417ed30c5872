package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
	"github.com/reposage/reposage-api/internal/domain/model"
	"github.com/reposage/reposage-api/internal/domain/repository"
	"github.com/reposage/reposage-api/internal/infrastructure/metrics"
)

// DocumentLoader produces the indexable documents of a repository.
type DocumentLoader interface {
	Load(ctx context.Context, repoURL string) ([]model.Document, error)
}

// Chunker splits documents into bounded, overlapping chunks.
type Chunker interface {
	ChunkDocuments(docs []model.Document) []model.Chunk
}

// IndexPipeline embeds chunks and upserts them into the vector index.
type IndexPipeline interface {
	Run(ctx context.Context, repoID string, chunks []model.Chunk) (upserted, failedBatches int)
}

// Orchestrator drives one background indexing run through its stages:
// load, chunk, embed/upsert. Any stage failure ends the run without setting
// the indexed flag, leaving the repository eligible for a future attempt.
// Progress is mirrored into the job audit store when a job row is available.
type Orchestrator struct {
	loader   DocumentLoader
	chunker  Chunker
	pipeline IndexPipeline
	tracker  *StatusTracker
	vectors  repository.VectorRepository
	jobs     database.JobRepository
	metrics  *metrics.Metrics
}

// NewOrchestrator creates an indexing orchestrator.
func NewOrchestrator(loader DocumentLoader, chunker Chunker, pipeline IndexPipeline, tracker *StatusTracker, vectors repository.VectorRepository, jobs database.JobRepository, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		loader:   loader,
		chunker:  chunker,
		pipeline: pipeline,
		tracker:  tracker,
		vectors:  vectors,
		jobs:     jobs,
		metrics:  m,
	}
}

// Run executes the full indexing pipeline for repoURL. job may be nil when
// the audit store was unavailable at submission; the run then proceeds with
// log-only observability. The returned error is informational for the caller's
// log line; every failure path has already been absorbed into job state and
// the claim released.
func (o *Orchestrator) Run(ctx context.Context, repoURL, repoID string, job *models.IndexJob) error {
	log.Printf("[Indexer] Starting indexing run for %s (repo_id: %s)", repoURL, repoID)
	start := time.Now()

	o.updateJob(ctx, job, models.JobStatusProcessing, models.StepLoading, "")
	step := o.startStep(ctx, job, models.StepLoading)

	docs, err := o.loader.Load(ctx, repoURL)
	if err != nil {
		return o.failRun(ctx, repoID, job, step, models.StepLoading, fmt.Errorf("document loading failed: %w", err), start)
	}
	if len(docs) == 0 {
		return o.failRun(ctx, repoID, job, step, models.StepLoading, errors.New("no documents loaded"), start)
	}
	o.metrics.DocumentsLoaded.Add(float64(len(docs)))
	o.finishStep(ctx, job, step, fmt.Sprintf("%d documents", len(docs)))

	o.updateJob(ctx, job, models.JobStatusProcessing, models.StepChunking, "")
	step = o.startStep(ctx, job, models.StepChunking)

	chunks := o.chunker.ChunkDocuments(docs)
	if len(chunks) == 0 {
		return o.failRun(ctx, repoID, job, step, models.StepChunking, errors.New("no chunks produced"), start)
	}
	o.metrics.ChunksCreated.Add(float64(len(chunks)))
	o.finishStep(ctx, job, step, fmt.Sprintf("%d chunks", len(chunks)))

	o.updateJob(ctx, job, models.JobStatusProcessing, models.StepEmbedding, "")
	step = o.startStep(ctx, job, models.StepEmbedding)

	// Record ids are positional, so a re-index of a shrunken repository would
	// leave stale vectors at ids the new run never writes. Clearing the
	// namespace first keeps it an exact mirror of this run. Best effort: the
	// upsert overwrites matching ids either way.
	if err := o.vectors.DeleteRepo(ctx, repoID); err != nil {
		log.Printf("[Indexer] ⚠️ Could not clear namespace %s before indexing: %v", repoID, err)
	}

	upserted, failedBatches := o.pipeline.Run(ctx, repoID, chunks)
	if upserted == 0 {
		return o.failRun(ctx, repoID, job, step, models.StepEmbedding, errors.New("all embedding batches failed"), start)
	}
	detail := fmt.Sprintf("%d vectors", upserted)
	if failedBatches > 0 {
		detail = fmt.Sprintf("%d vectors (%d batches skipped)", upserted, failedBatches)
	}
	o.finishStep(ctx, job, step, detail)

	if job != nil {
		if err := o.jobs.UpdateJobCounts(ctx, job.ID, len(docs), len(chunks), upserted); err != nil {
			log.Printf("[Indexer] ⚠️ Failed to record counts for job %d: %v", job.ID, err)
		}
	}

	if err := o.tracker.MarkIndexed(ctx, repoID); err != nil {
		// The vectors are in place; without the flag the next submit simply
		// runs again and overwrites them.
		log.Printf("[Indexer] ⚠️ Failed to set indexed flag for %s: %v", repoID, err)
	}

	o.updateJob(ctx, job, models.JobStatusCompleted, models.StepEmbedding, "")
	o.metrics.IndexRuns.WithLabelValues("completed").Inc()
	o.metrics.IndexDuration.Observe(time.Since(start).Seconds())

	log.Printf("[Indexer] ✅ Indexing completed for %s: %d documents, %d chunks, %d vectors", repoID, len(docs), len(chunks), upserted)
	return nil
}

// failRun records a stage failure in the job audit trail, releases the
// in-flight claim and returns the error for the caller's log line. The
// indexed flag is never set on this path.
func (o *Orchestrator) failRun(ctx context.Context, repoID string, job *models.IndexJob, step *models.IndexJobStep, stage models.IndexStep, err error, start time.Time) error {
	log.Printf("[Indexer] 🛑 Indexing failed for %s at stage %s: %v", repoID, stage, err)

	if step != nil {
		step.Status = models.JobStatusFailed
		step.ErrorLog = err.Error()
		if _, stepErr := o.jobs.UpsertJobStep(ctx, step); stepErr != nil {
			log.Printf("[Indexer] Failed to upsert job step: %v", stepErr)
		}
	}
	o.updateJob(ctx, job, models.JobStatusFailed, stage, err.Error())

	o.tracker.Release(ctx, repoID)
	o.metrics.IndexRuns.WithLabelValues("failed").Inc()
	o.metrics.IndexDuration.Observe(time.Since(start).Seconds())
	return err
}

// updateJob advances the job's status with the optimistic version check.
// No-op when the run has no job row.
func (o *Orchestrator) updateJob(ctx context.Context, job *models.IndexJob, status models.JobStatus, stage models.IndexStep, errorMsg string) {
	if job == nil {
		return
	}
	if err := o.jobs.UpdateJobStatus(ctx, job.ID, job.Version, status, stage, errorMsg); err != nil {
		log.Printf("[Indexer] Failed to update job status: %v", err)
		return
	}
	job.Version++
}

// startStep opens a PROCESSING step record for the given stage. Returns nil
// when the run has no job row.
func (o *Orchestrator) startStep(ctx context.Context, job *models.IndexJob, stage models.IndexStep) *models.IndexJobStep {
	if job == nil {
		return nil
	}
	step := &models.IndexJobStep{
		JobID:  job.ID,
		Name:   stage,
		Status: models.JobStatusProcessing,
	}
	stepID, err := o.jobs.UpsertJobStep(ctx, step)
	if err != nil {
		log.Printf("[Indexer] Failed to upsert job step: %v", err)
		return nil
	}
	step.ID = stepID
	return step
}

// finishStep marks a step record COMPLETED with a human-readable detail.
func (o *Orchestrator) finishStep(ctx context.Context, job *models.IndexJob, step *models.IndexJobStep, detail string) {
	if job == nil || step == nil {
		return
	}
	step.Status = models.JobStatusCompleted
	step.Detail = detail
	if _, err := o.jobs.UpsertJobStep(ctx, step); err != nil {
		log.Printf("[Indexer] Failed to upsert job step: %v", err)
	}
}
