package database

import (
	"context"
	"errors"

	"github.com/reposage/reposage-api/internal/database/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected: version mismatch")
)

// JobRepository handles index job audit persistence
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.IndexJob) (int64, error)
	GetJobByID(ctx context.Context, id int64) (*models.IndexJob, error)
	GetLatestJobByRepoID(ctx context.Context, repoID string) (*models.IndexJob, error)
	UpdateJobStatus(ctx context.Context, jobID int64, currentVersion int, status models.JobStatus, currentStep models.IndexStep, errorMsg string) error
	UpdateJobCounts(ctx context.Context, jobID int64, documents, chunks, vectors int) error

	UpsertJobStep(ctx context.Context, step *models.IndexJobStep) (int64, error)
	GetJobSteps(ctx context.Context, jobID int64) ([]*models.IndexJobStep, error)
}
