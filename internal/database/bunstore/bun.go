package bunstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	ctx := context.Background()
	if _, err := bunDB.NewCreateTable().Model((*models.IndexJob)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create index_jobs table: %w", err)
	}
	if _, err := bunDB.NewCreateTable().Model((*models.IndexJobStep)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create index_job_steps table: %w", err)
	}

	return store, nil
}

// JobRepository Implementation
func (s *BunStore) CreateJob(ctx context.Context, job *models.IndexJob) (int64, error) {
	if _, err := s.db.NewInsert().Model(job).Exec(ctx); err != nil {
		return 0, err
	}
	return job.ID, nil
}

func (s *BunStore) GetJobByID(ctx context.Context, id int64) (*models.IndexJob, error) {
	job := new(models.IndexJob)
	if err := s.db.NewSelect().Model(job).Where("id = ?", id).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *BunStore) GetLatestJobByRepoID(ctx context.Context, repoID string) (*models.IndexJob, error) {
	job := new(models.IndexJob)
	if err := s.db.NewSelect().Model(job).Where("repo_id = ?", repoID).Order("created_at DESC", "id DESC").Limit(1).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *BunStore) UpdateJobStatus(ctx context.Context, jobID int64, currentVersion int, status models.JobStatus, currentStep models.IndexStep, errorMsg string) error {
	res, err := s.db.NewUpdate().Model((*models.IndexJob)(nil)).
		Set("status = ?", status).
		Set("current_step = ?", currentStep).
		Set("error_message = ?", errorMsg).
		Set("version = version + 1").
		Set("updated_at = current_timestamp").
		Where("id = ? AND version = ?", jobID, currentVersion).
		Exec(ctx)

	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrConcurrentUpdate
	}
	return nil
}

func (s *BunStore) UpdateJobCounts(ctx context.Context, jobID int64, documents, chunks, vectors int) error {
	_, err := s.db.NewUpdate().Model((*models.IndexJob)(nil)).
		Set("document_count = ?", documents).
		Set("chunk_count = ?", chunks).
		Set("vector_count = ?", vectors).
		Set("updated_at = current_timestamp").
		Where("id = ?", jobID).
		Exec(ctx)
	return err
}

func (s *BunStore) UpsertJobStep(ctx context.Context, step *models.IndexJobStep) (int64, error) {
	if step.ID == 0 {
		if _, err := s.db.NewInsert().Model(step).Exec(ctx); err != nil {
			return 0, err
		}
	} else {
		if _, err := s.db.NewUpdate().Model(step).WherePK().Exec(ctx); err != nil {
			return 0, err
		}
	}
	return step.ID, nil
}

func (s *BunStore) GetJobSteps(ctx context.Context, jobID int64) ([]*models.IndexJobStep, error) {
	var steps []*models.IndexJobStep
	if err := s.db.NewSelect().Model(&steps).Where("job_id = ?", jobID).Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return steps, nil
}
