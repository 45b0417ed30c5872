package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
)

func newTestStore(t *testing.T) *BunStore {
	t.Helper()

	// A named in-memory database keeps every pooled connection on the same
	// data while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	store, err := NewBunStore(sqldb, sqlitedialect.New())
	require.NoError(t, err)
	return store
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{
		RepoID:  "org_repo",
		RepoURL: "https://example.com/org/repo",
		Status:  models.JobStatusPending,
		Version: 1,
	}

	id, err := store.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := store.GetJobByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "org_repo", got.RepoID)
	assert.Equal(t, "https://example.com/org/repo", got.RepoURL)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetJobByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJobByID(context.Background(), 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGetLatestJobByRepoID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusFailed, Version: 1}
	_, err := store.CreateJob(ctx, first)
	require.NoError(t, err)

	second := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusPending, Version: 1}
	secondID, err := store.CreateJob(ctx, second)
	require.NoError(t, err)

	_, err = store.CreateJob(ctx, &models.IndexJob{RepoID: "other_repo", RepoURL: "u2", Status: models.JobStatusPending, Version: 1})
	require.NoError(t, err)

	got, err := store.GetLatestJobByRepoID(ctx, "org_repo")
	require.NoError(t, err)
	assert.Equal(t, secondID, got.ID)
}

func TestGetLatestJobByRepoIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetLatestJobByRepoID(context.Background(), "missing_repo")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateJobStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusPending, Version: 1}
	id, err := store.CreateJob(ctx, job)
	require.NoError(t, err)

	err = store.UpdateJobStatus(ctx, id, 1, models.JobStatusProcessing, models.StepLoading, "")
	require.NoError(t, err)

	got, err := store.GetJobByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, models.StepLoading, got.CurrentStep)
	assert.Equal(t, 2, got.Version)
}

func TestUpdateJobStatusVersionConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusPending, Version: 1}
	id, err := store.CreateJob(ctx, job)
	require.NoError(t, err)

	// First writer bumps the version, second writer still holds version 1.
	require.NoError(t, store.UpdateJobStatus(ctx, id, 1, models.JobStatusProcessing, models.StepLoading, ""))

	err = store.UpdateJobStatus(ctx, id, 1, models.JobStatusFailed, models.StepLoading, "stale write")
	assert.ErrorIs(t, err, database.ErrConcurrentUpdate)
}

func TestUpdateJobCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusProcessing, Version: 1}
	id, err := store.CreateJob(ctx, job)
	require.NoError(t, err)

	require.NoError(t, store.UpdateJobCounts(ctx, id, 12, 340, 338))

	got, err := store.GetJobByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, got.DocumentCount)
	assert.Equal(t, 340, got.ChunkCount)
	assert.Equal(t, 338, got.VectorCount)
}

func TestUpsertJobStepInsertThenUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusProcessing, Version: 1}
	jobID, err := store.CreateJob(ctx, job)
	require.NoError(t, err)

	step := &models.IndexJobStep{
		JobID:  jobID,
		Name:   models.StepLoading,
		Status: models.JobStatusProcessing,
	}
	stepID, err := store.UpsertJobStep(ctx, step)
	require.NoError(t, err)
	require.NotZero(t, stepID)

	step.Status = models.JobStatusCompleted
	step.Detail = "12 documents"
	_, err = store.UpsertJobStep(ctx, step)
	require.NoError(t, err)

	steps, err := store.GetJobSteps(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.JobStatusCompleted, steps[0].Status)
	assert.Equal(t, "12 documents", steps[0].Detail)
}

func TestGetJobStepsOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.IndexJob{RepoID: "org_repo", RepoURL: "u", Status: models.JobStatusProcessing, Version: 1}
	jobID, err := store.CreateJob(ctx, job)
	require.NoError(t, err)

	for _, name := range []models.IndexStep{models.StepLoading, models.StepChunking, models.StepEmbedding} {
		_, err := store.UpsertJobStep(ctx, &models.IndexJobStep{
			JobID:  jobID,
			Name:   name,
			Status: models.JobStatusCompleted,
		})
		require.NoError(t, err)
	}

	steps, err := store.GetJobSteps(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, models.StepLoading, steps[0].Name)
	assert.Equal(t, models.StepChunking, steps[1].Name)
	assert.Equal(t, models.StepEmbedding, steps[2].Name)
}
