package models

import (
	"time"

	"github.com/uptrace/bun"
)

// JobStatus represents the state of an index job or one of its steps
type JobStatus int

const (
	JobStatusPending    JobStatus = 0
	JobStatusProcessing JobStatus = 1
	JobStatusCompleted  JobStatus = 2
	JobStatusFailed     JobStatus = 3
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusProcessing:
		return "processing"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// IndexStep represents the individual stages of the indexing pipeline
type IndexStep int

const (
	StepLoading   IndexStep = 0
	StepChunking  IndexStep = 1
	StepEmbedding IndexStep = 2
)

func (s IndexStep) String() string {
	switch s {
	case StepChunking:
		return "chunking"
	case StepEmbedding:
		return "embedding"
	default:
		return "loading"
	}
}

// IndexJob is the audit record for one background indexing run of a
// repository. The durable indexed flag, not this row, decides idempotency;
// jobs exist so operators can see what happened and when.
type IndexJob struct {
	bun.BaseModel `bun:"table:index_jobs,alias:ij"`

	ID            int64     `bun:",pk,autoincrement"`
	RepoID        string    `bun:",notnull"`
	RepoURL       string    `bun:",notnull"`
	Status        JobStatus `bun:",notnull"`
	Version       int       `bun:",notnull,default:1"`
	CurrentStep   IndexStep `bun:",nullzero"`
	ErrorMessage  string    `bun:",nullzero"`
	DocumentCount int       `bun:",nullzero"`
	ChunkCount    int       `bun:",nullzero"`
	VectorCount   int       `bun:",nullzero"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// IndexJobStep is a detailed log line for a single pipeline stage
type IndexJobStep struct {
	bun.BaseModel `bun:"table:index_job_steps,alias:ijs"`

	ID        int64     `bun:",pk,autoincrement"`
	JobID     int64     `bun:",notnull"`
	Job       *IndexJob `bun:"rel:belongs-to,join:job_id=id"`
	Name      IndexStep `bun:",notnull"`
	Status    JobStatus `bun:",notnull"`
	Detail    string    `bun:",nullzero"`
	ErrorLog  string    `bun:",nullzero"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
