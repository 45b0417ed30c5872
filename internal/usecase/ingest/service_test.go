package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	repoIDs  []string
	gotJob   *models.IndexJob
	jobSeen  bool
	err      error
	panicMsg string
	done     chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: make(chan struct{})}
}

func (f *fakeRunner) Run(ctx context.Context, repoURL, repoID string, job *models.IndexJob) error {
	f.mu.Lock()
	f.repoIDs = append(f.repoIDs, repoID)
	f.gotJob = job
	f.jobSeen = true
	f.mu.Unlock()
	defer close(f.done)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

func (f *fakeRunner) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for background run")
	}
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.repoIDs)
}

func newTestService(kv *fakeKV, jobs *mockJobRepo, runner indexRunner) *Service {
	return &Service{
		tracker: NewStatusTracker(kv, 30*time.Minute),
		jobs:    jobs,
		runner:  runner,
	}
}

func TestDeriveRepoID(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"https URL", "https://example.com/org/repo", "org_repo", false},
		{"trailing slash", "https://example.com/org/repo/", "org_repo", false},
		{"deep path", "https://github.com/a/b/org/repo", "org_repo", false},
		{"bare owner and name", "org/repo", "org_repo", false},
		{"single segment", "repo", "", true},
		{"host only", "https://example.com", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveRepoID(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got %q", tc.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for %q: %v", tc.url, err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSubmitIndexSchedulesBackgroundRun(t *testing.T) {
	kv := newFakeKV()
	jobs := newMockJobRepo()
	runner := newFakeRunner()
	svc := newTestService(kv, jobs, runner)

	res, err := svc.SubmitIndex(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("SubmitIndex failed: %v", err)
	}
	if res.RepoID != "org_repo" || res.AlreadyIndexed {
		t.Errorf("Expected pending result for org_repo, got %+v", res)
	}

	runner.wait(t)
	if runner.runCount() != 1 || runner.repoIDs[0] != "org_repo" {
		t.Errorf("Expected one run for org_repo, got %v", runner.repoIDs)
	}
	if runner.gotJob == nil {
		t.Fatal("Expected a job row handed to the runner")
	}
	if runner.gotJob.RepoID != "org_repo" || runner.gotJob.Status != models.JobStatusPending {
		t.Errorf("Unexpected job row: %+v", runner.gotJob)
	}
	if len(jobs.created) != 1 || jobs.created[0].RepoURL != "https://example.com/org/repo" {
		t.Errorf("Expected one created job with the URL, got %v", jobs.created)
	}
	if !kv.has("repo_indexing:org_repo") {
		t.Error("Expected claim to be held while the run is in flight")
	}
}

func TestSubmitIndexAlreadyIndexed(t *testing.T) {
	kv := newFakeKV()
	kv.data["repo_indexed:org_repo"] = "true"
	runner := newFakeRunner()
	svc := newTestService(kv, newMockJobRepo(), runner)

	res, err := svc.SubmitIndex(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("SubmitIndex failed: %v", err)
	}
	if !res.AlreadyIndexed {
		t.Error("Expected AlreadyIndexed true")
	}

	time.Sleep(50 * time.Millisecond)
	if runner.runCount() != 0 {
		t.Errorf("Expected no background run, got %v", runner.repoIDs)
	}
}

func TestSubmitIndexClaimHeldByAnotherRun(t *testing.T) {
	kv := newFakeKV()
	kv.data["repo_indexing:org_repo"] = "1"
	runner := newFakeRunner()
	svc := newTestService(kv, newMockJobRepo(), runner)

	res, err := svc.SubmitIndex(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("SubmitIndex failed: %v", err)
	}
	if res.AlreadyIndexed {
		t.Error("Expected pending result while another run holds the claim")
	}

	time.Sleep(50 * time.Millisecond)
	if runner.runCount() != 0 {
		t.Errorf("Expected no second run while claim is held, got %v", runner.repoIDs)
	}
}

func TestSubmitIndexInvalidURL(t *testing.T) {
	svc := newTestService(newFakeKV(), newMockJobRepo(), newFakeRunner())

	if _, err := svc.SubmitIndex(context.Background(), "justaword"); err == nil {
		t.Fatal("Expected error for URL without owner/name")
	}
}

func TestSubmitIndexJobCreationFailureStillRuns(t *testing.T) {
	kv := newFakeKV()
	jobs := newMockJobRepo()
	jobs.createErr = errors.New("disk full")
	runner := newFakeRunner()
	svc := newTestService(kv, jobs, runner)

	res, err := svc.SubmitIndex(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("SubmitIndex failed: %v", err)
	}
	if res.AlreadyIndexed {
		t.Error("Expected pending result")
	}

	runner.wait(t)
	if runner.runCount() != 1 {
		t.Fatal("Expected the run to proceed without an audit row")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.gotJob != nil {
		t.Errorf("Expected nil job row, got %+v", runner.gotJob)
	}
}

func TestSubmitIndexRunnerPanicReleasesClaim(t *testing.T) {
	kv := newFakeKV()
	runner := newFakeRunner()
	runner.panicMsg = "boom"
	svc := newTestService(kv, newMockJobRepo(), runner)

	if _, err := svc.SubmitIndex(context.Background(), "https://example.com/org/repo"); err != nil {
		t.Fatalf("SubmitIndex failed: %v", err)
	}

	runner.wait(t)
	deadline := time.Now().Add(2 * time.Second)
	for kv.has("repo_indexing:org_repo") {
		if time.Now().After(deadline) {
			t.Fatal("Expected claim to be released after a panicking run")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIndexStatus(t *testing.T) {
	kv := newFakeKV()
	svc := newTestService(kv, newMockJobRepo(), newFakeRunner())
	ctx := context.Background()

	if got := svc.IndexStatus(ctx, "org_repo"); got != "pending" {
		t.Errorf("Expected pending before indexing, got %q", got)
	}

	kv.data["repo_indexed:org_repo"] = "true"
	if got := svc.IndexStatus(ctx, "org_repo"); got != "complete" {
		t.Errorf("Expected complete after indexing, got %q", got)
	}
}

func TestLatestJob(t *testing.T) {
	jobs := newMockJobRepo()
	jobs.latest = &models.IndexJob{ID: 3, RepoID: "org_repo", Status: models.JobStatusCompleted}
	jobs.steps[1] = &models.IndexJobStep{ID: 1, JobID: 3, Name: models.StepLoading, Status: models.JobStatusCompleted}
	svc := newTestService(newFakeKV(), jobs, newFakeRunner())

	job, steps, err := svc.LatestJob(context.Background(), "org_repo")
	if err != nil {
		t.Fatalf("LatestJob failed: %v", err)
	}
	if job.ID != 3 {
		t.Errorf("Expected job 3, got %d", job.ID)
	}
	if len(steps) != 1 {
		t.Errorf("Expected 1 step, got %d", len(steps))
	}
}

func TestLatestJobNotFound(t *testing.T) {
	svc := newTestService(newFakeKV(), newMockJobRepo(), newFakeRunner())

	_, _, err := svc.LatestJob(context.Background(), "never_submitted")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
