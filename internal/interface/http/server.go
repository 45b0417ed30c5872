package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reposage/reposage-api/internal/database"
	"github.com/reposage/reposage-api/internal/database/models"
	"github.com/reposage/reposage-api/internal/usecase/ingest"
	"github.com/reposage/reposage-api/internal/usecase/query"
)

// IngestService is the slice of the indexing usecase the API exposes.
type IngestService interface {
	SubmitIndex(ctx context.Context, repoURL string) (*ingest.SubmitResult, error)
	IndexStatus(ctx context.Context, repoID string) string
	LatestJob(ctx context.Context, repoID string) (*models.IndexJob, []*models.IndexJobStep, error)
}

// QueryService answers questions about indexed repositories.
type QueryService interface {
	Answer(ctx context.Context, repoID, question string) (*query.Result, error)
}

// Server holds the dependencies for the HTTP API server
type Server struct {
	ingest     IngestService
	query      QueryService
	corsOrigin string
}

// NewServer initializes a new API server with the required dependencies
func NewServer(ingestSvc IngestService, querySvc QueryService, corsOrigin string) *Server {
	return &Server{
		ingest:     ingestSvc,
		query:      querySvc,
		corsOrigin: corsOrigin,
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux
func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Go 1.22+ supports HTTP method routing directly in ServeMux
	mux.HandleFunc("POST /api/v1/index-repo", s.handleIndexRepo)
	mux.HandleFunc("GET /api/v1/index-status/{repo_id}", s.handleIndexStatus)
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/index-jobs/{repo_id}", s.handleIndexJobs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withCORS(mux)
}

type IndexRequest struct {
	RepoURL string `json:"repo_url"`
}

type QueryRequest struct {
	RepoID   string `json:"repo_id"`
	Question string `json:"question"`
}

func (s *Server) handleIndexRepo(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.RepoURL == "" {
		http.Error(w, "repo_url field is required", http.StatusBadRequest)
		return
	}

	result, err := s.ingest.SubmitIndex(r.Context(), req.RepoURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.AlreadyIndexed {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "success",
			"message": fmt.Sprintf("Repository '%s' has already been indexed.", result.RepoID),
			"repo_id": result.RepoID,
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "pending",
		"message": fmt.Sprintf("Repository '%s' is being indexed in the background.", result.RepoID),
		"repo_id": result.RepoID,
	})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repo_id")
	if repoID == "" {
		http.Error(w, "Repository ID required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"repo_id": repoID,
		"status":  s.ingest.IndexStatus(r.Context(), repoID),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.RepoID == "" || req.Question == "" {
		http.Error(w, "repo_id and question fields are required", http.StatusBadRequest)
		return
	}

	result, err := s.query.Answer(r.Context(), req.RepoID, req.Question)
	if err != nil {
		if errors.Is(err, query.ErrNoContext) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Could not retrieve context for the given repository. Ensure it has been indexed correctly.",
			})
			return
		}
		log.Printf("[Server] Query failed for %s: %v", req.RepoID, err)
		http.Error(w, "Failed to answer query", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"answer": result.Answer,
		"source": result.Source,
	})
}

type jobStepView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleIndexJobs(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repo_id")
	if repoID == "" {
		http.Error(w, "Repository ID required", http.StatusBadRequest)
		return
	}

	job, steps, err := s.ingest.LatestJob(r.Context(), repoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_started"})
			return
		}
		log.Printf("[Server] Failed loading jobs for %s: %v", repoID, err)
		http.Error(w, "Failed to load job history", http.StatusInternalServerError)
		return
	}

	stepViews := make([]jobStepView, 0, len(steps))
	for _, st := range steps {
		stepViews = append(stepViews, jobStepView{
			Name:   st.Name.String(),
			Status: st.Status.String(),
			Detail: st.Detail,
			Error:  st.ErrorLog,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"job_id":       job.ID,
		"repo_id":      job.RepoID,
		"status":       job.Status.String(),
		"current_step": job.CurrentStep.String(),
		"documents":    job.DocumentCount,
		"chunks":       job.ChunkCount,
		"vectors":      job.VectorCount,
		"error":        job.ErrorMessage,
		"updated_at":   job.UpdatedAt.Unix(),
		"steps":        stepViews,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// withCORS answers preflight requests and stamps the configured origin on
// every response so the web UI can call the API cross-origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
