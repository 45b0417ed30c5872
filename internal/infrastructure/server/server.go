package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/reposage/reposage-api/internal/chunking"
	"github.com/reposage/reposage-api/internal/config"
	"github.com/reposage/reposage-api/internal/database/bunstore"
	"github.com/reposage/reposage-api/internal/domain/repository"
	"github.com/reposage/reposage-api/internal/infrastructure/llm"
	"github.com/reposage/reposage-api/internal/infrastructure/metrics"
	qdrantpkg "github.com/reposage/reposage-api/internal/infrastructure/qdrant"
	redispkg "github.com/reposage/reposage-api/internal/infrastructure/redis"
	"github.com/reposage/reposage-api/internal/infrastructure/vcs"
	httpserver "github.com/reposage/reposage-api/internal/interface/http"
	"github.com/reposage/reposage-api/internal/usecase/ingest"
	"github.com/reposage/reposage-api/internal/usecase/query"
)

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	dbConn     *sql.DB
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

func (s *Server) Run() error {
	ctx := context.Background()

	// ==========================================
	// Initialize Dependencies (Dependency Injection)
	// ==========================================

	var cloudLLM repository.LLMClient
	var cloudEmbed repository.EmbeddingClient
	if !s.cfg.UseLocalOnlyLLM {
		gemini, err := llm.NewGeminiClient(ctx, s.cfg.GeminiAPIKey, s.cfg.LLMTemperature)
		if err != nil {
			return err
		}
		defer func() { _ = gemini.Close() }()
		cloudLLM = gemini
		cloudEmbed = gemini
	}

	// Initialize the local Ollama backend
	localClient := llm.NewLocalOllamaClient(s.cfg.OllamaHost, s.cfg.OllamaLLMModel, s.cfg.OllamaEmbedModel, s.cfg.LLMTemperature)

	if s.cfg.UseLocalOnlyLLM {
		log.Println("[System] 🏠 RS_USE_LOCAL_ONLY_LLM is true. All tasks stay on local Ollama.")

		// Pull configured Ollama models at startup
		llmModel, embedModel := localClient.Models()
		log.Printf("[System] 📥 Ensuring local models '%s' and '%s' are available...", llmModel, embedModel)
		if err := localClient.PullModel(ctx, llmModel); err != nil {
			log.Printf("[Warning] 📥 Failed to pull LLM model '%s': %v", llmModel, err)
		}
		if err := localClient.PullModel(ctx, embedModel); err != nil {
			log.Printf("[Warning] 📥 Failed to pull Embed model '%s': %v", embedModel, err)
		}
	}

	// Initialize the LLM Router
	llmRouter := llm.NewRouter(localClient, localClient, cloudLLM, cloudEmbed)
	if cloudLLM != nil {
		log.Printf("[System] 🛤️  LLM Router initialized (Cloud: %s | Local: %s)", cloudLLM.Name(), localClient.Name())
	} else {
		log.Printf("[System] 🛤️  LLM Router initialized (Local only: %s)", localClient.Name())
	}

	// Prometheus metrics for the indexing and query paths
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Redis holds the indexed flags, indexing claims and the answer cache.
	// The API stays up without it: every consumer degrades to uncached,
	// re-runnable behavior on a nil store.
	var kv repository.KVStore
	redisStore, err := redispkg.NewStore(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
	if err != nil {
		log.Printf("[Warning] ⚠️ Redis unavailable, running without indexed flags and answer cache: %v", err)
	} else {
		kv = redisStore
		defer func() { _ = redisStore.Close() }()
	}

	// SQLite keeps the index job audit trail
	s.dbConn, err = sql.Open(sqliteshim.ShimName, s.cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.dbConn.Close(); closeErr != nil {
			log.Printf("[Warning] Failed to close database: %v", closeErr)
		}
	}()

	bunStore, err := bunstore.NewBunStore(s.dbConn, sqlitedialect.New())
	if err != nil {
		return err
	}

	qdrantClient, err := qdrantpkg.NewClient(s.cfg.QdrantHost, s.cfg.QdrantPort, s.cfg.QdrantCollection, s.cfg.EmbeddingDim)
	if err != nil {
		return err
	}
	defer func() { _ = qdrantClient.Close() }()

	// Indexing usecases (DDD Usecase)
	loader := ingest.NewLoader(vcs.NewGitFetcher(), s.cfg.CloneDir)
	splitter := chunking.NewSplitter(s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	pipeline := ingest.NewPipeline(llmRouter, qdrantClient, m, s.cfg.EmbedBatchSize, s.cfg.PipelineConcurrency)
	tracker := ingest.NewStatusTracker(kv, s.cfg.ClaimTTL)
	orchestrator := ingest.NewOrchestrator(loader, splitter, pipeline, tracker, qdrantClient, bunStore, m)
	ingestService := ingest.NewService(tracker, bunStore, orchestrator)

	// Query usecases (DDD Usecase)
	retriever := query.NewContextRetriever(qdrantClient, llmRouter, s.cfg.TopK)
	generator := query.NewAnswerGenerator(llmRouter)
	answerCache := query.NewAnswerCache(kv, s.cfg.CacheTTL)
	queryService := query.NewService(answerCache, retriever, generator, m, s.cfg.QueryTimeout)

	// ==========================================
	// Initialize and Start HTTP Server
	// ==========================================

	apiServer := httpserver.NewServer(ingestService, queryService, s.cfg.CORSOrigin)
	handler := apiServer.RegisterRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: handler,
	}

	// Listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("[System] 🌐 Starting REST API Server on :%d", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Error] HTTP server failed: %v", err)
		}
	}()

	<-stop
	log.Println("[System] 🛑 Shutdown signal received. Draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Error] HTTP shutdown error: %v", err)
	}

	log.Println("[System] ✅ Server stopped gracefully.")
	return nil
}
