package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all environmentally dependent settings for the RepoSage API.
// Values come from RS_-prefixed environment variables, optionally seeded
// from a .env file in the working directory.
type Config struct {
	Port int `env:"RS_PORT" envDefault:"8080"`

	// LLM routing
	GeminiAPIKey     string  `env:"RS_GEMINI_API_KEY"`
	UseLocalOnlyLLM  bool    `env:"RS_USE_LOCAL_ONLY_LLM" envDefault:"false"`
	OllamaHost       string  `env:"RS_OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaLLMModel   string  `env:"RS_OLLAMA_LLM_MODEL" envDefault:"llama3"`
	OllamaEmbedModel string  `env:"RS_OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	LLMTemperature   float32 `env:"RS_LLM_TEMPERATURE" envDefault:"0.1"`

	// Qdrant Vector DB
	QdrantHost       string `env:"RS_QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"RS_QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string `env:"RS_QDRANT_COLLECTION" envDefault:"reposage"`
	EmbeddingDim     uint64 `env:"RS_EMBEDDING_DIM" envDefault:"768"`

	// Redis (indexed flags, claims, answer cache)
	RedisAddr     string `env:"RS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"RS_REDIS_PASSWORD"`
	RedisDB       int    `env:"RS_REDIS_DB" envDefault:"0"`

	// SQLite (index job audit trail)
	SQLitePath string `env:"RS_SQLITE_PATH" envDefault:"reposage.db"`

	// Indexing pipeline
	ChunkSize           int    `env:"RS_CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap        int    `env:"RS_CHUNK_OVERLAP" envDefault:"200"`
	EmbedBatchSize      int    `env:"RS_EMBED_BATCH_SIZE" envDefault:"100"`
	PipelineConcurrency int    `env:"RS_PIPELINE_CONCURRENCY" envDefault:"4"`
	CloneDir            string `env:"RS_CLONE_DIR"`

	// Query path
	TopK         int           `env:"RS_TOP_K" envDefault:"5"`
	CacheTTL     time.Duration `env:"RS_CACHE_TTL" envDefault:"1h"`
	ClaimTTL     time.Duration `env:"RS_CLAIM_TTL" envDefault:"30m"`
	QueryTimeout time.Duration `env:"RS_QUERY_TIMEOUT" envDefault:"30s"`

	CORSOrigin string `env:"RS_CORS_ORIGIN" envDefault:"http://localhost:3000"`
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("RS_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if !c.UseLocalOnlyLLM && c.GeminiAPIKey == "" {
		return fmt.Errorf("RS_GEMINI_API_KEY is required when RS_USE_LOCAL_ONLY_LLM is false")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("RS_CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("RS_CHUNK_OVERLAP must be in [0, RS_CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("RS_EMBED_BATCH_SIZE must be at least 1, got %d", c.EmbedBatchSize)
	}
	if c.PipelineConcurrency < 1 {
		return fmt.Errorf("RS_PIPELINE_CONCURRENCY must be at least 1, got %d", c.PipelineConcurrency)
	}
	if c.TopK < 1 {
		return fmt.Errorf("RS_TOP_K must be at least 1, got %d", c.TopK)
	}
	return nil
}

// Load reads settings from the environment, terminating the process when
// parsing or validation fails.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[Config] Failed to parse environment: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Config] Validation failed: %v", err)
	}

	return cfg
}
