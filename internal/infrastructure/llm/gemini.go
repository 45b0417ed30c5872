package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/reposage/reposage-api/internal/infrastructure/resilience"
)

const (
	geminiChatModel  = "gemini-1.5-pro"
	geminiEmbedModel = "text-embedding-004"
)

// GeminiClient implements repository.LLMClient and repository.EmbeddingClient
// against the Gemini API. All outbound calls run through one circuit breaker
// so a flapping cloud backend stops being hammered quickly.
type GeminiClient struct {
	client      *genai.Client
	temperature float32
	breaker     *resilience.CircuitBreaker
}

func NewGeminiClient(ctx context.Context, apiKey string, temperature float32) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key must not be empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		temperature: temperature,
		breaker:     resilience.NewCircuitBreaker("gemini", 5, 30*time.Second),
	}, nil
}

// Generate runs one chat completion with the given system instruction.
func (c *GeminiClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log.Printf("[Gemini] ☁️ Sending request to %s...", geminiChatModel)

	// A fresh model per call keeps concurrent requests from racing on the
	// shared client's model state.
	model := c.client.GenerativeModel(geminiChatModel)
	model.SetTemperature(c.temperature)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	var resp *genai.GenerateContentResponse
	err := c.breaker.Execute(func() error {
		var callErr error
		resp, callErr = model.GenerateContent(ctx, genai.Text(userPrompt))
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}

	log.Printf("[Gemini] ☁️ Response received successfully.")
	return text, nil
}

// Embed returns one vector per input text using the batch embedding API.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	log.Printf("[Gemini] ☁️ Embedding %d texts with %s...", len(texts), geminiEmbedModel)

	em := c.client.EmbeddingModel(geminiEmbedModel)
	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	var resp *genai.BatchEmbedContentsResponse
	err := c.breaker.Execute(func() error {
		var callErr error
		resp, callErr = em.BatchEmbedContents(ctx, batch)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("no embedding response from gemini")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from gemini")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}

	return "", fmt.Errorf("unexpected response format from gemini")
}

func (c *GeminiClient) Name() string {
	return "Gemini 1.5 Pro (Cloud)"
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
