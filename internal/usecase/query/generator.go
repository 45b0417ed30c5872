package query

import (
	"context"
	"fmt"
	"log"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

const answerSystemPrompt = "You are a helpful assistant for software developers. " +
	"Your task is to answer questions based *only* on the provided context from a codebase. " +
	"Do not use any external knowledge. " +
	"If the answer is not found in the context, state that clearly. " +
	"Format code snippets using markdown."

// apologyAnswer is returned verbatim whenever generation fails. It flows
// through the same path as a real answer, caching included.
const apologyAnswer = "Sorry, I encountered an error while generating the answer."

// AnswerGenerator produces a grounded answer for a question from retrieved
// context text.
type AnswerGenerator struct {
	router repository.LLMRouter
}

// NewAnswerGenerator creates an AnswerGenerator.
func NewAnswerGenerator(router repository.LLMRouter) *AnswerGenerator {
	return &AnswerGenerator{router: router}
}

// Generate asks the routed model to answer question using only contextText.
// It never fails: any generation problem yields the apology answer.
func (g *AnswerGenerator) Generate(ctx context.Context, question, contextText string) string {
	client := g.router.RouteLLMTask(repository.TaskType("answer_generation"))
	if client == nil {
		log.Printf("[Generator] ⚠️ No generation client available")
		return apologyAnswer
	}

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)

	answer, err := client.Generate(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		log.Printf("[Generator] ⚠️ Answer generation failed: %v", err)
		return apologyAnswer
	}
	return answer
}
