// Package retrieval answers questions over the indexed documentation
// corpus: embed the question, find the nearest chunks, and generate a
// grounded answer from them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clickpost/ragbot/internal/index"
)

// DefaultTopK is the number of nearest neighbors fetched per question.
const DefaultTopK = 3

// FallbackAnswer is returned when the index has nothing relevant. No
// generation call is made in that case.
const FallbackAnswer = "I couldn't find relevant information in the documentation. Please rephrase your question."

// systemInstructions constrains the generation model to the retrieved
// context.
const systemInstructions = "You are a helpful assistant for ClickPost API integration. " +
	"Answer questions based ONLY on the provided documentation context. " +
	"If the answer isn't in the context, say so. Be concise and technical."

// ErrEmptyQuestion is returned when the question is missing or blank.
var ErrEmptyQuestion = errors.New("question is required")

// Embedder generates an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from a system instruction and an input
// prompt.
type Generator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// Source identifies one retrieved chunk backing an answer, in rank order.
type Source struct {
	Endpoint string  `json:"endpoint"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
}

// Result is a generated answer with its sources.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Answerer composes embedding, vector search, and generation.
type Answerer struct {
	embedder  Embedder
	store     index.Store
	generator Generator
	topK      int
	logger    *slog.Logger
}

// NewAnswerer creates an Answerer. If topK <= 0, DefaultTopK is used.
func NewAnswerer(embedder Embedder, store index.Store, generator Generator, topK int) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{
		embedder:  embedder,
		store:     store,
		generator: generator,
		topK:      topK,
		logger:    slog.Default(),
	}
}

// Answer embeds the question, retrieves the nearest chunks, and generates
// an answer grounded in them. Zero matches short-circuit to FallbackAnswer
// with empty sources.
func (a *Answerer) Answer(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, ErrEmptyQuestion
	}

	vec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := a.store.Query(ctx, vec, a.topK)
	if err != nil {
		return Result{}, fmt.Errorf("querying index: %w", err)
	}
	a.logger.Info("retrieved chunks", "question", question, "matches", len(matches))

	if len(matches) == 0 {
		return Result{Answer: FallbackAnswer, Sources: []Source{}}, nil
	}

	input := fmt.Sprintf("Context from documentation:\n\n%s\n\nQuestion: %s\n\nAnswer:",
		buildContext(matches), question)

	answer, err := a.generator.Generate(ctx, systemInstructions, input)
	if err != nil {
		return Result{}, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			Endpoint: m.Metadata.Endpoint,
			Summary:  m.Metadata.Summary,
			Score:    m.Score,
		}
	}

	return Result{Answer: answer, Sources: sources}, nil
}

// buildContext assembles the grounding context: one labeled block per match
// in descending-score order, joined by a separator.
func buildContext(matches []index.Match) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("[Source %d - %s]\n%s\n", i+1, m.Metadata.Endpoint, m.Metadata.Text)
	}
	return strings.Join(blocks, "\n---\n\n")
}
