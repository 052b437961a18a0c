package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clickpost/ragbot/internal/index"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

type mockIndex struct {
	matches []index.Match
	err     error
}

func (m *mockIndex) Upsert(_ context.Context, _ []index.Record) error {
	return errors.New("not implemented")
}

func (m *mockIndex) Query(_ context.Context, _ []float32, _ int) ([]index.Match, error) {
	return m.matches, m.err
}

type mockGenerator struct {
	calls        int
	instructions string
	input        string
	answer       string
	err          error
}

func (m *mockGenerator) Generate(_ context.Context, instructions, input string) (string, error) {
	m.calls++
	m.instructions = instructions
	m.input = input
	return m.answer, m.err
}

func okEmbedder() *mockEmbedder {
	return &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{0.1, 0.2}, nil
		},
	}
}

func someMatches() []index.Match {
	return []index.Match{
		{ID: "chunk-3", Score: 0.91, Metadata: index.Metadata{
			Endpoint: "track-order", Summary: "Track an order", Text: "tracking docs",
		}},
		{ID: "chunk-7", Score: 0.84, Metadata: index.Metadata{
			Endpoint: "create-order", Summary: "Create an order", Text: "creation docs",
		}},
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	a := NewAnswerer(okEmbedder(), &mockIndex{}, &mockGenerator{}, 3)

	for _, q := range []string{"", "   "} {
		if _, err := a.Answer(context.Background(), q); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Answer(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
}

func TestAnswer_ZeroMatchesSkipsGeneration(t *testing.T) {
	gen := &mockGenerator{}
	a := NewAnswerer(okEmbedder(), &mockIndex{}, gen, 3)

	result, err := a.Answer(context.Background(), "how do I track orders?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != FallbackAnswer {
		t.Errorf("Answer = %q, want fallback", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", result.Sources)
	}
	if result.Sources == nil {
		t.Error("Sources should be an empty slice, not nil")
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
}

func TestAnswer_BuildsGroundingContext(t *testing.T) {
	gen := &mockGenerator{answer: "generated answer"}
	a := NewAnswerer(okEmbedder(), &mockIndex{matches: someMatches()}, gen, 3)

	result, err := a.Answer(context.Background(), "how do I track orders?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != "generated answer" {
		t.Errorf("Answer = %q", result.Answer)
	}

	if !strings.Contains(gen.input, "[Source 1 - track-order]\ntracking docs\n") {
		t.Errorf("input missing first source block:\n%s", gen.input)
	}
	if !strings.Contains(gen.input, "[Source 2 - create-order]\ncreation docs\n") {
		t.Errorf("input missing second source block:\n%s", gen.input)
	}
	if !strings.Contains(gen.input, "\n---\n\n") {
		t.Errorf("input missing block separator:\n%s", gen.input)
	}
	if !strings.Contains(gen.input, "Question: how do I track orders?") {
		t.Errorf("input missing question:\n%s", gen.input)
	}
	if !strings.Contains(gen.instructions, "ONLY on the provided documentation context") {
		t.Errorf("instructions = %q", gen.instructions)
	}
}

func TestAnswer_SourcesPreserveRankOrder(t *testing.T) {
	gen := &mockGenerator{answer: "ok"}
	a := NewAnswerer(okEmbedder(), &mockIndex{matches: someMatches()}, gen, 3)

	result, err := a.Answer(context.Background(), "question")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(result.Sources))
	}
	if result.Sources[0].Endpoint != "track-order" || result.Sources[0].Score != 0.91 {
		t.Errorf("Sources[0] = %+v", result.Sources[0])
	}
	if result.Sources[1].Endpoint != "create-order" || result.Sources[1].Score != 0.84 {
		t.Errorf("Sources[1] = %+v", result.Sources[1])
	}
}

func TestAnswer_EmbedError(t *testing.T) {
	embedder := &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("embedding down")
		},
	}
	a := NewAnswerer(embedder, &mockIndex{}, &mockGenerator{}, 3)
	if _, err := a.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswer_IndexError(t *testing.T) {
	a := NewAnswerer(okEmbedder(), &mockIndex{err: errors.New("index down")}, &mockGenerator{}, 3)
	if _, err := a.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswer_GeneratorError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("model down")}
	a := NewAnswerer(okEmbedder(), &mockIndex{matches: someMatches()}, gen, 3)
	if _, err := a.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}
