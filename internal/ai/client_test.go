package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL,
		AccountID:  "acct-1",
		APIToken:   "token-1",
		EmbedModel: "@cf/baai/bge-small-en-v1.5",
		GenModel:   "@cf/openai/gpt-oss-20b",
		RAGName:    "docs-rag",
	})
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/ai/run/@cf/baai/bge-small-en-v1.5" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Errorf("text = %q", body["text"])
		}
		w.Write([]byte(`{"success":true,"result":{"data":[[0.1,0.2,0.3]]}}`))
	})

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
}

func TestEmbed_EmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":{"data":[]}}`))
	})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding data")
	}
}

func TestGenerate_StructuredResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":{"response":"the answer"}}`))
	})
	got, err := c.Generate(context.Background(), "be concise", "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestGenerate_RawStringResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":"plain text answer"}`))
	})
	got, err := c.Generate(context.Background(), "be concise", "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "plain text answer" {
		t.Errorf("got %q", got)
	}
}

func TestAISearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/autorag/rags/docs-rag/ai-search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["query"] != "how do I track?" {
			t.Errorf("query = %q", body["query"])
		}
		w.Write([]byte(`{"success":true,"result":{"response":"track like this"}}`))
	})

	got, err := c.AISearch(context.Background(), "how do I track?")
	if err != nil {
		t.Fatalf("AISearch: %v", err)
	}
	if got != "track like this" {
		t.Errorf("got %q", got)
	}
}

func TestPostJSON_APIFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"errors":[{"code":7003,"message":"no such model"}]}`))
	})
	_, err := c.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "no such model") {
		t.Errorf("error %q does not mention API message", err)
	}
}

func TestPostJSON_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestResolveGeneration_Kinds(t *testing.T) {
	g, err := resolveGeneration(json.RawMessage(`"raw"`))
	if err != nil || g.kind != generationRawString || g.text != "raw" {
		t.Errorf("raw string: %+v, %v", g, err)
	}

	g, err = resolveGeneration(json.RawMessage(`{"response":"obj"}`))
	if err != nil || g.kind != generationStructured || g.text != "obj" {
		t.Errorf("structured: %+v, %v", g, err)
	}

	if _, err := resolveGeneration(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected error for array result")
	}
}
