package index

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVectorize(t *testing.T, handler http.HandlerFunc) *Vectorize {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewVectorize(VectorizeConfig{
		BaseURL:   srv.URL,
		AccountID: "acct-1",
		APIToken:  "token-1",
		IndexName: "docs-index",
	})
}

func TestVectorize_UpsertSendsNDJSON(t *testing.T) {
	var lines []Record
	v := newTestVectorize(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/vectorize/v2/indexes/docs-index/upsert" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("Content-Type = %q", ct)
		}
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var rec Record
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				t.Errorf("invalid NDJSON line: %v", err)
				continue
			}
			lines = append(lines, rec)
		}
		w.Write([]byte(`{"success":true,"result":{"mutationId":"m-1"}}`))
	})

	records := []Record{
		{ID: "chunk-0", Values: []float32{0.1}, Metadata: Metadata{Endpoint: "a"}},
		{ID: "chunk-1", Values: []float32{0.2}, Metadata: Metadata{Endpoint: "b"}},
	}
	if err := v.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("server received %d lines, want 2", len(lines))
	}
	if lines[0].ID != "chunk-0" || lines[1].ID != "chunk-1" {
		t.Errorf("ids = %q, %q", lines[0].ID, lines[1].ID)
	}
}

func TestVectorize_UpsertEmptyIsNoop(t *testing.T) {
	called := false
	v := newTestVectorize(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	if err := v.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if called {
		t.Error("empty upsert should not hit the API")
	}
}

func TestVectorize_Query(t *testing.T) {
	v := newTestVectorize(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/vectorize/v2/indexes/docs-index/query" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TopK != 3 {
			t.Errorf("topK = %d, want 3", req.TopK)
		}
		if req.ReturnMetadata != "all" {
			t.Errorf("returnMetadata = %q", req.ReturnMetadata)
		}
		w.Write([]byte(`{"success":true,"result":{"matches":[
			{"id":"chunk-1","score":0.92,"metadata":{"endpoint":"track-order","summary":"s1","text":"t1"}},
			{"id":"chunk-4","score":0.81,"metadata":{"endpoint":"create-order","summary":"s2","text":"t2"}}
		]}}`))
	})

	matches, err := v.Query(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].ID != "chunk-1" || matches[0].Score != 0.92 {
		t.Errorf("first match = %+v", matches[0])
	}
	if matches[1].Metadata.Endpoint != "create-order" {
		t.Errorf("second match endpoint = %q", matches[1].Metadata.Endpoint)
	}
}

func TestVectorize_APIFailure(t *testing.T) {
	v := newTestVectorize(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"errors":[{"code":1001,"message":"index not found"}]}`))
	})
	if _, err := v.Query(context.Background(), []float32{0.1}, 3); err == nil {
		t.Fatal("expected error")
	}
}
