// Package api exposes the service over HTTP: JSON ingestion and query
// endpoints, and the asynchronous Slack slash-command endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clickpost/ragbot/internal/ingestion"
	"github.com/clickpost/ragbot/internal/retrieval"
	"github.com/clickpost/ragbot/internal/sanitize"
	"github.com/clickpost/ragbot/internal/slack"
)

const maxIngestBodySize = 10 << 20 // 10MB
const maxSlackBodySize = 1 << 20   // 1MB

// Ingestor runs the batched ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, chunks []ingestion.Chunk) (int, error)
}

// Answerer runs the retrieval-and-answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) (retrieval.Result, error)
}

// Searcher is the managed retrieve-and-generate service used by the Slack
// path.
type Searcher interface {
	AISearch(ctx context.Context, query string) (string, error)
}

// Deps wires the handler's collaborators.
type Deps struct {
	Ingestor Ingestor
	Answerer Answerer
	Search   Searcher
	Verifier *slack.Verifier
	Poster   *slack.Poster
	Tasks    *TaskGroup

	// QuerySanitizer cleans answers on the synchronous query path;
	// SlackSanitizer cleans answers delivered to Slack.
	QuerySanitizer sanitize.Sanitizer
	SlackSanitizer sanitize.Sanitizer
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/", handleInfo)
	r.Get("/health", handleHealth)
	r.Post("/ingest", handleIngest(deps))
	r.Post("/query", handleQuery(deps))
	r.Post("/slack", handleSlack(deps))

	return r
}

func handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "ClickPost RAG Bot",
		"routes": map[string]string{
			"ingest": "POST /ingest - Upload and embed chunks",
			"query":  "POST /query - Ask questions",
			"slack":  "POST /slack - Slack slash command",
		},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var chunks []ingestion.Chunk
		if err := json.NewDecoder(r.Body).Decode(&chunks); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("invalid request body: %v", err),
			})
			return
		}

		total, err := deps.Ingestor.Ingest(r.Context(), chunks)
		if err != nil {
			slog.Error("ingestion failed", "error", err, "inserted", total)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Successfully ingested %d chunks", total),
			"total":   total,
		})
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing question field"})
			return
		}

		result, err := deps.Answerer.Answer(r.Context(), req.Question)
		if errors.Is(err, retrieval.ErrEmptyQuestion) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing question field"})
			return
		}
		if err != nil {
			slog.Error("query failed", "question", req.Question, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"answer":   deps.QuerySanitizer.Sanitize(result.Answer),
			"sources":  result.Sources,
			"question": req.Question,
		})
	}
}

func handleSlack(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSlackBodySize))
		r.Body.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"text": "Bad request"})
			return
		}

		signature := r.Header.Get("X-Slack-Signature")
		timestamp := r.Header.Get("X-Slack-Request-Timestamp")
		if !deps.Verifier.Verify(signature, timestamp, body) {
			// Deliberately generic: bad signature and stale timestamp
			// are indistinguishable to the caller.
			writeJSON(w, http.StatusUnauthorized, map[string]string{"text": "Unauthorized"})
			return
		}

		cmd, err := slack.ParseCommand(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"text": "Bad request"})
			return
		}

		if cmd.Question == "" {
			writeJSON(w, http.StatusOK, slack.Message{
				ResponseType: slack.ResponseEphemeral,
				Text:         "Please provide a question. Usage: /askdocs <your question>",
			})
			return
		}
		if cmd.ResponseURL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"text": "Missing response_url"})
			return
		}

		// Fulfillment outlives this request: detach from the request
		// context and register with the task group so shutdown waits
		// for it. The acknowledgment below must not wait on the task.
		cmdID := uuid.New().String()
		ctx := context.WithoutCancel(r.Context())
		deps.Tasks.Go(func() {
			fulfill(ctx, deps, cmdID, cmd)
		})

		slog.Info("command acknowledged", "command_id", cmdID)
		writeJSON(w, http.StatusOK, slack.Message{
			ResponseType: slack.ResponseEphemeral,
			Text:         "Thinking...",
		})
	}
}

// fulfill answers one acknowledged command and delivers exactly one
// callback, success or failure. Callback delivery itself is at-most-once;
// its failure is only logged because no escalation target exists.
func fulfill(ctx context.Context, deps Deps, cmdID string, cmd slack.Command) {
	answer, err := deps.Search.AISearch(ctx, cmd.Question)
	if err != nil {
		slog.Error("command fulfillment failed", "command_id", cmdID, "error", err)
		if postErr := deps.Poster.Post(ctx, cmd.ResponseURL, slack.FailureMessage()); postErr != nil {
			slog.Error("failure callback undeliverable", "command_id", cmdID, "error", postErr)
		}
		return
	}

	msg := slack.AnswerMessage(cmd.Question, deps.SlackSanitizer.Sanitize(answer), nil)
	if err := deps.Poster.Post(ctx, cmd.ResponseURL, msg); err != nil {
		slog.Error("answer callback undeliverable", "command_id", cmdID, "error", err)
		return
	}
	slog.Info("command fulfilled", "command_id", cmdID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
