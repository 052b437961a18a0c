package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/clickpost/ragbot/internal/ai"
	"github.com/clickpost/ragbot/internal/api"
	"github.com/clickpost/ragbot/internal/config"
	"github.com/clickpost/ragbot/internal/index"
	"github.com/clickpost/ragbot/internal/ingestion"
	"github.com/clickpost/ragbot/internal/retrieval"
	"github.com/clickpost/ragbot/internal/sanitize"
	"github.com/clickpost/ragbot/internal/slack"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ragbot server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ragbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Slack.SigningSecret == "" {
		printWarning("SLACK_SIGNING_SECRET is not set; /slack will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aiClient := ai.New(ai.Config{
		BaseURL:    cfg.Cloudflare.BaseURL,
		AccountID:  cfg.Cloudflare.AccountID,
		APIToken:   cfg.Cloudflare.APIToken,
		EmbedModel: cfg.Cloudflare.EmbedModel,
		GenModel:   cfg.Cloudflare.GenModel,
		RAGName:    cfg.Cloudflare.RAGName,
	})

	var store index.Store
	switch cfg.Index.Backend {
	case "vectorize":
		store = index.NewVectorize(index.VectorizeConfig{
			BaseURL:   cfg.Cloudflare.BaseURL,
			AccountID: cfg.Cloudflare.AccountID,
			APIToken:  cfg.Cloudflare.APIToken,
			IndexName: cfg.Index.Name,
		})
		slog.Info("using Vectorize index", "index", cfg.Index.Name)
	default:
		local, err := index.OpenSQLite(cfg.Index.DataDir)
		if err != nil {
			return fmt.Errorf("opening local index: %w", err)
		}
		defer func() {
			if err := local.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing index: %v\n", err)
			}
		}()
		store = local
		slog.Info("using local SQLite index", "data_dir", cfg.Index.DataDir)
	}

	pipeline := ingestion.NewPipeline(aiClient, store, ingestion.DefaultBatchSize)
	answerer := retrieval.NewAnswerer(aiClient, store, aiClient, cfg.Retrieval.TopK)

	deps := api.Deps{
		Ingestor:       pipeline,
		Answerer:       answerer,
		Search:         aiClient,
		Verifier:       slack.NewVerifier(cfg.Slack.SigningSecret),
		Poster:         slack.NewPoster(nil),
		Tasks:          &api.TaskGroup{},
		QuerySanitizer: sanitize.Sanitizer{StripCodeRefs: true},
		SlackSanitizer: sanitize.Sanitizer{StripCodeRefs: cfg.Sanitizer.StripCodeRefs, SlackMarkup: true},
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server over stdio, alongside HTTP.
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ragbot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Let acknowledged Slack commands finish before the server stops
	// accepting connections; their callbacks go out over the network,
	// not through this server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := deps.Tasks.Wait(shutdownCtx); err != nil {
		slog.Warn("background tasks did not finish before shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			Status string `json:"status"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK && decodeErr == nil && health.Status == "ok" {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Index backend", "%s", cfg.Index.Backend)
	if cfg.Index.Backend == "sqlite" {
		printStatus("Data dir", "%s", cfg.Index.DataDir)
	} else {
		printStatus("Index name", "%s", cfg.Index.Name)
	}
	printStatus("Embed model", "%s", cfg.Cloudflare.EmbedModel)
	printStatus("Gen model", "%s", cfg.Cloudflare.GenModel)
	printStatus("AutoRAG", "%s", cfg.Cloudflare.RAGName)
	if cfg.Slack.SigningSecret == "" {
		printStatus("Slack", "signing secret not set")
	} else {
		printStatus("Slack", "signing secret configured")
	}
	return nil
}
