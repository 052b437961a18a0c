// Package ai is a REST client for the Cloudflare Workers AI and AutoRAG
// APIs: text embeddings, instruction-following generation, and managed
// corpus search.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client communicates with the Cloudflare API over HTTP.
type Client struct {
	baseURL    string
	accountID  string
	token      string
	embedModel string
	genModel   string
	ragName    string
	httpClient *http.Client
}

// Config configures a Client. BaseURL is only overridden in tests.
type Config struct {
	BaseURL    string
	AccountID  string
	APIToken   string
	EmbedModel string
	GenModel   string
	RAGName    string
	Timeout    time.Duration
}

// New creates a Client from cfg, applying defaults for the base URL and
// timeout.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountID:  cfg.AccountID,
		token:      cfg.APIToken,
		embedModel: cfg.EmbedModel,
		genModel:   cfg.GenModel,
		ragName:    cfg.RAGName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiEnvelope is the common Cloudflare response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// embedResult mirrors the Workers AI embedding model output.
type embedResult struct {
	Data [][]float32 `json:"data"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body := map[string]string{"text": text}
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.embedModel)

	raw, err := c.postJSON(ctx, url, body)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}

	var result embedResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding embed result: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0]) == 0 {
		return nil, fmt.Errorf("embed result contains no vector")
	}
	return result.Data[0], nil
}

// Generate runs the generation model with a system instruction and an input
// prompt, returning the generated text.
func (c *Client) Generate(ctx context.Context, instructions, input string) (string, error) {
	body := map[string]string{
		"instructions": instructions,
		"input":        input,
	}
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.genModel)

	raw, err := c.postJSON(ctx, url, body)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}

	gen, err := resolveGeneration(raw)
	if err != nil {
		return "", fmt.Errorf("decoding generate result: %w", err)
	}
	return gen.text, nil
}

// AISearch queries the managed AutoRAG search service, which retrieves from
// the corpus and generates an answer in one call.
func (c *Client) AISearch(ctx context.Context, query string) (string, error) {
	body := map[string]string{"query": query}
	url := fmt.Sprintf("%s/accounts/%s/autorag/rags/%s/ai-search", c.baseURL, c.accountID, c.ragName)

	raw, err := c.postJSON(ctx, url, body)
	if err != nil {
		return "", fmt.Errorf("ai-search request: %w", err)
	}

	gen, err := resolveGeneration(raw)
	if err != nil {
		return "", fmt.Errorf("decoding ai-search result: %w", err)
	}
	return gen.text, nil
}

// postJSON POSTs body to url and returns the envelope's result field.
func (c *Client) postJSON(ctx context.Context, url string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		if len(env.Errors) > 0 {
			return nil, fmt.Errorf("API error %d: %s", env.Errors[0].Code, env.Errors[0].Message)
		}
		return nil, fmt.Errorf("API reported failure")
	}
	return env.Result, nil
}
