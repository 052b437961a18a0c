package index

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

// Compile-time check that Vectorize implements Store.
var _ Store = (*Vectorize)(nil)

const vectorizeBaseURL = "https://api.cloudflare.com/client/v4"

// Vectorize is a REST client for a Cloudflare Vectorize v2 index.
type Vectorize struct {
	baseURL    string
	accountID  string
	token      string
	indexName  string
	httpClient *http.Client
}

// VectorizeConfig configures the Vectorize client. BaseURL is only
// overridden in tests.
type VectorizeConfig struct {
	BaseURL   string
	AccountID string
	APIToken  string
	IndexName string
	Timeout   time.Duration
}

// NewVectorize creates a client for the configured index.
func NewVectorize(cfg VectorizeConfig) *Vectorize {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = vectorizeBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Vectorize{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountID:  cfg.AccountID,
		token:      cfg.APIToken,
		indexName:  cfg.IndexName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upsert writes records to the index. The v2 upsert endpoint takes NDJSON:
// one vector object per line.
func (v *Vectorize) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
	}

	url := fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s/upsert", v.baseURL, v.accountID, v.indexName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("creating upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Authorization", "Bearer "+v.token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkEnvelope(resp, nil); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

type queryRequest struct {
	Vector         []float32 `json:"vector"`
	TopK           int       `json:"topK"`
	ReturnMetadata string    `json:"returnMetadata"`
}

type queryResult struct {
	Matches []Match `json:"matches"`
}

// Query returns the topK nearest neighbors with full metadata.
func (v *Vectorize) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	body, err := json.Marshal(queryRequest{
		Vector:         vector,
		TopK:           topK,
		ReturnMetadata: "all",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s/query", v.baseURL, v.accountID, v.indexName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()

	var result queryResult
	if err := checkEnvelope(resp, &result); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return result.Matches, nil
}

// envelope is the Cloudflare API response wrapper.
type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

// checkEnvelope validates the HTTP status and API envelope, decoding the
// result into out when out is non-nil.
func checkEnvelope(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		if len(env.Errors) > 0 {
			return fmt.Errorf("API error %d: %s", env.Errors[0].Code, env.Errors[0].Message)
		}
		return fmt.Errorf("API reported failure")
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}
