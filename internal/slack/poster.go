package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Poster delivers delayed responses to a command's response URL.
// Delivery is at-most-once: a failed POST is returned to the caller for
// logging but never retried.
type Poster struct {
	httpClient *http.Client
}

// NewPoster creates a Poster. If client is nil a default with a 15s timeout
// is used.
func NewPoster(client *http.Client) *Poster {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Poster{httpClient: client}
}

// Post sends msg to responseURL as JSON.
func (p *Poster) Post(ctx context.Context, responseURL string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
