// Package embedder is an HTTP client for the project's configured external
// embedding API (external_services.json's embedder block). It implements
// rag.Embedder.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/veighnsche/ralph/internal/rerr"
)

// Client calls an external HTTP embedding endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// New builds a Client for an embedder reachable at baseURL.
func New(baseURL, model, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed calls the configured endpoint and returns the resulting vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "marshal embed request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "build embed request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "call embedder: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, rerr.New(rerr.CodeInternal, "embedder returned %s: %s", resp.Status, string(data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, rerr.New(rerr.CodeInternal, "decode embed response: %v", err)
	}
	if len(out.Embedding) == 0 {
		return nil, rerr.New(rerr.CodeInternal, "embedder returned empty vector")
	}
	return out.Embedding, nil
}

// Model returns the embedding model name this Client was configured with,
// stored alongside each Embedding row so a later model change can be
// detected.
func (c *Client) Model() string { return c.model }
