package providers

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

// LocalEmbedder calls the embedding sidecar's /embed endpoint. The sidecar
// hosts sentence-transformer models on the host GPU so no text leaves the
// machine.
type LocalEmbedder struct {
	httpClient *http.Client
	embedURL   string
	model      string
}

type localEmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewLocalEmbedder(baseURL, model string) *LocalEmbedder {
	return &LocalEmbedder{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedURL:   strings.TrimSuffix(baseURL, "/") + "/embed",
		model:      model,
	}
}

// Embed implements the Embedder interface.
func (l *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(localEmbedRequest{Texts: texts, Model: l.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.embedURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the embedding service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embedResp localEmbedResponse
	if err := json.Unmarshal(bodyBytes, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts",
			len(embedResp.Embeddings), len(texts))
	}
	return embedResp.Embeddings, nil
}

// EmbedQuery implements the Embedder interface.
func (l *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := l.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// pingEmbeddingService verifies the sidecar is reachable before the local
// provider advertises models.
func pingEmbeddingService(ctx context.Context, baseURL string) error {
	healthURL := strings.TrimSuffix(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("embedding service unreachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service health returned status %d", resp.StatusCode)
	}
	return nil
}
