package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// EmbedBatch embeds texts in configured batch sizes and returns one vector
// per input, in input order. Without credentials it returns zero vectors of
// the configured dimension so the rest of the pipeline keeps working in
// development environments.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if !c.HasCredentials() {
		log.Printf("ai: no API key configured, using zero vectors for %d texts", len(texts))
		result := make([][]float32, len(texts))
		for i := range result {
			result[i] = make([]float32, c.cfg.EmbeddingDimension)
		}
		return result, nil
	}

	batchSize := c.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}

	if len(result) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingProvider, len(result), len(texts))
	}
	return result, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request failed: %v", ErrEmbeddingProvider, err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed: %v", ErrEmbeddingProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrEmbeddingProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed: %v", ErrEmbeddingProvider, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingProvider, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response failed: %v", ErrEmbeddingProvider, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingProvider, len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		if c.cfg.EmbeddingDimension > 0 && len(parsed.Data[i].Embedding) != c.cfg.EmbeddingDimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				ErrEmbeddingProvider, i, len(parsed.Data[i].Embedding), c.cfg.EmbeddingDimension)
		}
		vectors[i] = parsed.Data[i].Embedding
	}
	return vectors, nil
}
