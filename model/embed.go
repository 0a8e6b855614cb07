package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ragify/types"
)

// EmbedderInterface turns batches of text into fixed-dimension vectors.
type EmbedderInterface interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// OllamaEmbedder produces embeddings through the Ollama batch embed API.
// The model is verified lazily on first use; a failed verification is not
// cached, so the next call retries cleanly.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedTexts returns one vector per input text, order preserved. Empty input
// yields empty output without touching the network.
func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, types.WrapError(types.ErrModelUnavailable, err,
			"cannot reach the embedding service at %s; check OLLAMA_URL and ensure Ollama is running", e.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, types.NewError(types.ErrModelUnavailable,
			"embedding request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, types.NewError(types.ErrEmbeddingCountMismatch,
			"embedding service returned %d vectors for %d inputs", len(embedResp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(embedResp.Embeddings))
	for i, raw := range embedResp.Embeddings {
		if len(raw) == 0 {
			return nil, types.NewError(types.ErrEmptyEmbedding,
				"embedding model returned an empty vector for input %d; check the input text", i)
		}
		if len(raw) != len(embedResp.Embeddings[0]) {
			return nil, types.NewError(types.ErrDimensionMismatch,
				"embedding %d has dimension %d, expected %d", i, len(raw), len(embedResp.Embeddings[0]))
		}
		vec := make([]float32, len(raw))
		for j, v := range raw {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// ensureReady verifies the model exists on the server exactly once across
// concurrent callers. Only success is cached.
func (e *OllamaEmbedder) ensureReady(ctx context.Context) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if ready {
		return nil
	}

	_, err, _ := e.group.Do("init", func() (any, error) {
		if err := e.showModel(ctx); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()
		return nil, nil
	})
	return err
}

func (e *OllamaEmbedder) showModel(ctx context.Context) error {
	reqBody, _ := json.Marshal(map[string]string{"model": e.model})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/show", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create show request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return types.WrapError(types.ErrModelUnavailable, err,
			"cannot reach the embedding service at %s; check OLLAMA_URL and ensure Ollama is running", e.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.NewError(types.ErrDependencyMissing,
			"embedding model %q is not available; run `ollama pull %s` and retry", e.model, e.model)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.NewError(types.ErrModelUnavailable,
			"embedding model check failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
