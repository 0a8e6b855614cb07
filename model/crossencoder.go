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

// CrossEncoderInterface scores one (query, text) pair for relevance.
type CrossEncoderInterface interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// CrossEncoder talks to a scorer sidecar serving the pairwise relevance
// model. The sidecar returns raw classifier logits; decoding into a
// probability happens here where the output shape is known. The sidecar is
// probed lazily on first use and only a successful probe is cached.
type CrossEncoder struct {
	baseURL string
	model   string
	client  *http.Client

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

func NewCrossEncoder(baseURL, model string) *CrossEncoder {
	return &CrossEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type scoreRequest struct {
	Model string `json:"model"`
	Query string `json:"query"`
	Text  string `json:"text"`
}

type scoreResponse struct {
	Logits []float64 `json:"logits"`
}

func (c *CrossEncoder) Score(ctx context.Context, query, text string) (float64, error) {
	if err := c.ensureReady(ctx); err != nil {
		return 0, err
	}

	reqBody, err := json.Marshal(scoreRequest{Model: c.model, Query: query, Text: text})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("failed to create score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, types.WrapError(types.ErrModelUnavailable, err,
			"cannot reach the cross-encoder scorer at %s; check CROSS_ENCODER_URL and ensure the scorer is running", c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, types.NewError(types.ErrModelUnavailable,
			"cross-encoder scoring failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return 0, fmt.Errorf("failed to decode score response: %w", err)
	}
	if len(scoreResp.Logits) == 0 {
		return 0, types.NewError(types.ErrModelUnavailable,
			"cross-encoder returned no logits; the model %q may be misconfigured", c.model)
	}

	return NewLogits(scoreResp.Logits).RelevanceScore(), nil
}

func (c *CrossEncoder) ensureReady(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if ready {
		return nil
	}

	_, err, _ := c.group.Do("init", func() (any, error) {
		if err := c.probe(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.ready = true
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// probe checks the sidecar is up and actually serves the configured model.
func (c *CrossEncoder) probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.WrapError(types.ErrDependencyMissing, err,
			"the cross-encoder scorer at %s is unreachable; start the scorer (see README) or set CROSS_ENCODER_URL", c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.NewError(types.ErrModelUnavailable,
			"cross-encoder scorer probe failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var models struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return fmt.Errorf("failed to decode scorer model list: %w", err)
	}
	for _, m := range models.Models {
		if m == c.model {
			return nil
		}
	}
	return types.NewError(types.ErrDependencyMissing,
		"cross-encoder model %q is not loaded on the scorer; download it into the scorer cache and restart", c.model)
}
