package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragify/types"
)

// OpenAIGenerator generates text through any OpenAI-compatible chat
// completions endpoint (OpenAI, DeepSeek, vLLM and friends).
type OpenAIGenerator struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewOpenAIGenerator(baseURL, model, apiKey string) *OpenAIGenerator {
	return &OpenAIGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []GenerationMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (types.Answer, error) {
	reqBody, err := json.Marshal(openAIChatRequest{
		Model:       g.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return types.Answer{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return types.Answer{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return types.Answer{}, types.WrapError(types.ErrModelUnavailable, err,
			"cannot reach the generation endpoint at %s; check LLM_URL", g.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.Answer{}, types.NewError(types.ErrModelUnavailable,
			"generation request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return types.Answer{}, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return types.Answer{}, types.NewError(types.ErrModelUnavailable, "generation endpoint returned no choices")
	}

	return types.Answer{
		Text:     strings.TrimSpace(chatResp.Choices[0].Message.Content),
		Provider: "openai",
		Model:    g.model,
	}, nil
}
