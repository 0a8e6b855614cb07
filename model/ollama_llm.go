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

// OllamaGenerator generates text through the Ollama chat API.
type OllamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	return &OllamaGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []GenerationMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (g *OllamaGenerator) Generate(ctx context.Context, req GenerationRequest) (types.Answer, error) {
	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    g.model,
		Messages: req.Messages,
		Stream:   false,
		Options: ollamaChatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return types.Answer{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return types.Answer{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return types.Answer{}, types.WrapError(types.ErrModelUnavailable, err,
			"cannot reach the generation model at %s; check LLM_URL and ensure Ollama is running", g.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.Answer{}, types.NewError(types.ErrModelUnavailable,
			"generation request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return types.Answer{}, fmt.Errorf("failed to decode chat response: %w", err)
	}

	return types.Answer{
		Text:     strings.TrimSpace(chatResp.Message.Content),
		Provider: "ollama",
		Model:    g.model,
	}, nil
}
