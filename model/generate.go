package model

import (
	"context"

	"ragify/types"
)

// GenerationMessage is one turn of the prompt sent to a generative model.
type GenerationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is the provider-agnostic generate capability input.
type GenerationRequest struct {
	Messages    []GenerationMessage
	Temperature float64
	MaxTokens   int
}

// Generator produces text from a message list. Implementations wrap one
// concrete backend; callers never know which.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (types.Answer, error)
}

// NewGenerator picks the provider implementation from config.
func NewGenerator(cfg types.Config) Generator {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAIGenerator(cfg.LLMURL, cfg.LLMModel, cfg.LLMAPIKey)
	default:
		return NewOllamaGenerator(cfg.LLMURL, cfg.LLMModel)
	}
}
