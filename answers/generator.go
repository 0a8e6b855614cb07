package answers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ragify/model"
	"ragify/types"
)

const (
	answerTemperature = 0.2
	answerMaxTokens   = 512

	// maxSourceTokens caps the total size of the numbered source blocks so a
	// wide retrieval never blows the model's context window.
	maxSourceTokens = 3000

	groundedSystemPrompt = `You are a careful assistant answering questions about a document library.
Answer ONLY from the numbered sources below. Cite sources using [S1], [S2] and so on after each claim.
If the sources do not contain the answer, say you don't know. Do not invent citations.`

	directSystemPrompt = `You are a helpful assistant. Answer the question from your own knowledge.
If you are not sure, say so.`
)

// maxChatTurns bounds how much conversation history is replayed to the model.
const maxChatTurns = 8

// Generator turns ranked chunks and questions into model calls.
type Generator struct {
	llm model.Generator
}

func NewGenerator(llm model.Generator) *Generator {
	return &Generator{llm: llm}
}

// FilterRelevant drops chunks whose raw cross-encoder score falls below
/// minScore. The gate reads CrossScore, not the fused Score: fused scores are
// min-max normalized within the candidate set, so the best candidate always
// fuses high even when every candidate is irrelevant in absolute terms. An
// empty result means nothing in the library qualifies and the caller should
// fall back to a direct answer.
func FilterRelevant(chunks []types.RetrievedChunk, minScore float64) []types.RetrievedChunk {
	var relevant []types.RetrievedChunk
	for _, c := range chunks {
		if c.CrossScore >= minScore {
			relevant = append(relevant, c)
		}
	}
	return relevant
}

func (g *Generator) GenerateAnswerFromChunks(ctx context.Context, question string, chunks []types.RetrievedChunk) (types.Answer, error) {
	if len(chunks) == 0 {
		return types.Answer{}, types.NewError(types.ErrNoSources,
			"grounded answer requested without any source chunks")
	}

	req := model.GenerationRequest{
		Messages: []model.GenerationMessage{
			{Role: "system", Content: groundedSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\n\n%s", question, sourceBlocks(chunks))},
		},
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
	return g.llm.Generate(ctx, req)
}

func (g *Generator) GenerateDirectAnswer(ctx context.Context, question string) (types.Answer, error) {
	req := model.GenerationRequest{
		Messages: []model.GenerationMessage{
			{Role: "system", Content: directSystemPrompt},
			{Role: "user", Content: question},
		},
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
	return g.llm.Generate(ctx, req)
}

// GenerateChatAnswerFromChunks replays recent conversation history and folds
// the retrieved sources into the latest user turn, so grounding stays tied to
// the question actually being answered.
func (g *Generator) GenerateChatAnswerFromChunks(ctx context.Context, turns []types.ConversationTurn, chunks []types.RetrievedChunk) (types.Answer, error) {
	history := recentTurns(turns, maxChatTurns)
	if len(history) == 0 {
		return types.Answer{}, types.NewError(types.ErrInvalidConversation, "conversation has no non-empty turns")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return types.Answer{}, types.NewError(types.ErrInvalidConversation,
			"latest conversation turn must be from the user, got %q", last.Role)
	}
	if len(chunks) == 0 {
		return types.Answer{}, types.NewError(types.ErrNoSources,
			"grounded chat answer requested without any source chunks")
	}

	messages := make([]model.GenerationMessage, 0, len(history)+1)
	messages = append(messages, model.GenerationMessage{Role: "system", Content: groundedSystemPrompt})
	for _, turn := range history[:len(history)-1] {
		messages = append(messages, model.GenerationMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, model.GenerationMessage{
		Role:    "user",
		Content: fmt.Sprintf("Question: %s\n\n%s", last.Content, sourceBlocks(chunks)),
	})

	req := model.GenerationRequest{
		Messages:    messages,
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
	return g.llm.Generate(ctx, req)
}

func recentTurns(turns []types.ConversationTurn, limit int) []types.ConversationTurn {
	var kept []types.ConversationTurn
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) != "" {
			kept = append(kept, turn)
		}
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

// sourceBlocks renders chunks as numbered sources. Sources that would push
// the total past the token budget are dropped from the tail; at least one
// source always survives.
func sourceBlocks(chunks []types.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Sources:\n")

	used := 0
	for i, c := range chunks {
		block := fmt.Sprintf("\nSource %d (chunk %s, document %q):\n%s\n", i+1, c.ID, c.DocumentName, c.Content)
		tokens := countTokens(block)
		if i > 0 && used+tokens > maxSourceTokens {
			break
		}
		b.WriteString(block)
		used += tokens
	}
	return b.String()
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func countTokens(s string) int {
	encoderOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		// Rough fallback when the encoding files are unavailable.
		return len(s) / 4
	}
	return len(encoder.Encode(s, nil, nil))
}
