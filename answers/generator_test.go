package answers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragify/model"
	"ragify/types"
)

// capturingLLM records the last request and replies with a canned answer.
type capturingLLM struct {
	lastReq model.GenerationRequest
}

func (c *capturingLLM) Generate(ctx context.Context, req model.GenerationRequest) (types.Answer, error) {
	c.lastReq = req
	return types.Answer{Text: "the answer [S1]", Provider: "fake", Model: "fake-model"}, nil
}

func rankedChunks() []types.RetrievedChunk {
	return []types.RetrievedChunk{
		{ID: "c1", Content: "refunds are issued within 30 days", DocumentName: "policy.pdf", Score: 0.8},
		{ID: "c2", Content: "contact support to start a refund", DocumentName: "faq.md", Score: 0.5},
	}
}

func TestGenerateAnswerFromChunks_NoSources(t *testing.T) {
	g := NewGenerator(&capturingLLM{})

	_, err := g.GenerateAnswerFromChunks(context.Background(), "question", nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrNoSources))
}

func TestGenerateAnswerFromChunks_PromptShape(t *testing.T) {
	llm := &capturingLLM{}
	g := NewGenerator(llm)

	answer, err := g.GenerateAnswerFromChunks(context.Background(), "what is the refund policy?", rankedChunks())
	require.NoError(t, err)
	assert.Equal(t, "fake", answer.Provider)

	require.Len(t, llm.lastReq.Messages, 2)
	system := llm.lastReq.Messages[0]
	user := llm.lastReq.Messages[1]

	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "[S1]")
	assert.Contains(t, system.Content, "don't know")

	assert.Equal(t, "user", user.Role)
	assert.Contains(t, user.Content, "what is the refund policy?")
	assert.Contains(t, user.Content, "Source 1")
	assert.Contains(t, user.Content, "Source 2")
	assert.Contains(t, user.Content, "chunk c1")
	assert.Contains(t, user.Content, "refunds are issued within 30 days")

	assert.InDelta(t, answerTemperature, llm.lastReq.Temperature, 1e-9)
	assert.Equal(t, answerMaxTokens, llm.lastReq.MaxTokens)
}

func TestGenerateDirectAnswer_NoSourceBlocks(t *testing.T) {
	llm := &capturingLLM{}
	g := NewGenerator(llm)

	_, err := g.GenerateDirectAnswer(context.Background(), "what is the capital of France?")
	require.NoError(t, err)

	require.Len(t, llm.lastReq.Messages, 2)
	assert.NotContains(t, llm.lastReq.Messages[1].Content, "Source 1")
	assert.Equal(t, "what is the capital of France?", llm.lastReq.Messages[1].Content)
}

func TestGenerateChatAnswerFromChunks_FoldsSourcesIntoLatestTurn(t *testing.T) {
	llm := &capturingLLM{}
	g := NewGenerator(llm)

	turns := []types.ConversationTurn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi, how can I help?"},
		{Role: "user", Content: "what is the refund policy?"},
	}
	_, err := g.GenerateChatAnswerFromChunks(context.Background(), turns, rankedChunks())
	require.NoError(t, err)

	msgs := llm.lastReq.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, "hi, how can I help?", msgs[2].Content)

	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "what is the refund policy?")
	assert.Contains(t, last.Content, "Source 1")

	for _, m := range msgs[:len(msgs)-1] {
		assert.NotContains(t, m.Content, "Source 1")
	}
}

func TestGenerateChatAnswerFromChunks_LatestTurnMustBeUser(t *testing.T) {
	g := NewGenerator(&capturingLLM{})

	turns := []types.ConversationTurn{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	}
	_, err := g.GenerateChatAnswerFromChunks(context.Background(), turns, rankedChunks())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrInvalidConversation))
}

func TestGenerateChatAnswerFromChunks_KeepsLastEightNonEmptyTurns(t *testing.T) {
	llm := &capturingLLM{}
	g := NewGenerator(llm)

	var turns []types.ConversationTurn
	for i := 0; i < 6; i++ {
		turns = append(turns,
			types.ConversationTurn{Role: "user", Content: "question"},
			types.ConversationTurn{Role: "assistant", Content: "answer"},
		)
	}
	turns = append(turns,
		types.ConversationTurn{Role: "assistant", Content: "  "},
		types.ConversationTurn{Role: "user", Content: "latest question"},
	)

	_, err := g.GenerateChatAnswerFromChunks(context.Background(), turns, rankedChunks())
	require.NoError(t, err)

	// system prompt + 8 history turns (the last of which carries the sources)
	assert.Len(t, llm.lastReq.Messages, 9)
	assert.Contains(t, llm.lastReq.Messages[8].Content, "latest question")
}

func TestGenerateChatAnswerFromChunks_EmptyConversation(t *testing.T) {
	g := NewGenerator(&capturingLLM{})

	turns := []types.ConversationTurn{{Role: "user", Content: "   "}}
	_, err := g.GenerateChatAnswerFromChunks(context.Background(), turns, rankedChunks())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrInvalidConversation))
}

func TestFilterRelevant(t *testing.T) {
	chunks := []types.RetrievedChunk{
		{ID: "a", Score: 0.90, CrossScore: 0.80},
		{ID: "b", Score: 0.60, CrossScore: 0.35},
		{ID: "c", Score: 0.40, CrossScore: 0.34},
	}

	relevant := FilterRelevant(chunks, 0.35)
	require.Len(t, relevant, 2)
	assert.Equal(t, "a", relevant[0].ID)
	assert.Equal(t, "b", relevant[1].ID)

	assert.Empty(t, FilterRelevant(nil, 0.35))
}

// Fused scores are normalized within the candidate set, so the top candidate
// carries a high fused Score even when every cross score is hopeless. The
// gate must read the raw cross score and empty out in that case.
func TestFilterRelevant_UniformlyWeakCrossScoresEmptyTheGate(t *testing.T) {
	chunks := []types.RetrievedChunk{
		{ID: "a", Score: 0.70, CrossScore: 0.03},
		{ID: "b", Score: 0.50, CrossScore: 0.02},
		{ID: "c", Score: 0.30, CrossScore: 0.01},
	}

	assert.Empty(t, FilterRelevant(chunks, 0.35))
}
