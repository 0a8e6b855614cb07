package api

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"ragify/answers"
	"ragify/rerank"
	"ragify/search"
	"ragify/types"
)

type QAHandler struct {
	searcher  *search.Searcher
	reranker  *rerank.Reranker
	generator *answers.Generator

	retrieveLimit int
	rerankLimit   int
	minScore      float64
}

func NewQAHandler(searcher *search.Searcher, reranker *rerank.Reranker, generator *answers.Generator, minScore float64) *QAHandler {
	return &QAHandler{
		searcher:      searcher,
		reranker:      reranker,
		generator:     generator,
		retrieveLimit: search.DefaultLimit,
		rerankLimit:   rerank.DefaultLimit,
		minScore:      minScore,
	}
}

// HandleQA retrieves, reranks and answers a single question. A generation
// failure is reported in the response body next to the retrieved results
// instead of failing the whole request.
func (h *QAHandler) HandleQA(c *fiber.Ctx) error {
	var params types.QuestionParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ranked, err := h.retrieve(c, params.Question)
	if err != nil {
		return err
	}

	resp := &types.QAResponse{
		Results:   ranked,
		Timestamp: time.Now(),
	}

	relevant := answers.FilterRelevant(ranked, h.minScore)
	var answer types.Answer
	if len(relevant) > 0 {
		answer, err = h.generator.GenerateAnswerFromChunks(c.Context(), params.Question, relevant)
	} else {
		log.Printf("[QA] No chunk cleared the relevance gate %.2f, answering directly", h.minScore)
		answer, err = h.generator.GenerateDirectAnswer(c.Context(), params.Question)
	}
	if err != nil {
		resp.AnswerError = err.Error()
	} else {
		resp.Answer = &answer
	}

	return c.JSON(resp)
}

// HandleChat answers the latest user turn of a conversation, grounded in the
// library when retrieval finds anything relevant.
func (h *QAHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	question, err := latestUserTurn(params.Messages)
	if err != nil {
		return err
	}

	ranked, err := h.retrieve(c, question)
	if err != nil {
		return err
	}

	// Unlike qa, the chat response carries only the chunks that cleared the
	// relevance gate: they are exactly what grounded the answer.
	relevant := answers.FilterRelevant(ranked, h.minScore)
	if relevant == nil {
		relevant = []types.RetrievedChunk{}
	}
	resp := &types.QAResponse{
		Results:   relevant,
		Timestamp: time.Now(),
	}

	var answer types.Answer
	if len(relevant) > 0 {
		answer, err = h.generator.GenerateChatAnswerFromChunks(c.Context(), params.Messages, relevant)
	} else {
		log.Printf("[CHAT] No chunk cleared the relevance gate %.2f, answering directly", h.minScore)
		answer, err = h.generator.GenerateDirectAnswer(c.Context(), question)
	}
	if err != nil {
		resp.AnswerError = err.Error()
	} else {
		resp.Answer = &answer
	}

	return c.JSON(resp)
}

func (h *QAHandler) retrieve(c *fiber.Ctx, question string) ([]types.RetrievedChunk, error) {
	candidates, err := h.searcher.SearchLibraryChunks(c.Context(), question, h.retrieveLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []types.RetrievedChunk{}, nil
	}
	return h.reranker.RerankChunks(c.Context(), question, candidates, h.rerankLimit)
}

func latestUserTurn(turns []types.ConversationTurn) (string, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		if strings.TrimSpace(turns[i].Content) == "" {
			continue
		}
		if turns[i].Role != "user" {
			return "", types.NewError(types.ErrInvalidConversation,
				"latest conversation turn must be from the user, got %q", turns[i].Role)
		}
		return turns[i].Content, nil
	}
	return "", types.NewError(types.ErrInvalidConversation, "conversation has no non-empty turns")
}
