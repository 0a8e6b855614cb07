package rerank

import (
	"context"
	"sort"
	"strings"

	"ragify/model"
	"ragify/types"
)

const (
	DefaultLimit       = 3
	MaxLimit           = 10
	DefaultCrossWeight = 0.7
)

// Reranker rescores retrieval candidates with a cross-encoder and fuses the
// result with the original vector similarity. Cross-encoder relevance is the
// primary signal, but the top vector hit is always kept so a model quirk
// never discards the closest embedding match.
type Reranker struct {
	encoder     model.CrossEncoderInterface
	crossWeight float64
}

func NewReranker(encoder model.CrossEncoderInterface, crossWeight float64) *Reranker {
	if crossWeight < 0 || crossWeight > 1 {
		crossWeight = DefaultCrossWeight
	}
	return &Reranker{encoder: encoder, crossWeight: crossWeight}
}

func (r *Reranker) RerankChunks(ctx context.Context, question string, chunks []types.RetrievedChunk, limit int) ([]types.RetrievedChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "question must not be empty")
	}
	if len(chunks) == 0 {
		return []types.RetrievedChunk{}, nil
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	scored := make([]types.RetrievedChunk, len(chunks))
	copy(scored, chunks)

	for i := range scored {
		score, err := r.encoder.Score(ctx, question, scored[i].Content)
		if err != nil {
			return nil, err
		}
		scored[i].CrossScore = score
	}

	crossNorm := normalize(scores(scored, func(c types.RetrievedChunk) float64 { return c.CrossScore }))
	vectorNorm := normalize(scores(scored, func(c types.RetrievedChunk) float64 { return c.VectorScore }))

	for i := range scored {
		scored[i].Score = r.crossWeight*crossNorm[i] + (1-r.crossWeight)*vectorNorm[i]
	}

	ranked := make([]types.RetrievedChunk, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	// The chunk with the highest raw similarity goes first regardless of its
	// fused rank, then the fused order, then the original candidate order as
	// backfill. Each id appears once.
	result := make([]types.RetrievedChunk, 0, limit)
	seen := make(map[string]bool, limit)
	push := func(c types.RetrievedChunk) {
		if len(result) < limit && !seen[c.ID] {
			seen[c.ID] = true
			result = append(result, c)
		}
	}

	push(scored[topVectorIndex(scored)])
	for _, c := range ranked {
		push(c)
	}
	for _, c := range scored {
		push(c)
	}

	return result, nil
}

func topVectorIndex(chunks []types.RetrievedChunk) int {
	top := 0
	for i, c := range chunks {
		if c.VectorScore > chunks[top].VectorScore {
			top = i
		}
	}
	return top
}

func scores(chunks []types.RetrievedChunk, get func(types.RetrievedChunk) float64) []float64 {
	out := make([]float64, len(chunks))
	for i, c := range chunks {
		out[i] = get(c)
	}
	return out
}

// normalize min-max scales values into [0,1]. When all values are equal every
// normalized value is 1, so a degenerate signal neither divides by zero nor
// drags fused scores down.
func normalize(values []float64) []float64 {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	out := make([]float64, len(values))
	for i, v := range values {
		if maxV > minV {
			out[i] = (v - minV) / (maxV - minV)
		} else {
			out[i] = 1
		}
	}
	return out
}
