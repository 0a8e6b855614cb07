package search

import (
	"context"
	"strings"

	"ragify/model"
	"ragify/store"
	"ragify/types"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Searcher embeds a query and retrieves the nearest library chunks by
// cosine similarity.
type Searcher struct {
	vectors  store.VectorStorer
	embedder model.EmbedderInterface
}

func NewSearcher(vectors store.VectorStorer, embedder model.EmbedderInterface) *Searcher {
	return &Searcher{vectors: vectors, embedder: embedder}
}

func (s *Searcher) SearchLibraryChunks(ctx context.Context, query string, limit int) ([]types.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "query must not be empty")
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, types.NewError(types.ErrEmbeddingCountMismatch,
			"embedding model returned %d vectors for one query", len(vectors))
	}

	return s.vectors.Search(ctx, vectors[0], limit)
}
