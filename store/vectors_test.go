package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragify/types"
)

func testVectorStore(t *testing.T) *PgVectorStore {
	t.Helper()
	// Integrity checks run before any query, so no pool is needed here.
	s, err := NewPgVectorStore(nil, "test_collection", 32)
	require.NoError(t, err)
	return s
}

func testDoc() *types.Document {
	return &types.Document{ID: uuid.New(), Name: "doc.txt"}
}

func makeChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		chunks[i] = types.Chunk{ID: fmt.Sprint(i), Content: "content", Start: i * 10, End: i*10 + 10}
	}
	return chunks
}

func makeVectors(n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
	}
	return vectors
}

func TestNewPgVectorStore_RejectsInvalidCollectionName(t *testing.T) {
	cases := []string{"", "1leading_digit", "has-dash", "has space", `has"quote`, "Upper"}
	for _, name := range cases {
		_, err := NewPgVectorStore(nil, name, 32)
		require.Error(t, err, "collection %q", name)
		assert.True(t, types.IsKind(err, types.ErrInvalidArgument))
	}

	_, err := NewPgVectorStore(nil, "valid_name_2", 32)
	require.NoError(t, err)
}

func TestUpsertChunks_MissingVector(t *testing.T) {
	s := testVectorStore(t)

	err := s.UpsertChunks(context.Background(), testDoc(), makeChunks(10), makeVectors(9, 4), 0)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrMissingVector))
	assert.Contains(t, err.Error(), "chunk 9")
}

func TestUpsertChunks_MissingVectorRespectsOffset(t *testing.T) {
	s := testVectorStore(t)

	err := s.UpsertChunks(context.Background(), testDoc(), makeChunks(5), makeVectors(3, 4), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 103")
}

func TestUpsertChunks_DimensionMismatch(t *testing.T) {
	s := testVectorStore(t)

	vectors := makeVectors(3, 4)
	vectors[2] = make([]float32, 5)
	err := s.UpsertChunks(context.Background(), testDoc(), makeChunks(3), vectors, 0)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "chunk 2")
}

func TestUpsertChunks_EmptyEmbedding(t *testing.T) {
	s := testVectorStore(t)

	vectors := makeVectors(2, 4)
	vectors[1] = nil
	err := s.UpsertChunks(context.Background(), testDoc(), makeChunks(2), vectors, 0)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmptyEmbedding))
}

func TestUpsertChunks_NoChunksIsNoop(t *testing.T) {
	s := testVectorStore(t)
	require.NoError(t, s.UpsertChunks(context.Background(), testDoc(), nil, nil, 0))
}

func TestEnsureCollection_RejectsNonPositiveDimension(t *testing.T) {
	s := testVectorStore(t)

	err := s.EnsureCollection(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmptyDimension))
}

func TestSearch_RejectsEmptyVector(t *testing.T) {
	s := testVectorStore(t)

	_, err := s.Search(context.Background(), nil, 10)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmptyEmbedding))
}

// Point ids must be stable per (document, chunk index) so a re-index
// overwrites instead of duplicating, and distinct per document.
func TestPointID_StablePerDocumentAndIndex(t *testing.T) {
	docA, docB := uuid.New(), uuid.New()

	assert.Equal(t, pointID(docA, 3), pointID(docA, 3))
	assert.NotEqual(t, pointID(docA, 3), pointID(docA, 4))
	assert.NotEqual(t, pointID(docA, 3), pointID(docB, 3))
}
