package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragify/extract"
	"ragify/model"
	"ragify/types"
)

type stateUpdate struct {
	stage    types.IndexingStage
	progress int
}

type fakeDocs struct {
	updates    []stateUpdate
	marked     bool
	chunkCount int
	modelName  string
	resets     int
}

func (f *fakeDocs) Create(ctx context.Context, doc *types.Document) error { return nil }
func (f *fakeDocs) GetByID(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	return nil, types.NewError(types.ErrNotFound, "document %s not found", id)
}
func (f *fakeDocs) List(ctx context.Context) ([]types.Document, error) { return nil, nil }
func (f *fakeDocs) Delete(ctx context.Context, id uuid.UUID) error     { return nil }
func (f *fakeDocs) BeginIndexing(ctx context.Context, id uuid.UUID) (bool, error) {
	f.updates = append(f.updates, stateUpdate{types.StageExtracting, 0})
	return true, nil
}
func (f *fakeDocs) SetIndexingState(ctx context.Context, id uuid.UUID, stage types.IndexingStage, progress int) error {
	f.updates = append(f.updates, stateUpdate{stage, progress})
	return nil
}
func (f *fakeDocs) MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int, embeddingModel string) error {
	f.marked = true
	f.chunkCount = chunkCount
	f.modelName = embeddingModel
	f.updates = append(f.updates, stateUpdate{"", 100})
	return nil
}
func (f *fakeDocs) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	f.resets++
	return nil
}

type fakeVectors struct {
	dimension int
	points    map[uuid.UUID]int
	contents  map[uuid.UUID][]string
	deletes   int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{
		points:   map[uuid.UUID]int{},
		contents: map[uuid.UUID][]string{},
	}
}

func (f *fakeVectors) EnsureCollection(ctx context.Context, dimension int) error {
	f.dimension = dimension
	return nil
}
func (f *fakeVectors) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	f.deletes++
	delete(f.points, documentID)
	delete(f.contents, documentID)
	return nil
}
func (f *fakeVectors) UpsertChunks(ctx context.Context, doc *types.Document, chunks []types.Chunk, vectors [][]float32, offset int) error {
	f.points[doc.ID] += len(chunks)
	for _, chunk := range chunks {
		f.contents[doc.ID] = append(f.contents[doc.ID], chunk.Content)
	}
	return nil
}
func (f *fakeVectors) Search(ctx context.Context, vector []float32, limit int) ([]types.RetrievedChunk, error) {
	return nil, nil
}

type fakeEmbedder struct {
	dim       int
	shortBy   int
	batchSize []int
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }
func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchSize = append(f.batchSize, len(texts))
	n := len(texts) - f.shortBy
	if n < 0 {
		n = 0
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

func writeDoc(t *testing.T, content string) *types.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &types.Document{
		ID:         uuid.New(),
		Name:       "doc.txt",
		Size:       int64(len(content)),
		Path:       path,
		Status:     types.StatusIndexing,
		UploadedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func newTestIndexer(docs *fakeDocs, vectors *fakeVectors, embedder model.EmbedderInterface) *Indexer {
	cfg := types.Config{ChunkSize: 100, ChunkOverlap: 20, EmbedBatchSize: 2}
	return NewIndexer(docs, vectors, extract.New(), embedder, cfg)
}

func TestIndexDocument_ProgressMonotonicEndsAt100(t *testing.T) {
	docs := &fakeDocs{}
	vectors := newFakeVectors()
	embedder := &fakeEmbedder{dim: 4}
	ix := newTestIndexer(docs, vectors, embedder)

	doc := writeDoc(t, strings.Repeat("a quick brown fox ", 60))
	require.NoError(t, ix.IndexDocument(context.Background(), doc))

	require.NotEmpty(t, docs.updates)
	last := 0
	for _, u := range docs.updates {
		assert.GreaterOrEqual(t, u.progress, last, "progress went backwards: %+v", docs.updates)
		last = u.progress
	}
	assert.Equal(t, 100, last)

	// Extraction completes at 5, chunking enters at 10, embedding picks up
	// from there.
	require.GreaterOrEqual(t, len(docs.updates), 3)
	assert.Equal(t, stateUpdate{types.StageExtracting, 5}, docs.updates[0])
	assert.Equal(t, stateUpdate{types.StageChunking, 10}, docs.updates[1])
	assert.Equal(t, stateUpdate{types.StageEmbedding, 10}, docs.updates[2])
	assert.True(t, docs.marked)
	assert.Equal(t, "fake-embedder", docs.modelName)
	assert.Equal(t, 4, vectors.dimension)
	assert.Equal(t, docs.chunkCount, vectors.points[doc.ID])
}

func TestIndexDocument_EmbedsInConfiguredBatches(t *testing.T) {
	docs := &fakeDocs{}
	embedder := &fakeEmbedder{dim: 4}
	ix := newTestIndexer(docs, newFakeVectors(), embedder)

	doc := writeDoc(t, strings.Repeat("a quick brown fox ", 60))
	require.NoError(t, ix.IndexDocument(context.Background(), doc))

	require.NotEmpty(t, embedder.batchSize)
	for _, n := range embedder.batchSize {
		assert.LessOrEqual(t, n, 2)
	}
}

// Interior vertical tabs and form feeds survive whitespace collapsing in the
// chunker, so extracted text must be sanitized before chunking or they end
// up in stored chunk content.
func TestIndexDocument_SanitizesExtractedText(t *testing.T) {
	docs := &fakeDocs{}
	vectors := newFakeVectors()
	ix := newTestIndexer(docs, vectors, &fakeEmbedder{dim: 4})

	doc := writeDoc(t, "refund\vpolicy applies\fwithin thirty days\r\nno exceptions")
	require.NoError(t, ix.IndexDocument(context.Background(), doc))

	require.NotEmpty(t, vectors.contents[doc.ID])
	for _, content := range vectors.contents[doc.ID] {
		assert.NotContains(t, content, "\v")
		assert.NotContains(t, content, "\f")
		assert.NotContains(t, content, "\r")
	}
	assert.Contains(t, vectors.contents[doc.ID][0], "refund policy applies within thirty days")
}

func TestIndexDocument_EmptyDocument(t *testing.T) {
	docs := &fakeDocs{}
	vectors := newFakeVectors()
	ix := newTestIndexer(docs, vectors, &fakeEmbedder{dim: 4})

	doc := writeDoc(t, "   \n\t  ")
	err := ix.IndexDocument(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmptyDocument))
	assert.False(t, docs.marked)
	assert.Zero(t, vectors.points[doc.ID])
}

func TestIndexDocument_EmbeddingCountMismatch(t *testing.T) {
	docs := &fakeDocs{}
	vectors := newFakeVectors()
	ix := newTestIndexer(docs, vectors, &fakeEmbedder{dim: 4, shortBy: 1})

	doc := writeDoc(t, strings.Repeat("words words words ", 30))
	err := ix.IndexDocument(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmbeddingCountMismatch))
	assert.False(t, docs.marked)
	assert.Zero(t, vectors.points[doc.ID])
}

func TestIndexDocument_ZeroDimension(t *testing.T) {
	docs := &fakeDocs{}
	ix := newTestIndexer(docs, newFakeVectors(), &fakeEmbedder{dim: 0})

	doc := writeDoc(t, "plenty of text for one chunk")
	err := ix.IndexDocument(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrEmptyDimension))
}

// Re-indexing must replace a document's points, never accumulate them.
func TestIndexDocument_ReindexIsIdempotent(t *testing.T) {
	docs := &fakeDocs{}
	vectors := newFakeVectors()
	ix := newTestIndexer(docs, vectors, &fakeEmbedder{dim: 4})

	doc := writeDoc(t, strings.Repeat("a quick brown fox ", 60))
	require.NoError(t, ix.IndexDocument(context.Background(), doc))
	first := vectors.points[doc.ID]
	require.Positive(t, first)

	require.NoError(t, ix.IndexDocument(context.Background(), doc))
	assert.Equal(t, first, vectors.points[doc.ID])
	assert.Equal(t, 2, vectors.deletes)
}

func TestDeleteDocumentVectors_BestEffort(t *testing.T) {
	vectors := newFakeVectors()
	id := uuid.New()
	vectors.points[id] = 7

	ix := newTestIndexer(&fakeDocs{}, vectors, &fakeEmbedder{dim: 4})
	ix.DeleteDocumentVectors(context.Background(), id)
	assert.Zero(t, vectors.points[id])
}
