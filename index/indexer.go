package index

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ragify/chunker"
	"ragify/extract"
	"ragify/model"
	"ragify/store"
	"ragify/types"
)

// Progress checkpoints. Indexing starts at 0, extraction completes at 5,
// chunking enters at 10 and the embedding stage walks from there to just
// below saving as batches complete.
const (
	progressExtracted      = 5
	progressChunking       = 10
	progressEmbeddingStart = 10
	progressEmbeddingSpan  = 80
	progressSaving         = 95
)

type Indexer struct {
	docs      store.DocumentStorer
	vectors   store.VectorStorer
	extractor *extract.Extractor
	embedder  model.EmbedderInterface

	chunkSize    int
	chunkOverlap int
	embedBatch   int

	pdfCropTop    float64
	pdfCropBottom float64
}

func NewIndexer(docs store.DocumentStorer, vectors store.VectorStorer,
	extractor *extract.Extractor, embedder model.EmbedderInterface, cfg types.Config) *Indexer {
	embedBatch := cfg.EmbedBatchSize
	if embedBatch <= 0 {
		embedBatch = 12
	}
	return &Indexer{
		docs:          docs,
		vectors:       vectors,
		extractor:     extractor,
		embedder:      embedder,
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
		embedBatch:    embedBatch,
		pdfCropTop:    cfg.PDFCropTop,
		pdfCropBottom: cfg.PDFCropBottom,
	}
}

// IndexDocument runs the full extract, chunk, embed, save pipeline for a
// document the caller has already moved into the indexing status. On success
// the document is marked indexed; on failure the document record is left in
// the failed stage and the caller decides whether to reset it for a retry.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *types.Document) error {
	log.Printf("[INDEXER] Indexing document %s (%s)", doc.ID, doc.Name)

	raw, err := ix.extractText(doc)
	if err != nil {
		return err
	}

	if err := ix.docs.SetIndexingState(ctx, doc.ID, types.StageExtracting, progressExtracted); err != nil {
		return err
	}

	text := extract.SanitizeContent(raw)
	if text == "" {
		return types.NewError(types.ErrEmptyDocument, "document %s has no extractable text", doc.Name)
	}

	if err := ix.docs.SetIndexingState(ctx, doc.ID, types.StageChunking, progressChunking); err != nil {
		return err
	}

	chunks, err := chunker.ChunkText(text, chunker.Options{
		ChunkSize:    ix.chunkSize,
		ChunkOverlap: ix.chunkOverlap,
	})
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return types.NewError(types.ErrEmptyDocument, "document %s produced no chunks", doc.Name)
	}

	if err := ix.docs.SetIndexingState(ctx, doc.ID, types.StageEmbedding, progressEmbeddingStart); err != nil {
		return err
	}

	vectors, err := ix.embedChunks(ctx, doc, chunks)
	if err != nil {
		return err
	}

	dim := len(vectors[0])
	if dim == 0 {
		return types.NewError(types.ErrEmptyDimension,
			"embedding model %s returned zero-dimensional vectors", ix.embedder.ModelName())
	}

	if err := ix.docs.SetIndexingState(ctx, doc.ID, types.StageSaving, progressSaving); err != nil {
		return err
	}

	if err := ix.vectors.EnsureCollection(ctx, dim); err != nil {
		return err
	}

	// Replace, never append: stale points from a previous run must be gone
	// before the new ones land. Best effort, a store that rejects the delete
	// will reject the upsert right after and abort the run.
	if err := ix.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		log.Printf("[INDEXER] Failed to delete stale vectors for document %s: %v", doc.ID, err)
	}

	if err := ix.vectors.UpsertChunks(ctx, doc, chunks, vectors, 0); err != nil {
		return err
	}

	if err := ix.docs.MarkIndexed(ctx, doc.ID, len(chunks), ix.embedder.ModelName()); err != nil {
		return err
	}

	log.Printf("[INDEXER] Document %s indexed: %d chunks, dimension %d", doc.ID, len(chunks), dim)
	return nil
}

// extractText runs the extractor on the stored file. PDFs optionally get
// their header and footer margins cropped into a scratch copy first, so
// repeated page furniture stays out of the chunk stream.
func (ix *Indexer) extractText(doc *types.Document) (string, error) {
	crop := ix.pdfCropTop > 0 || ix.pdfCropBottom > 0
	if !crop || strings.ToLower(filepath.Ext(doc.Path)) != ".pdf" {
		return ix.extractor.Extract(doc.Path)
	}

	cropped := filepath.Join(os.TempDir(), "ragify-crop-"+doc.ID.String()+".pdf")
	if err := extract.CropHeaderFooter(doc.Path, cropped, ix.pdfCropTop, ix.pdfCropBottom); err != nil {
		log.Printf("[INDEXER] PDF crop failed for %s, extracting uncropped: %v", doc.ID, err)
		return ix.extractor.Extract(doc.Path)
	}
	defer os.Remove(cropped)
	return ix.extractor.Extract(cropped)
}

// embedChunks embeds chunk contents in batches and reports progress after
// each batch. Progress rows are written only when the value strictly grows,
// keeping the checkpoint sequence monotonic for pollers.
func (ix *Indexer) embedChunks(ctx context.Context, doc *types.Document, chunks []types.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	lastProgress := progressEmbeddingStart

	for start := 0; start < len(chunks); start += ix.embedBatch {
		end := min(start+ix.embedBatch, len(chunks))

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		batch, err := ix.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, types.NewError(types.ErrEmbeddingCountMismatch,
				"embedding model returned %d vectors for %d chunks", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)

		progress := progressEmbeddingStart + len(vectors)*progressEmbeddingSpan/len(chunks)
		if progress > lastProgress {
			if err := ix.docs.SetIndexingState(ctx, doc.ID, types.StageEmbedding, progress); err != nil {
				return nil, err
			}
			lastProgress = progress
		}
	}
	return vectors, nil
}

// DeleteDocumentVectors removes a document's points from the vector store.
// Best effort: the library record is the source of truth, orphaned points
// are overwritten on the next indexing run.
func (ix *Indexer) DeleteDocumentVectors(ctx context.Context, documentID uuid.UUID) {
	if err := ix.vectors.DeleteByDocument(ctx, documentID); err != nil {
		log.Printf("[INDEXER] Failed to delete vectors for document %s: %v", documentID, err)
	}
}
