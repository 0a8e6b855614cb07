package types

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusIndexing DocumentStatus = "indexing"
	StatusIndexed  DocumentStatus = "indexed"
)

type IndexingStage string

const (
	StageExtracting IndexingStage = "extracting"
	StageChunking   IndexingStage = "chunking"
	StageEmbedding  IndexingStage = "embedding"
	StageSaving     IndexingStage = "saving"
)

// Document is the persisted library document record. Status, stage and
// progress are mutated exclusively by the indexer during a run; on failure
// the HTTP layer resets them so the document stays retryable.
type Document struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Size             int64          `json:"size"`
	Path             string         `json:"-"`
	Status           DocumentStatus `json:"status"`
	IndexingStage    *IndexingStage `json:"indexingStage"`
	IndexingProgress int            `json:"indexingProgress"`
	ChunkCount       int            `json:"chunkCount"`
	LastIndexedAt    *time.Time     `json:"lastIndexedAt"`
	EmbeddingModel   string         `json:"embeddingModel,omitempty"`
	UploadedAt       time.Time      `json:"uploadedAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Chunk is one window of a document's normalized text. Chunks are not
// persisted as rows; only their vectors land in the vector store.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// RetrievedChunk is a query-time search hit. Score is overwritten by
// whichever ranking stage touched it last: raw similarity after retrieval,
// fused score after reranking.
type RetrievedChunk struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	ChunkIndex   int     `json:"chunkIndex"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	VectorScore  float64 `json:"vectorScore"`
	CrossScore   float64 `json:"crossScore"`
}

// Answer is the result of one model generation call.
type Answer struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
