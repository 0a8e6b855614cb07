package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragify/types"
)

// VectorStorer is the collection-oriented store for chunk embeddings.
type VectorStorer interface {
	// EnsureCollection creates the collection table for the given dimension,
	// dropping and recreating it when an existing table was built for a
	// different dimension or an incompatible schema.
	EnsureCollection(ctx context.Context, dimension int) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
	// UpsertChunks writes one point per chunk. Chunk indexes are numbered
	// from offset so callers may stream a large document in several calls.
	UpsertChunks(ctx context.Context, doc *types.Document, chunks []types.Chunk, vectors [][]float32, offset int) error
	Search(ctx context.Context, vector []float32, limit int) ([]types.RetrievedChunk, error)
}

type PgVectorStore struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
}

func NewPgVectorStore(pool *pgxpool.Pool, collection string, batchSize int) (*PgVectorStore, error) {
	if !validCollectionName(collection) {
		return nil, types.NewError(types.ErrInvalidArgument, "invalid collection name %q", collection)
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &PgVectorStore{pool: pool, table: collection, batchSize: batchSize}, nil
}

// validCollectionName keeps the collection usable as an unquoted identifier.
func validCollectionName(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return types.NewError(types.ErrEmptyDimension, "embedding dimension must be positive, got %d", dimension)
	}

	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return normalizeStoreError(err)
	}

	existing, err := s.collectionDimension(ctx)
	if err != nil {
		return err
	}
	if existing == dimension {
		return nil
	}
	if existing != 0 {
		// Dimension or schema mismatch: the stored points are unusable with
		// the active embedding model, so rebuild from scratch.
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
			return normalizeStoreError(err)
		}
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL,
		document_name TEXT NOT NULL,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		start_pos INT NOT NULL,
		end_pos INT NOT NULL,
		embedding vector(%d) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%s_document_id ON %s(document_id);
	`, s.table, dimension, s.table, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return normalizeStoreError(err)
	}
	return nil
}

// collectionDimension reports the vector dimension of the existing collection
// table, 0 when the table does not exist, and -1 when the table exists but
// lacks a usable embedding column.
func (s *PgVectorStore) collectionDimension(ctx context.Context) (int, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, s.table,
	).Scan(&exists)
	if err != nil {
		return 0, normalizeStoreError(err)
	}
	if !exists {
		return 0, nil
	}

	// For pgvector columns atttypmod holds the declared dimension.
	var dim int
	err = s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`,
		s.table,
	).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, normalizeStoreError(err)
	}
	if dim <= 0 {
		return -1, nil
	}
	return dim, nil
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, documentID); err != nil {
		return normalizeStoreError(err)
	}
	return nil
}

func (s *PgVectorStore) UpsertChunks(ctx context.Context, doc *types.Document, chunks []types.Chunk, vectors [][]float32, offset int) error {
	if len(chunks) == 0 {
		return nil
	}
	// All integrity checks run before the first write so a bad batch never
	// leaves partial points behind.
	if len(vectors) < len(chunks) {
		return types.NewError(types.ErrMissingVector,
			"missing vector for chunk %d of document %s", offset+len(vectors), doc.ID)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return types.NewError(types.ErrEmptyEmbedding,
			"empty embedding for chunk %d of document %s", offset, doc.ID)
	}
	for i, v := range vectors[:len(chunks)] {
		if len(v) == 0 {
			return types.NewError(types.ErrEmptyEmbedding,
				"empty embedding for chunk %d of document %s", offset+i, doc.ID)
		}
		if len(v) != dim {
			return types.NewError(types.ErrDimensionMismatch,
				"chunk %d has dimension %d, expected %d", offset+i, len(v), dim)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, document_name, chunk_index, content, start_pos, end_pos, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_name = EXCLUDED.document_name,
			content = EXCLUDED.content,
			start_pos = EXCLUDED.start_pos,
			end_pos = EXCLUDED.end_pos,
			embedding = EXCLUDED.embedding`, s.table)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			chunk := chunks[i]
			batch.Queue(query,
				pointID(doc.ID, offset+i), doc.ID, doc.Name, offset+i,
				chunk.Content, chunk.Start, chunk.End,
				pgvector.NewVector(vectors[i]),
			)
		}

		results := s.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return normalizeStoreError(err)
			}
		}
		if err := results.Close(); err != nil {
			return normalizeStoreError(err)
		}
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]types.RetrievedChunk, error) {
	if len(vector) == 0 {
		return nil, types.NewError(types.ErrEmptyEmbedding, "search vector is empty")
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, document_name, chunk_index, content, start_pos, end_pos,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, normalizeStoreError(err)
	}
	defer rows.Close()

	var chunks []types.RetrievedChunk
	for rows.Next() {
		var c types.RetrievedChunk
		var docID uuid.UUID
		if err := rows.Scan(&c.ID, &docID, &c.DocumentName, &c.ChunkIndex,
			&c.Content, &c.Start, &c.End, &c.Score); err != nil {
			return nil, normalizeStoreError(err)
		}
		c.DocumentID = docID.String()
		c.VectorScore = c.Score
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, normalizeStoreError(err)
	}
	return chunks, nil
}

// pointID derives a stable per-chunk UUID so re-indexing a document
// overwrites its previous points instead of accumulating duplicates.
func pointID(docID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(fmt.Sprintf("chunk-%d", index)))
}

func normalizeStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return types.WrapError(types.ErrVectorStoreRequest, err,
			"vector store rejected the request (%s): %s", pgErr.Code, pgErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "connect") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "closed pool") {
		return types.WrapError(types.ErrVectorStoreUnavailable, err,
			"unable to reach the vector store, verify the PG_* settings and that the database is running")
	}
	return types.WrapError(types.ErrVectorStoreRequest, err, "vector store request failed")
}
