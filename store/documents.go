package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragify/types"
)

// DocumentStorer persists library document records and their indexing state.
type DocumentStorer interface {
	Create(ctx context.Context, doc *types.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Document, error)
	List(ctx context.Context) ([]types.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// BeginIndexing is the advisory entry gate: a compare-and-swap from
	// uploaded (or indexed, for a re-index) to indexing. It reports false
	// when another run already holds the document.
	BeginIndexing(ctx context.Context, id uuid.UUID) (bool, error)
	SetIndexingState(ctx context.Context, id uuid.UUID, stage types.IndexingStage, progress int) error
	MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int, embeddingModel string) error
	ResetForRetry(ctx context.Context, id uuid.UUID) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying connection pool so the vector store can share
// the single long-lived connection handle.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS library_documents (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'uploaded',
		indexing_stage TEXT,
		indexing_progress INT NOT NULL DEFAULT 0,
		chunk_count INT NOT NULL DEFAULT 0,
		last_indexed_at TIMESTAMP WITH TIME ZONE,
		embedding_model TEXT,
		uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_library_documents_status ON library_documents(status);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

const documentColumns = `id, name, size, path, status, indexing_stage, indexing_progress,
	chunk_count, last_indexed_at, embedding_model, uploaded_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, doc *types.Document) error {
	query := `INSERT INTO library_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := p.pool.Exec(ctx, query,
		doc.ID, doc.Name, doc.Size, doc.Path, doc.Status, doc.IndexingStage,
		doc.IndexingProgress, doc.ChunkCount, doc.LastIndexedAt,
		nullableString(doc.EmbeddingModel), doc.UploadedAt, doc.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM library_documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.ErrNotFound, "document %s not found", id)
	}
	return doc, err
}

func (p *PostgresStore) List(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM library_documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM library_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.ErrNotFound, "document %s not found", id)
	}
	return nil
}

func (p *PostgresStore) BeginIndexing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE library_documents
		SET status = $2, indexing_stage = $3, indexing_progress = 0, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)`,
		id, types.StatusIndexing, types.StageExtracting, time.Now(),
		types.StatusUploaded, types.StatusIndexed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStore) SetIndexingState(ctx context.Context, id uuid.UUID, stage types.IndexingStage, progress int) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE library_documents
		SET indexing_stage = $2, indexing_progress = $3, updated_at = $4
		WHERE id = $1`,
		id, stage, progress, time.Now(),
	)
	return err
}

func (p *PostgresStore) MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int, embeddingModel string) error {
	now := time.Now()
	_, err := p.pool.Exec(ctx, `
		UPDATE library_documents
		SET status = $2, indexing_stage = NULL, indexing_progress = 100,
		    chunk_count = $3, last_indexed_at = $4, embedding_model = $5, updated_at = $4
		WHERE id = $1`,
		id, types.StatusIndexed, chunkCount, now, embeddingModel,
	)
	return err
}

func (p *PostgresStore) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE library_documents
		SET status = $2, indexing_stage = NULL, indexing_progress = 0, updated_at = $3
		WHERE id = $1`,
		id, types.StatusUploaded, time.Now(),
	)
	return err
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	doc := &types.Document{}
	var embeddingModel *string
	if err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Size,
		&doc.Path,
		&doc.Status,
		&doc.IndexingStage,
		&doc.IndexingProgress,
		&doc.ChunkCount,
		&doc.LastIndexedAt,
		&embeddingModel,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if embeddingModel != nil {
		doc.EmbeddingModel = *embeddingModel
	}
	return doc, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
