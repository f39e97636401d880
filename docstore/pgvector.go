package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lmoretti/aide/embeddings"
)

// PgvectorProvider keeps every document's chunks in a single pgvector table,
// scoped by document id. The index "path" recorded on documents is
// informational for this backend; the table is the physical index.
type PgvectorProvider struct {
	pool      *pgxpool.Pool
	embedder  embeddings.Embedder
	dimension int
}

func NewPgvectorProvider(ctx context.Context, dsn string, embedder embeddings.Embedder, dimension int) (*PgvectorProvider, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	p := &PgvectorProvider{pool: pool, embedder: embedder, dimension: dimension}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PgvectorProvider) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_chunks (
			id UUID PRIMARY KEY,
			doc_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			start_offset INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			UNIQUE(doc_id, chunk_index)
		)`, p.dimension),
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_doc ON doc_chunks(doc_id)",
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_embedding ON doc_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (p *PgvectorProvider) Create(ctx context.Context, docID, _ string) (Index, error) {
	if _, err := p.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE doc_id = $1", docID); err != nil {
		return nil, fmt.Errorf("clear existing chunks: %w", err)
	}
	return &pgvectorIndex{provider: p, docID: docID}, nil
}

func (p *PgvectorProvider) Open(ctx context.Context, docID, _ string) (Index, error) {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM doc_chunks WHERE doc_id = $1", docID).Scan(&count); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, docID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, docID)
	}
	return &pgvectorIndex{provider: p, docID: docID}, nil
}

func (p *PgvectorProvider) Remove(ctx context.Context, docID, _ string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE doc_id = $1", docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (p *PgvectorProvider) Close() {
	p.pool.Close()
}

type pgvectorIndex struct {
	provider *PgvectorProvider
	docID    string
}

func (i *pgvectorIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for idx, chunk := range chunks {
		texts[idx] = chunk.Text
	}

	vectors, err := i.provider.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	for idx, chunk := range chunks {
		if _, err := i.provider.pool.Exec(ctx, `
			INSERT INTO doc_chunks (id, doc_id, chunk_index, start_offset, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), i.docID, idx, chunk.StartOffset, chunk.Text, pgvector.NewVector(vectors[idx])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", idx, err)
		}
	}
	return nil
}

func (i *pgvectorIndex) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	vector, err := embeddings.EmbedOne(ctx, i.provider.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := i.provider.pool.Query(ctx, `
		SELECT content, start_offset, (embedding <-> $1::vector) AS distance
		FROM doc_chunks
		WHERE doc_id = $2
		ORDER BY embedding <-> $1::vector
		LIMIT $3
	`, pgvector.NewVector(vector), i.docID, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.Text, &hit.StartOffset, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return hits, nil
}
