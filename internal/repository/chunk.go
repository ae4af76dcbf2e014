package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of chunked knowledge embeddings.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks swaps the whole chunk set of a document in one
// transaction. Concurrent readers see either the old set or the new set,
// never a mix. Passing no chunks leaves the document with zero chunks.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk replacement: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, document_id, seq, text, embedding, token_estimate)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, documentID, c.Seq, c.Text, pgvector.NewVector(c.Embedding), c.TokenEstimate,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByDocument returns a document's chunks in seq order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, seq, text, token_estimate
		 FROM knowledge_chunks WHERE document_id = $1 ORDER BY seq`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Text, &c.TokenEstimate); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchBySimilarity returns the chunks within scope whose cosine
// similarity to the query embedding clears minSimilarity, best first.
// Canvas scopes also search the global pool. Ties break by (seq,
// document_id) so result order is deterministic.
func (r *ChunkRepository) SearchBySimilarity(ctx context.Context, embedding []float32, scope domain.Scope, limit int, minSimilarity float32) ([]*domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	scopeFilter := `d.scope_type = 'global'`
	args := []any{pgvector.NewVector(embedding), minSimilarity, limit}
	if scope.Type == domain.ScopeCanvas {
		scopeFilter = `((d.scope_type = 'canvas' AND d.scope_id = $4) OR d.scope_type = 'global')`
		args = append(args, scope.ID)
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.seq, c.text, c.token_estimate, d.title,
		       1 - (c.embedding <=> $1) AS similarity
		FROM knowledge_chunks c
		JOIN knowledge_documents d ON d.id = c.document_id
		WHERE %s
		  AND 1 - (c.embedding <=> $1) >= $2
		ORDER BY similarity DESC, c.seq ASC, c.document_id ASC
		LIMIT $3`, scopeFilter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Seq, &sc.Text, &sc.TokenEstimate, &sc.DocumentTitle, &sc.Similarity); err != nil {
			return nil, err
		}
		results = append(results, &sc)
	}
	return results, rows.Err()
}
