package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcanvas/brainbase/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_documents (id, scope_type, scope_id, kind, title, content, source_url, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Scope.Type, d.Scope.ID, d.Kind, d.Title, d.Content, nullableString(d.SourceURL), metadataOrEmpty(d.Metadata), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, scope_type, scope_id, kind, title, content, source_url, metadata, created_at, updated_at
		 FROM knowledge_documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

// GetInternal returns the singleton internal document for (scope, kind),
// or ErrDocumentNotFound when it has not been synced yet.
func (r *DocumentRepository) GetInternal(ctx context.Context, scope domain.Scope, kind domain.DocumentKind) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, scope_type, scope_id, kind, title, content, source_url, metadata, created_at, updated_at
		 FROM knowledge_documents
		 WHERE scope_type = $1 AND scope_id = $2 AND kind = $3`,
		scope.Type, scope.ID, kind,
	)
	return scanDocument(row)
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents SET title = $1, content = $2, source_url = $3, metadata = $4, updated_at = $5
		 WHERE id = $6`,
		d.Title, d.Content, nullableString(d.SourceURL), metadataOrEmpty(d.Metadata), d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document. Chunks go with it via the FK cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) ListByScope(ctx context.Context, scope domain.Scope) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, scope_type, scope_id, kind, title, content, source_url, metadata, created_at, updated_at
		 FROM knowledge_documents
		 WHERE scope_type = $1 AND scope_id = $2
		 ORDER BY updated_at DESC`,
		scope.Type, scope.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var sourceURL *string
	var metadata map[string]string
	err := row.Scan(&d.ID, &d.Scope.Type, &d.Scope.ID, &d.Kind, &d.Title, &d.Content, &sourceURL, &metadata, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	d.Metadata = metadata
	return &d, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
