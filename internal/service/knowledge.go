package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetInternal(ctx context.Context, scope domain.Scope, kind domain.DocumentKind) (*domain.Document, error)
	Update(ctx context.Context, d *domain.Document) error
	Delete(ctx context.Context, id string) error
	ListByScope(ctx context.Context, scope domain.Scope) ([]*domain.Document, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// EmbeddingClient converts texts into fixed-dimension vectors, one per
// input, in input order. A failed call fails the whole batch.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SourceArchive optionally keeps the raw ingested payload per document.
type SourceArchive interface {
	PutSource(ctx context.Context, documentID string, payload []byte, contentType string) error
	DeleteSource(ctx context.Context, documentID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService owns document upserts and atomic chunk replacement.
// It is the only path that writes to the knowledge store.
type KnowledgeService struct {
	docs     DocumentRepositoryInterface
	chunks   ChunkRepositoryInterface
	embedder EmbeddingClient
	archive  SourceArchive
	chunkCfg ChunkConfig
	uuidGen  UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	embedder EmbeddingClient,
) *KnowledgeService {
	return &KnowledgeService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		chunkCfg: DefaultChunkConfig(),
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// WithArchive attaches an optional raw-source archive.
func (s *KnowledgeService) WithArchive(archive SourceArchive) *KnowledgeService {
	s.archive = archive
	return s
}

// WithChunkConfig overrides the default chunking configuration.
func (s *KnowledgeService) WithChunkConfig(cfg ChunkConfig) *KnowledgeService {
	s.chunkCfg = cfg
	return s
}

// WithUUIDGenerator overrides the UUID generator (for testing).
func (s *KnowledgeService) WithUUIDGenerator(gen UUIDGenerator) *KnowledgeService {
	s.uuidGen = gen
	return s
}

// UpsertDocumentInput carries everything needed to create or refresh a
// document row.
type UpsertDocumentInput struct {
	Scope     domain.Scope
	Kind      domain.DocumentKind
	Title     string
	Content   string
	SourceURL string
	Metadata  map[string]string
}

// UpsertDocument creates a document, or for internal kinds updates the
// (scope, kind) singleton in place. Returns the document id.
func (s *KnowledgeService) UpsertDocument(ctx context.Context, input UpsertDocumentInput) (string, error) {
	if err := domain.ValidateScope(input.Scope); err != nil {
		return "", err
	}
	if input.Title == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "document title is required")
	}

	now := time.Now().UTC()

	if input.Kind.IsInternal() {
		existing, err := s.docs.GetInternal(ctx, input.Scope, input.Kind)
		if err == nil {
			existing.Title = input.Title
			existing.Content = input.Content
			existing.Metadata = input.Metadata
			if err := s.docs.Update(ctx, existing); err != nil {
				return "", err
			}
			return existing.ID, nil
		}
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			return "", err
		}
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), input.Scope, input.Kind, input.Title, input.Content, input.SourceURL, now)
	doc.Metadata = input.Metadata
	if err := domain.ValidateDocument(doc); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// ReplaceChunks re-chunks and re-embeds content, then swaps the
// document's chunk set atomically. Embedding happens before anything is
// deleted: a provider failure leaves the previous chunk set untouched.
// Blank content yields a document with zero chunks.
func (s *KnowledgeService) ReplaceChunks(ctx context.Context, documentID, content string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.ReplaceChunks", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "replace_chunks",
	})
	defer span.End()

	texts := chunkText(content, s.chunkCfg)
	if len(texts) == 0 {
		return s.chunks.ReplaceChunks(ctx, documentID, nil)
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:            s.uuidGen.NewString(),
			DocumentID:    documentID,
			Seq:           i + 1,
			Text:          text,
			Embedding:     embeddings[i],
			TokenEstimate: estimateTokens(text),
		})
	}

	if err := s.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to replace chunks: %w", err)
	}
	return nil
}

// IngestSourceInput describes an external source handed over by the
// surrounding product with its text already extracted.
type IngestSourceInput struct {
	Scope      domain.Scope
	Kind       domain.DocumentKind
	Title      string
	Content    string
	SourceURL  string
	Metadata   map[string]string
	RawPayload []byte
}

// IngestSource indexes an uploaded, scraped, or transcribed source:
// upsert the document row, replace its chunk set, and archive the raw
// payload when an archive is configured.
func (s *KnowledgeService) IngestSource(ctx context.Context, input IngestSourceInput) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.IngestSource", telemetry.SpanAttributes{
		Scope:     input.Scope.String(),
		Operation: "ingest",
	})
	defer span.End()

	if input.Kind.IsInternal() {
		return "", domain.ErrInternalUpsert
	}

	docID, err := s.UpsertDocument(ctx, UpsertDocumentInput{
		Scope:     input.Scope,
		Kind:      input.Kind,
		Title:     input.Title,
		Content:   input.Content,
		SourceURL: input.SourceURL,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return "", err
	}

	if err := s.ReplaceChunks(ctx, docID, input.Content); err != nil {
		return "", err
	}

	if s.archive != nil && len(input.RawPayload) > 0 {
		if err := s.archive.PutSource(ctx, docID, input.RawPayload, "text/plain; charset=utf-8"); err != nil {
			// The archive is best-effort; the knowledge base is already
			// consistent at this point.
			log.Printf("source archive failed for document %s: %v", docID, err)
		}
	}

	return docID, nil
}

// DeleteSource removes a document and its chunks. Internal documents are
// managed by the synchronizer and disappear with their canvas.
func (s *KnowledgeService) DeleteSource(ctx context.Context, documentID string) error {
	if err := s.docs.Delete(ctx, documentID); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.DeleteSource(ctx, documentID); err != nil {
			log.Printf("failed to delete archived source %s: %v", documentID, err)
		}
	}
	return nil
}

// GetDocument returns a single document by ID.
func (s *KnowledgeService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, documentID)
}

// ListDocuments returns every document of a scope, internal ones
// included.
func (s *KnowledgeService) ListDocuments(ctx context.Context, scope domain.Scope) ([]*domain.Document, error) {
	if err := domain.ValidateScope(scope); err != nil {
		return nil, err
	}
	return s.docs.ListByScope(ctx, scope)
}
