package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetInternal(ctx context.Context, scope domain.Scope, kind domain.DocumentKind) (*domain.Document, error) {
	args := m.Called(ctx, scope, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListByScope(ctx context.Context, scope domain.Scope) ([]*domain.Document, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockSourceArchive is a mock implementation of SourceArchive
type MockSourceArchive struct {
	mock.Mock
}

func (m *MockSourceArchive) PutSource(ctx context.Context, documentID string, payload []byte, contentType string) error {
	args := m.Called(ctx, documentID, payload, contentType)
	return args.Error(0)
}

func (m *MockSourceArchive) DeleteSource(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockUUIDGenerator returns a fixed sequence of ids
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

func canvasScope(id string) domain.Scope {
	return domain.Scope{Type: domain.ScopeCanvas, ID: id}
}

func TestKnowledgeService_UpsertDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a new document for external kinds", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithUUIDGenerator(NewMockUUIDGenerator("doc-1"))

		mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "doc-1" &&
				d.Scope == canvasScope("canvas-1") &&
				d.Kind == domain.KindText &&
				d.Title == "Meeting notes"
		})).Return(nil)

		id, err := svc.UpsertDocument(ctx, UpsertDocumentInput{
			Scope:   canvasScope("canvas-1"),
			Kind:    domain.KindText,
			Title:   "Meeting notes",
			Content: "notes body",
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", id)
		mockDocs.AssertExpectations(t)
	})

	t.Run("updates the existing singleton for internal kinds", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithUUIDGenerator(NewMockUUIDGenerator("unused"))

		existing := &domain.Document{
			ID:        "internal-1",
			Scope:     canvasScope("canvas-1"),
			Kind:      domain.KindInternalTodos,
			Title:     "할일 목록",
			Content:   "old snapshot",
			CreatedAt: time.Now().UTC().Add(-time.Hour),
		}

		mockDocs.On("GetInternal", mock.Anything, canvasScope("canvas-1"), domain.KindInternalTodos).Return(existing, nil)
		mockDocs.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "internal-1" && d.Content == "new snapshot"
		})).Return(nil)

		id, err := svc.UpsertDocument(ctx, UpsertDocumentInput{
			Scope:   canvasScope("canvas-1"),
			Kind:    domain.KindInternalTodos,
			Title:   "할일 목록",
			Content: "new snapshot",
		})

		require.NoError(t, err)
		assert.Equal(t, "internal-1", id)
		mockDocs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockDocs.AssertExpectations(t)
	})

	t.Run("creates the singleton on first internal sync", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithUUIDGenerator(NewMockUUIDGenerator("internal-new"))

		mockDocs.On("GetInternal", mock.Anything, canvasScope("canvas-1"), domain.KindInternalMemos).
			Return(nil, domain.ErrDocumentNotFound)
		mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "internal-new" && d.Kind == domain.KindInternalMemos
		})).Return(nil)

		id, err := svc.UpsertDocument(ctx, UpsertDocumentInput{
			Scope:   canvasScope("canvas-1"),
			Kind:    domain.KindInternalMemos,
			Title:   "메모 목록",
			Content: "snapshot",
		})

		require.NoError(t, err)
		assert.Equal(t, "internal-new", id)
		mockDocs.AssertExpectations(t)
	})

	t.Run("treats a wrapped not-found as first sync", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithUUIDGenerator(NewMockUUIDGenerator("internal-new"))

		mockDocs.On("GetInternal", mock.Anything, canvasScope("canvas-1"), domain.KindInternalMemos).
			Return(nil, fmt.Errorf("get internal: %w", domain.ErrDocumentNotFound))
		mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "internal-new"
		})).Return(nil)

		id, err := svc.UpsertDocument(ctx, UpsertDocumentInput{
			Scope:   canvasScope("canvas-1"),
			Kind:    domain.KindInternalMemos,
			Title:   "메모 목록",
			Content: "snapshot",
		})

		require.NoError(t, err)
		assert.Equal(t, "internal-new", id)
		mockDocs.AssertExpectations(t)
	})

	t.Run("rejects invalid scope", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		svc := NewKnowledgeService(mockDocs, new(MockChunkRepository), new(MockEmbeddingClient))

		_, err := svc.UpsertDocument(ctx, UpsertDocumentInput{
			Scope: domain.Scope{Type: domain.ScopeCanvas},
			Kind:  domain.KindText,
			Title: "t",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidScope)
		mockDocs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestKnowledgeService_ReplaceChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds before replacing and numbers chunks from one", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		cfg := ChunkConfig{TargetChars: 10, MinChars: 3, Overlap: 0}
		content := "first part second part third part"
		texts := chunkText(content, cfg)
		embeddings := make([][]float32, len(texts))
		for i := range embeddings {
			embeddings[i] = []float32{float32(i) + 0.1}
		}

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithChunkConfig(cfg).
			WithUUIDGenerator(NewMockUUIDGenerator())

		mockEmbedder.On("EmbedBatch", mock.Anything, texts).Return(embeddings, nil)
		mockChunks.On("ReplaceChunks", mock.Anything, "doc-1", mock.MatchedBy(func(chunks []domain.Chunk) bool {
			for i, c := range chunks {
				if c.Seq != i+1 || c.DocumentID != "doc-1" || len(c.Embedding) == 0 {
					return false
				}
			}
			return len(chunks) == len(texts) && len(chunks) > 0
		})).Return(nil)

		err := svc.ReplaceChunks(ctx, "doc-1", content)

		require.NoError(t, err)
		mockChunks.AssertExpectations(t)
	})

	t.Run("embedding failure leaves existing chunks untouched", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder)

		mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down"))

		err := svc.ReplaceChunks(ctx, "doc-1", "some content to index")

		require.Error(t, err)
		mockChunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("blank content clears the chunk set without embedding", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder)

		mockChunks.On("ReplaceChunks", mock.Anything, "doc-1", []domain.Chunk(nil)).Return(nil)

		err := svc.ReplaceChunks(ctx, "doc-1", "   \n ")

		require.NoError(t, err)
		mockEmbedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
		mockChunks.AssertExpectations(t)
	})
}

func TestKnowledgeService_IngestSource(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects internal kinds", func(t *testing.T) {
		svc := NewKnowledgeService(new(MockDocumentRepository), new(MockChunkRepository), new(MockEmbeddingClient))

		_, err := svc.IngestSource(ctx, IngestSourceInput{
			Scope: canvasScope("canvas-1"),
			Kind:  domain.KindInternalNodes,
			Title: "nope",
		})

		assert.ErrorIs(t, err, domain.ErrInternalUpsert)
	})

	t.Run("archive failure does not fail ingestion", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockChunks := new(MockChunkRepository)
		mockEmbedder := new(MockEmbeddingClient)
		mockArchive := new(MockSourceArchive)

		svc := NewKnowledgeService(mockDocs, mockChunks, mockEmbedder).
			WithArchive(mockArchive).
			WithUUIDGenerator(NewMockUUIDGenerator("doc-1", "c-1"))

		mockDocs.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockEmbedder.On("EmbedBatch", mock.Anything, []string{"page text"}).
			Return([][]float32{{0.5}}, nil)
		mockChunks.On("ReplaceChunks", mock.Anything, "doc-1", mock.Anything).Return(nil)
		mockArchive.On("PutSource", mock.Anything, "doc-1", []byte("raw html"), mock.Anything).
			Return(errors.New("bucket unavailable"))

		id, err := svc.IngestSource(ctx, IngestSourceInput{
			Scope:      canvasScope("canvas-1"),
			Kind:       domain.KindURL,
			Title:      "A page",
			Content:    "page text",
			SourceURL:  "https://example.com/page",
			RawPayload: []byte("raw html"),
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", id)
		mockArchive.AssertExpectations(t)
	})
}

func TestKnowledgeService_DeleteSource(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes document and archived payload", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		mockArchive := new(MockSourceArchive)

		svc := NewKnowledgeService(mockDocs, new(MockChunkRepository), new(MockEmbeddingClient)).
			WithArchive(mockArchive)

		mockDocs.On("Delete", mock.Anything, "doc-1").Return(nil)
		mockArchive.On("DeleteSource", mock.Anything, "doc-1").Return(nil)

		require.NoError(t, svc.DeleteSource(ctx, "doc-1"))
		mockDocs.AssertExpectations(t)
		mockArchive.AssertExpectations(t)
	})

	t.Run("propagates not found", func(t *testing.T) {
		mockDocs := new(MockDocumentRepository)
		svc := NewKnowledgeService(mockDocs, new(MockChunkRepository), new(MockEmbeddingClient))

		mockDocs.On("Delete", mock.Anything, "missing").Return(domain.ErrDocumentNotFound)

		assert.ErrorIs(t, svc.DeleteSource(ctx, "missing"), domain.ErrDocumentNotFound)
	})
}
