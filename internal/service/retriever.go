package service

import (
	"context"
	"strings"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

// ChunkSearchRepositoryInterface defines the repository interface for similarity search
type ChunkSearchRepositoryInterface interface {
	SearchBySimilarity(ctx context.Context, embedding []float32, scope domain.Scope, limit int, minSimilarity float32) ([]*domain.ScoredChunk, error)
}

// RetrieverConfig holds the retrieval tunables.
type RetrieverConfig struct {
	TopK          int
	MinSimilarity float32
}

// DefaultRetrieverConfig returns the default retrieval configuration.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:          5,
		MinSimilarity: 0.30,
	}
}

// Retriever embeds a query and returns the most similar chunks within a
// scope, best first.
type Retriever struct {
	repo     ChunkSearchRepositoryInterface
	embedder EmbeddingClient
	cfg      RetrieverConfig
}

func NewRetriever(repo ChunkSearchRepositoryInterface, embedder EmbeddingClient, cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultRetrieverConfig().TopK
	}
	return &Retriever{repo: repo, embedder: embedder, cfg: cfg}
}

// Retrieve returns up to k chunks whose similarity clears the configured
// floor. Zero results is the normal "no relevant knowledge" outcome, not
// an error. Pass k <= 0 to use the configured top-K.
func (r *Retriever) Retrieve(ctx context.Context, scope domain.Scope, query string, k int) ([]*domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := domain.ValidateScope(scope); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.cfg.TopK
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Scope:     scope.String(),
		Operation: "retrieve",
	})
	defer span.End()

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to embed query", err)
	}

	results, err := r.repo.SearchBySimilarity(ctx, embedding, scope, k, r.cfg.MinSimilarity)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return results, nil
}
