package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
	"github.com/mindcanvas/brainbase/internal/websearch"
)

const snippetMaxChars = 220

// ContextBuilderConfig bounds the assembled context.
type ContextBuilderConfig struct {
	MaxContextChars  int
	WebSearchResults int
}

// DefaultContextBuilderConfig returns the default context budget.
func DefaultContextBuilderConfig() ContextBuilderConfig {
	return ContextBuilderConfig{
		MaxContextChars:  6000,
		WebSearchResults: 5,
	}
}

// BuiltContext is the assembled prompt context with its citation lists.
// Knowledge and web citations stay separate; the surrounding UI renders
// them differently.
type BuiltContext struct {
	KnowledgeContext   string
	WebContext         string
	KnowledgeCitations []domain.KnowledgeCitation
	WebCitations       []domain.WebCitation
}

// ContextBuilder turns retrieved chunks or web results into the final
// prompt context.
type ContextBuilder struct {
	retriever *Retriever
	search    websearch.Searcher
	cfg       ContextBuilderConfig
}

func NewContextBuilder(retriever *Retriever, search websearch.Searcher, cfg ContextBuilderConfig) *ContextBuilder {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultContextBuilderConfig().MaxContextChars
	}
	if cfg.WebSearchResults <= 0 {
		cfg.WebSearchResults = DefaultContextBuilderConfig().WebSearchResults
	}
	return &ContextBuilder{retriever: retriever, search: search, cfg: cfg}
}

// BuildKnowledge retrieves up to k chunks and assembles the knowledge
// context. Chunks beyond the context budget are dropped lowest-similarity
// first; retrieval order already guarantees that.
func (b *ContextBuilder) BuildKnowledge(ctx context.Context, scope domain.Scope, query string, k int) (BuiltContext, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContextBuilder.BuildKnowledge", telemetry.SpanAttributes{
		Scope:     scope.String(),
		Operation: "build_knowledge",
	})
	defer span.End()

	chunks, err := b.retriever.Retrieve(ctx, scope, query, k)
	if err != nil {
		span.SetError(err)
		return BuiltContext{}, err
	}
	return b.FromChunks(chunks), nil
}

// FromChunks assembles knowledge context from already-retrieved chunks,
// which must arrive sorted best-first.
func (b *ContextBuilder) FromChunks(chunks []*domain.ScoredChunk) BuiltContext {
	var out BuiltContext
	var parts []string
	used := 0
	for _, c := range chunks {
		size := utf8.RuneCountInString(c.Text)
		if used+size > b.cfg.MaxContextChars && used > 0 {
			break
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", c.DocumentTitle, c.Text))
		used += size
		out.KnowledgeCitations = append(out.KnowledgeCitations, domain.KnowledgeCitation{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Title:      c.DocumentTitle,
			Snippet:    makeSnippet(c.Text),
			Similarity: c.Similarity,
		})
	}
	out.KnowledgeContext = strings.Join(parts, "\n\n")
	return out
}

// BuildWeb queries the web search adapter and assembles the web context,
// deduplicating results by normalized URL.
func (b *ContextBuilder) BuildWeb(ctx context.Context, searchQuery string) (BuiltContext, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContextBuilder.BuildWeb", telemetry.SpanAttributes{
		Operation: "build_web",
	})
	defer span.End()

	if b.search == nil {
		return BuiltContext{}, domain.ErrWebSearchFailed
	}

	results, err := b.search.Search(ctx, searchQuery, b.cfg.WebSearchResults)
	if err != nil {
		span.SetError(err)
		return BuiltContext{}, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "web search failed", err)
	}

	var out BuiltContext
	var parts []string
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		key := normalizeURL(r.Link)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		parts = append(parts, fmt.Sprintf("[%s] %s\n%s", r.Source, r.Title, r.Snippet))
		out.WebCitations = append(out.WebCitations, domain.WebCitation{
			Title:   r.Title,
			URL:     r.Link,
			Source:  r.Source,
			Snippet: r.Snippet,
		})
	}
	out.WebContext = strings.Join(parts, "\n\n")
	return out, nil
}

// normalizeURL lowers the host and strips fragments and trailing slashes
// so near-identical links collapse to one citation.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	normalized := u.String()
	return strings.TrimRight(normalized, "/")
}

func makeSnippet(content string) string {
	if content == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) <= snippetMaxChars {
		return clean
	}
	return string(runes[:snippetMaxChars-3]) + "..."
}
