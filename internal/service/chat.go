package service

import (
	"context"
	"log"
	"strings"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

// initialSnippetK bounds the cheap pre-decision retrieval. The decision
// engine only needs a taste of what the knowledge base holds.
const initialSnippetK = 3

// summaryRetrievalFactor widens retrieval for knowledge summaries, which
// want breadth over precision.
const summaryRetrievalFactor = 3

// ChatHistoryReader provides recent turns of a conversation, oldest first.
type ChatHistoryReader interface {
	RecentTurns(ctx context.Context, conversationID string, n int) ([]domain.ChatTurn, error)
}

// ChatConfig tunes the answer pipeline.
type ChatConfig struct {
	TopK         int
	HistoryTurns int
}

// DefaultChatConfig returns the default pipeline tuning.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		TopK:         5,
		HistoryTurns: 10,
	}
}

// AskInput is one question against a scope.
type AskInput struct {
	Scope          domain.Scope
	ConversationID string
	Query          string
}

// AskOutput is the answer with its citation lists and the action that
// produced it.
type AskOutput struct {
	Answer             string
	Action             domain.Action
	KnowledgeCitations []domain.KnowledgeCitation
	WebCitations       []domain.WebCitation
}

// ChatService runs the full question pipeline: snippet retrieval,
// action decision, context building, and answer synthesis.
type ChatService struct {
	retriever   *Retriever
	decisions   *DecisionEngine
	builder     *ContextBuilder
	synthesizer *Synthesizer
	history     ChatHistoryReader
	cfg         ChatConfig
}

func NewChatService(
	retriever *Retriever,
	decisions *DecisionEngine,
	builder *ContextBuilder,
	synthesizer *Synthesizer,
	history ChatHistoryReader,
	cfg ChatConfig,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultChatConfig().TopK
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultChatConfig().HistoryTurns
	}
	return &ChatService{
		retriever:   retriever,
		decisions:   decisions,
		builder:     builder,
		synthesizer: synthesizer,
		history:     history,
		cfg:         cfg,
	}
}

// Answer resolves one question end to end.
func (s *ChatService) Answer(ctx context.Context, input AskInput) (*AskOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Answer", telemetry.SpanAttributes{
		Scope:     input.Scope.String(),
		Operation: "answer",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := domain.ValidateScope(input.Scope); err != nil {
		return nil, err
	}

	snippet := s.initialSnippet(ctx, input.Scope, query)
	decision := s.decisions.Decide(ctx, query, snippet)
	span.SetTag("action", string(decision.Action))

	// A clarification skips retrieval and synthesis entirely; the
	// question back to the user is the answer.
	if decision.Action == domain.ActionClarify {
		return &AskOutput{
			Answer: decision.ClarificationQuestion,
			Action: decision.Action,
		}, nil
	}

	built, err := s.buildContext(ctx, input.Scope, query, decision)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	history := s.recentHistory(ctx, input.ConversationID)

	answer, err := s.synthesizer.Synthesize(ctx, SynthesisInput{
		Question:         query,
		Decision:         decision,
		KnowledgeContext: built.KnowledgeContext,
		WebContext:       built.WebContext,
		History:          history,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &AskOutput{
		Answer:             answer,
		Action:             decision.Action,
		KnowledgeCitations: built.KnowledgeCitations,
		WebCitations:       built.WebCitations,
	}, nil
}

// buildContext routes to the retrieval path the decision picked.
func (s *ChatService) buildContext(ctx context.Context, scope domain.Scope, query string, decision domain.Decision) (BuiltContext, error) {
	switch decision.Action {
	case domain.ActionKnowledgeOnly:
		return s.builder.BuildKnowledge(ctx, scope, query, s.cfg.TopK)
	case domain.ActionKnowledgeSummary:
		return s.builder.BuildKnowledge(ctx, scope, query, s.cfg.TopK*summaryRetrievalFactor)
	case domain.ActionWebSearch:
		searchQuery := decision.SearchQuery
		if searchQuery == "" {
			searchQuery = query
		}
		return s.builder.BuildWeb(ctx, searchQuery)
	case domain.ActionConversationSummary:
		return BuiltContext{}, nil
	default:
		return BuiltContext{}, nil
	}
}

// initialSnippet fetches a small knowledge sample for the decision
// engine. Failures degrade to an empty snippet rather than failing the
// question.
func (s *ChatService) initialSnippet(ctx context.Context, scope domain.Scope, query string) string {
	chunks, err := s.retriever.Retrieve(ctx, scope, query, initialSnippetK)
	if err != nil {
		log.Printf("initial retrieval failed, deciding without snippet: %v", err)
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (s *ChatService) recentHistory(ctx context.Context, conversationID string) []domain.ChatTurn {
	if s.history == nil || conversationID == "" {
		return nil
	}
	turns, err := s.history.RecentTurns(ctx, conversationID, s.cfg.HistoryTurns)
	if err != nil {
		log.Printf("loading chat history failed, answering without it: %v", err)
		return nil
	}
	return turns
}
