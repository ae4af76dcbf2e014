package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatHistoryReader is a mock implementation of ChatHistoryReader
type MockChatHistoryReader struct {
	mock.Mock
}

func (m *MockChatHistoryReader) RecentTurns(ctx context.Context, conversationID string, n int) ([]domain.ChatTurn, error) {
	args := m.Called(ctx, conversationID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatTurn), args.Error(1)
}

type chatFixture struct {
	embedder *MockEmbeddingClient
	repo     *MockChunkSearchRepository
	llm      *MockCompletionClient
	search   *MockSearcher
	history  *MockChatHistoryReader
	svc      *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		embedder: new(MockEmbeddingClient),
		repo:     new(MockChunkSearchRepository),
		llm:      new(MockCompletionClient),
		search:   new(MockSearcher),
		history:  new(MockChatHistoryReader),
	}

	retriever := NewRetriever(f.repo, f.embedder, RetrieverConfig{TopK: 5, MinSimilarity: 0.3})
	builder := NewContextBuilder(retriever, f.search, ContextBuilderConfig{MaxContextChars: 6000, WebSearchResults: 5})
	f.svc = NewChatService(
		retriever,
		NewDecisionEngine(f.llm),
		builder,
		NewSynthesizer(f.llm),
		f.history,
		ChatConfig{TopK: 5, HistoryTurns: 10},
	)
	return f
}

func TestChatService_Answer(t *testing.T) {
	ctx := context.Background()
	scope := canvasScope("canvas-1")

	t.Run("knowledge-only path answers from retrieved chunks", func(t *testing.T) {
		f := newChatFixture()

		chunks := []*domain.ScoredChunk{
			scored("c-1", "d-1", "회의록", "다음 분기 목표는 출시 준비", 0.88),
		}

		f.embedder.On("Embed", mock.Anything, "분기 목표가 뭐였지?").Return([]float32{0.1}, nil)
		f.repo.On("SearchBySimilarity", mock.Anything, mock.Anything, scope, mock.Anything, mock.Anything).
			Return(chunks, nil)
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"KNOWLEDGE_ONLY","reason":"snippet covers it"}`, nil)
		f.history.On("RecentTurns", mock.Anything, "conv-1", 10).Return([]domain.ChatTurn{}, nil)
		f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(messages []PromptMessage) bool {
			last := messages[len(messages)-1]
			return last.Role == RoleUser &&
				strings.Contains(last.Content, "다음 분기 목표는 출시 준비") &&
				strings.Contains(last.Content, "분기 목표가 뭐였지?")
		})).Return("다음 분기 목표는 출시 준비입니다.", nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, ConversationID: "conv-1", Query: "분기 목표가 뭐였지?"})

		require.NoError(t, err)
		assert.Equal(t, domain.ActionKnowledgeOnly, out.Action)
		assert.Equal(t, "다음 분기 목표는 출시 준비입니다.", out.Answer)
		require.Len(t, out.KnowledgeCitations, 1)
		assert.Equal(t, "c-1", out.KnowledgeCitations[0].ChunkID)
		assert.Empty(t, out.WebCitations)
		f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("web search path carries web citations only", func(t *testing.T) {
		f := newChatFixture()

		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.repo.On("SearchBySimilarity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*domain.ScoredChunk{}, nil)
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"WEB_SEARCH","reason":"current info","search_query":"seoul weather today"}`, nil)
		f.search.On("Search", mock.Anything, "seoul weather today", 5).Return([]websearch.Result{
			{Title: "Weather", Link: "https://weather.example.com/seoul", Snippet: "sunny", Source: "weather.example.com"},
		}, nil)
		f.history.On("RecentTurns", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ChatTurn{}, nil)
		f.llm.On("Complete", mock.Anything, mock.Anything).Return("오늘 서울은 맑습니다.", nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, ConversationID: "conv-1", Query: "오늘 서울 날씨는?"})

		require.NoError(t, err)
		assert.Equal(t, domain.ActionWebSearch, out.Action)
		assert.Empty(t, out.KnowledgeCitations)
		require.Len(t, out.WebCitations, 1)
		assert.Equal(t, "https://weather.example.com/seoul", out.WebCitations[0].URL)
	})

	t.Run("clarify skips retrieval and synthesis", func(t *testing.T) {
		f := newChatFixture()

		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.repo.On("SearchBySimilarity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*domain.ScoredChunk{}, nil)
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"CLARIFY","reason":"ambiguous","clarification_question":"어떤 문서를 말씀하시는 건가요?"}`, nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, Query: "그거 요약해줘"})

		require.NoError(t, err)
		assert.Equal(t, domain.ActionClarify, out.Action)
		assert.Equal(t, "어떤 문서를 말씀하시는 건가요?", out.Answer)
		assert.Empty(t, out.KnowledgeCitations)
		assert.Empty(t, out.WebCitations)
		f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		f.history.AssertNotCalled(t, "RecentTurns", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("conversation summary uses history without retrieval context", func(t *testing.T) {
		f := newChatFixture()

		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.repo.On("SearchBySimilarity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*domain.ScoredChunk{}, nil)
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"CONVERSATION_SUMMARY","reason":"asked for it"}`, nil)
		f.history.On("RecentTurns", mock.Anything, "conv-1", 10).Return([]domain.ChatTurn{
			{Role: domain.ChatRoleUser, Content: "프로젝트 일정 알려줘", CreatedAt: time.Now().Add(-time.Minute)},
			{Role: domain.ChatRoleAssistant, Content: "3월 출시 예정입니다", CreatedAt: time.Now()},
		}, nil)
		f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(messages []PromptMessage) bool {
			// history turns precede the final user prompt
			return len(messages) == 4 && messages[1].Content == "프로젝트 일정 알려줘"
		})).Return("일정에 대해 이야기했습니다.", nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, ConversationID: "conv-1", Query: "지금까지 대화 요약해줘"})

		require.NoError(t, err)
		assert.Equal(t, domain.ActionConversationSummary, out.Action)
		assert.Empty(t, out.KnowledgeCitations)
		assert.Empty(t, out.WebCitations)
		f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed snippet retrieval still answers via fallback", func(t *testing.T) {
		f := newChatFixture()

		f.embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"WEB_SEARCH","reason":"no snippet","search_query":"fallback query"}`, nil)
		f.search.On("Search", mock.Anything, "fallback query", mock.Anything).
			Return([]websearch.Result{}, nil)
		f.history.On("RecentTurns", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ChatTurn{}, nil)
		f.llm.On("Complete", mock.Anything, mock.Anything).Return("웹에서 찾지 못했습니다.", nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, ConversationID: "conv-1", Query: "무언가"})

		require.NoError(t, err)
		assert.Equal(t, domain.ActionWebSearch, out.Action)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		f := newChatFixture()

		_, err := f.svc.Answer(ctx, AskInput{Scope: scope, Query: "  "})

		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	})

	t.Run("history failure degrades to answering without history", func(t *testing.T) {
		f := newChatFixture()

		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.repo.On("SearchBySimilarity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*domain.ScoredChunk{}, nil)
		f.llm.On("CompleteJSON", mock.Anything, mock.Anything).
			Return(`{"action":"KNOWLEDGE_ONLY","reason":"fine"}`, nil)
		f.history.On("RecentTurns", mock.Anything, "conv-1", 10).
			Return(nil, errors.New("table missing"))
		f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(messages []PromptMessage) bool {
			return len(messages) == 2
		})).Return("답변", nil)

		out, err := f.svc.Answer(ctx, AskInput{Scope: scope, ConversationID: "conv-1", Query: "질문"})

		require.NoError(t, err)
		assert.Equal(t, "답변", out.Answer)
	})
}
