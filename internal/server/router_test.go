package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mindcanvas/brainbase/internal/api/handlers"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/service"
)

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) IngestSource(ctx context.Context, input service.IngestSourceInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockKnowledgeService) DeleteSource(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockKnowledgeService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockKnowledgeService) ListDocuments(ctx context.Context, scope domain.Scope) ([]*domain.Document, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Answer(ctx context.Context, input service.AskInput) (*service.AskOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskOutput), args.Error(1)
}

type MockSyncSubmitter struct {
	mock.Mock
}

func (m *MockSyncSubmitter) SubmitNodes(scope domain.Scope, nodes []service.Node) {
	m.Called(scope, nodes)
}

func (m *MockSyncSubmitter) SubmitMemos(scope domain.Scope, memos []service.Memo) {
	m.Called(scope, memos)
}

func (m *MockSyncSubmitter) SubmitTodos(scope domain.Scope, todos []service.Todo) {
	m.Called(scope, todos)
}

func setupRouter() (http.Handler, *MockKnowledgeService, *MockChatService, *MockSyncSubmitter) {
	knowledgeSvc := new(MockKnowledgeService)
	chatSvc := new(MockChatService)
	syncWorker := new(MockSyncSubmitter)

	cfg := RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		SyncHandler:      handlers.NewSyncHandler(syncWorker),
	}

	return NewRouter(cfg), knowledgeSvc, chatSvc, syncWorker
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_KnowledgeRoutes(t *testing.T) {
	router, knowledgeSvc, _, _ := setupRouter()

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        "d-1",
		Scope:     domain.Scope{Type: domain.ScopeGlobal},
		Kind:      domain.KindText,
		Title:     "노트",
		Content:   "내용",
		CreatedAt: now,
		UpdatedAt: now,
	}

	knowledgeSvc.On("IngestSource", mock.Anything, mock.Anything).Return("d-1", nil)
	knowledgeSvc.On("GetDocument", mock.Anything, "d-1").Return(doc, nil)
	knowledgeSvc.On("ListDocuments", mock.Anything, mock.Anything).Return([]*domain.Document{doc}, nil)
	knowledgeSvc.On("DeleteSource", mock.Anything, "d-1").Return(nil)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/knowledge", `{"title":"노트","content":"내용"}`, http.StatusCreated},
		{http.MethodGet, "/knowledge", "", http.StatusOK},
		{http.MethodGet, "/knowledge/d-1", "", http.StatusOK},
		{http.MethodDelete, "/knowledge/d-1", "", http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var req *http.Request
			if tc.body != "" {
				req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			} else {
				req = httptest.NewRequest(tc.method, tc.path, nil)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}

	knowledgeSvc.AssertExpectations(t)
}

func TestRouter_AskRoute(t *testing.T) {
	router, _, chatSvc, _ := setupRouter()

	chatSvc.On("Answer", mock.Anything, mock.Anything).Return(&service.AskOutput{
		Answer: "답변입니다.",
		Action: domain.ActionKnowledgeOnly,
	}, nil)

	body := `{"query":"질문"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	chatSvc.AssertExpectations(t)
}

func TestRouter_SyncRoute(t *testing.T) {
	router, _, _, syncWorker := setupRouter()

	syncWorker.On("SubmitTodos", mock.Anything, mock.Anything).Return()

	body := `{"scope_type":"canvas","scope_id":"c-1","todos":[{"content":"할일","done":false}]}`
	req := httptest.NewRequest(http.MethodPost, "/sync/todos", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	syncWorker.AssertExpectations(t)
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "req-abc", w.Header().Get("X-Request-ID"))
}

func TestRouter_BodyLimitEnforced(t *testing.T) {
	router, _, _, _ := setupRouter()

	big := bytes.Repeat([]byte("a"), 6*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(big))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
