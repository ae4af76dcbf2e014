//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindcanvas/brainbase/internal/api/handlers"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/jobs"
	"github.com/mindcanvas/brainbase/internal/repository"
	"github.com/mindcanvas/brainbase/internal/server"
	"github.com/mindcanvas/brainbase/internal/service"
	"github.com/mindcanvas/brainbase/internal/testutil"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Dispatcher   *jobs.Dispatcher
	LLM          *fakeLLM
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment: a pgvector container,
// the real service stack wired over it, and deterministic in-process
// model fakes so no external provider is needed.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	llm := &fakeLLM{}
	serverURL, dispatcher, serverCloser := startServer(t, pool, llm)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Dispatcher:   dispatcher,
		LLM:          llm,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// fakeEmbedder produces deterministic embeddings: each rune contributes
// to one dimension, so texts sharing words land close in cosine space.
type fakeEmbedder struct{}

func embedText(text string) []float32 {
	v := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		v[h%embeddingDims] += 1
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

// fakeLLM answers decision calls with a configurable action and echoes
// grounded context markers on synthesis calls.
type fakeLLM struct {
	// NextAction is returned on the next decision call; empty means
	// KNOWLEDGE_ONLY.
	NextAction        string
	NextSearchQuery   string
	NextClarification string
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []service.PromptMessage) (string, error) {
	action := f.NextAction
	if action == "" {
		action = string(domain.ActionKnowledgeOnly)
	}
	decision := map[string]string{"action": action}
	if f.NextSearchQuery != "" {
		decision["search_query"] = f.NextSearchQuery
	}
	if f.NextClarification != "" {
		decision["clarification_question"] = f.NextClarification
	}
	raw, err := json.Marshal(decision)
	return string(raw), err
}

func (f *fakeLLM) Complete(ctx context.Context, messages []service.PromptMessage) (string, error) {
	// Echo whether context reached the prompt so tests can assert
	// grounding end to end.
	last := messages[len(messages)-1].Content
	if strings.Contains(last, "(no context available)") {
		return "컨텍스트가 없어 답할 수 없습니다.", nil
	}
	return "컨텍스트 기반 답변입니다.", nil
}

func startServer(t *testing.T, pool *pgxpool.Pool, llm *fakeLLM) (string, *jobs.Dispatcher, func()) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	chatHistoryRepo := repository.NewChatHistoryRepository(pool)

	embedder := &fakeEmbedder{}

	knowledgeSvc := service.NewKnowledgeService(docRepo, chunkRepo, embedder)
	retriever := service.NewRetriever(chunkRepo, embedder, service.RetrieverConfig{
		TopK:          5,
		MinSimilarity: 0.1,
	})
	decisions := service.NewDecisionEngine(llm)
	builder := service.NewContextBuilder(retriever, nil, service.ContextBuilderConfig{})
	synthesizer := service.NewSynthesizer(llm)
	chatSvc := service.NewChatService(retriever, decisions, builder, synthesizer, chatHistoryRepo, service.ChatConfig{})

	synchronizer := service.NewSynchronizer(knowledgeSvc)
	dispatcher := jobs.NewDispatcher(time.Minute)
	syncWorker := jobs.NewSyncWorker(dispatcher, synchronizer)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		SyncHandler:      handlers.NewSyncHandler(syncWorker),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, dispatcher, func() {
		dispatcher.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not become ready within %s", timeout)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// WaitForDocument polls until the internal document for (scope, kind)
// exists, for asserting on background sync completion.
func (e *E2ETestEnv) WaitForDocument(scope domain.Scope, kind domain.DocumentKind, timeout time.Duration) *domain.Document {
	repo := repository.NewDocumentRepository(e.Pool)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := repo.GetInternal(e.Ctx, scope, kind)
		if err == nil {
			return doc
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document for %s/%s never appeared", scope.String(), kind)
	return nil
}

// WaitForDocumentContent polls until the internal document's content
// contains the given substring, for second-sync assertions.
func (e *E2ETestEnv) WaitForDocumentContent(scope domain.Scope, kind domain.DocumentKind, substr string, timeout time.Duration) *domain.Document {
	repo := repository.NewDocumentRepository(e.Pool)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := repo.GetInternal(e.Ctx, scope, kind)
		if err == nil && strings.Contains(doc.Content, substr) {
			return doc
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document for %s/%s never contained %q", scope.String(), kind, substr)
	return nil
}
