package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mindcanvas/brainbase/internal/api"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/service"
)

// SyncSubmitter queues canvas state snapshots for background indexing.
type SyncSubmitter interface {
	SubmitNodes(scope domain.Scope, nodes []service.Node)
	SubmitMemos(scope domain.Scope, memos []service.Memo)
	SubmitTodos(scope domain.Scope, todos []service.Todo)
}

type SyncHandler struct {
	worker SyncSubmitter
}

func NewSyncHandler(worker SyncSubmitter) *SyncHandler {
	return &SyncHandler{worker: worker}
}

type NodePayload struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type MemoPayload struct {
	Content string `json:"content"`
}

type TodoPayload struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type SyncRequest struct {
	ScopeType string        `json:"scope_type"`
	ScopeID   string        `json:"scope_id"`
	Nodes     []NodePayload `json:"nodes"`
	Memos     []MemoPayload `json:"memos"`
	Todos     []TodoPayload `json:"todos"`
}

type SyncResponse struct {
	Queued bool   `json:"queued"`
	Kind   string `json:"kind"`
}

// Sync accepts a full snapshot of one state kind and queues it for
// indexing. The response only acknowledges the handoff; indexing runs
// in the background.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scope, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	switch kind {
	case "nodes":
		nodes := make([]service.Node, len(req.Nodes))
		for i, n := range req.Nodes {
			nodes[i] = service.Node{Type: n.Type, Title: n.Title, Subtitle: n.Subtitle}
		}
		h.worker.SubmitNodes(scope, nodes)
	case "memos":
		memos := make([]service.Memo, len(req.Memos))
		for i, m := range req.Memos {
			memos[i] = service.Memo{Content: m.Content}
		}
		h.worker.SubmitMemos(scope, memos)
	case "todos":
		todos := make([]service.Todo, len(req.Todos))
		for i, t := range req.Todos {
			todos[i] = service.Todo{Content: t.Content, Done: t.Done}
		}
		h.worker.SubmitTodos(scope, todos)
	default:
		api.Error(w, http.StatusBadRequest, "unknown sync kind")
		return
	}

	api.Success(w, http.StatusAccepted, SyncResponse{Queued: true, Kind: kind})
}
