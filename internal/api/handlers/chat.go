package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mindcanvas/brainbase/internal/api"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/service"
)

type ChatService interface {
	Answer(ctx context.Context, input service.AskInput) (*service.AskOutput, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type AskRequest struct {
	ScopeType      string `json:"scope_type"`
	ScopeID        string `json:"scope_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

type AskResponse struct {
	Answer             string                     `json:"answer"`
	Action             string                     `json:"action"`
	KnowledgeCitations []domain.KnowledgeCitation `json:"knowledge_citations"`
	WebCitations       []domain.WebCitation       `json:"web_citations"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	scope, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	output, err := h.svc.Answer(r.Context(), service.AskInput{
		Scope:          scope,
		ConversationID: req.ConversationID,
		Query:          req.Query,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AskResponse{
		Answer:             output.Answer,
		Action:             string(output.Action),
		KnowledgeCitations: output.KnowledgeCitations,
		WebCitations:       output.WebCitations,
	}
	if resp.KnowledgeCitations == nil {
		resp.KnowledgeCitations = []domain.KnowledgeCitation{}
	}
	if resp.WebCitations == nil {
		resp.WebCitations = []domain.WebCitation{}
	}

	api.Success(w, http.StatusOK, resp)
}
