package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mindcanvas/brainbase/internal/api"
	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/service"
)

type KnowledgeService interface {
	IngestSource(ctx context.Context, input service.IngestSourceInput) (string, error)
	DeleteSource(ctx context.Context, documentID string) error
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	ListDocuments(ctx context.Context, scope domain.Scope) ([]*domain.Document, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type IngestRequest struct {
	ScopeType string            `json:"scope_type"`
	ScopeID   string            `json:"scope_id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	SourceURL string            `json:"source_url"`
	Metadata  map[string]string `json:"metadata"`
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
}

type DocumentResponse struct {
	ID        string            `json:"id"`
	ScopeType string            `json:"scope_type"`
	ScopeID   string            `json:"scope_id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	SourceURL string            `json:"source_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        d.ID,
		ScopeType: string(d.Scope.Type),
		ScopeID:   d.Scope.ID,
		Kind:      string(d.Kind),
		Title:     d.Title,
		SourceURL: d.SourceURL,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	kind := domain.DocumentKind(req.Kind)
	if kind == "" {
		kind = domain.KindText
	}
	if !isValidSourceKind(kind) {
		api.Error(w, http.StatusBadRequest, "invalid document kind")
		return
	}

	scope, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	input := service.IngestSourceInput{
		Scope:      scope,
		Kind:       kind,
		Title:      req.Title,
		Content:    req.Content,
		SourceURL:  req.SourceURL,
		Metadata:   req.Metadata,
		RawPayload: []byte(req.Content),
	}

	docID, err := h.svc.IngestSource(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{DocumentID: docID})
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteSource(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type DocumentListResponse struct {
	Items []*DocumentResponse `json:"items"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r.URL.Query().Get("scope_type"), r.URL.Query().Get("scope_id"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := h.svc.ListDocuments(r.Context(), scope)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{Items: responses})
}

// isValidSourceKind accepts only externally ingestible kinds. Internal
// kinds belong to the synchronizer.
func isValidSourceKind(k domain.DocumentKind) bool {
	switch k {
	case domain.KindText, domain.KindURL, domain.KindYouTube, domain.KindPDF:
		return true
	}
	return false
}

func parseScope(scopeType, scopeID string) (domain.Scope, error) {
	scope := domain.Scope{Type: domain.ScopeType(scopeType), ID: scopeID}
	if scopeType == "" {
		scope.Type = domain.ScopeGlobal
	}
	if err := domain.ValidateScope(scope); err != nil {
		return domain.Scope{}, err
	}
	return scope, nil
}
