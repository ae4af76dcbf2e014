package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mindcanvas/brainbase/internal/api"
	"github.com/mindcanvas/brainbase/internal/api/handlers"
	"github.com/mindcanvas/brainbase/internal/api/middleware"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
	ChatHandler      *handlers.ChatHandler
	SyncHandler      *handlers.SyncHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/knowledge", func(r chi.Router) {
		r.Post("/", cfg.KnowledgeHandler.Ingest)
		r.Get("/", cfg.KnowledgeHandler.List)
		r.Get("/{id}", cfg.KnowledgeHandler.Get)
		r.Delete("/{id}", cfg.KnowledgeHandler.Delete)
	})

	r.Post("/ask", cfg.ChatHandler.Ask)

	r.Post("/sync/{kind}", cfg.SyncHandler.Sync)

	return r
}
