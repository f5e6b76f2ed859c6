package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgsync/internal/syncer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// defaults are the sync options a POST /sync body overrides.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Service, defaults syncer.Options, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, defaults)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Document.
	r.Get("/document", h.GetDocument)
	r.Get("/document/headings", h.GetHeadings)
	r.Get("/documents", h.ListDocuments)

	// Sync and its history.
	r.Post("/sync", h.Sync)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
