package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/wssync/internal/syncservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced on POST /sync;
// reads stay public because the catalogue is published anyway.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *syncservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Catalogue.
	r.Get("/catalogue", h.ListCatalogue)
	r.Get("/catalogue/{id}", h.GetEntry)

	// Workspaces and run history.
	r.Get("/workspaces", h.ListWorkspaces)
	r.Get("/runs", h.ListRuns)

	// On-demand pass.
	r.With(RequireToken(authEnabled, token)).Post("/sync", h.TriggerSync)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
