package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/syncservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *syncservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *syncservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListCatalogue handles GET /api/catalogue.
//
//	@Summary		Current catalogue as written to the target tree
//	@Tags			catalogue
//	@Produce		json
//	@Success		200	{array}	Entry
//	@Router			/catalogue [get]
func (h *Handler) ListCatalogue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Catalogue(r.Context())
	if err != nil {
		slog.Error("load catalogue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetEntry handles GET /api/catalogue/{id}.
//
//	@Summary		Single catalogue entry
//	@Tags			catalogue
//	@Produce		json
//	@Param			id	path		int	true	"Entry id"
//	@Success		200	{object}	Entry
//	@Failure		404	{object}	errResponse
//	@Router			/catalogue/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	e, err := h.svc.Entry(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get entry failed", slog.Int("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListWorkspaces handles GET /api/workspaces.
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Workspaces(r.Context())
	if err != nil {
		slog.Error("list workspaces failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceListResponse{Workspaces: items})
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		if errors.Is(err, apperr.ErrDisabled) {
			writeError(w, http.StatusNotFound, "run history is disabled")
		} else {
			slog.Error("list runs failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// TriggerSync handles POST /api/sync.
//
//	@Summary		Run a synchronization pass now
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrLocked) {
			writeError(w, http.StatusConflict, "sync already running")
		} else {
			slog.Error("sync failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse(res))
}
