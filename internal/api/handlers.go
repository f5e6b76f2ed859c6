package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/checksum"
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/syncer"
)

// Service is the domain layer behind the handlers; *syncer.Syncer
// implements it.
type Service interface {
	Sync(ctx context.Context, opts syncer.Options) (*syncer.Result, error)
	Document(path string) (*syncer.DocumentDetail, error)
	Documents() ([]models.DocumentInfo, error)
	Inspect(path string, headings bool) (*models.DocumentSummary, error)
	Runs(limit int) ([]history.Run, error)
	Run(id string) (*history.Run, error)
}

var _ Service = (*syncer.Syncer)(nil)

// Handler holds API route handlers.
type Handler struct {
	svc      Service
	defaults syncer.Options
}

// NewHandler creates a new Handler.
func NewHandler(svc Service, defaults syncer.Options) *Handler {
	return &Handler{svc: svc, defaults: defaults}
}

// GetDocument handles GET /api/document.
//
//	@Summary		Get the raw outline
//	@Tags			document
//	@Produce		json
//	@Param			If-None-Match	header	string	false	"ETag from a previous response"
//	@Success		200		{object}	DocumentDetail
//	@Success		304		"Not modified"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(h.defaults.Document)
	if err != nil {
		h.documentError(w, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	if checksum.Matches(r.Header.Get("If-None-Match"), doc.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetHeadings handles GET /api/document/headings.
//
//	@Summary		List the headings of the outline
//	@Tags			document
//	@Produce		json
//	@Success		200		{object}	DocumentSummary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/headings [get]
func (h *Handler) GetHeadings(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Inspect(h.defaults.Document, true)
	if err != nil {
		h.documentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List the outlines next to the synced document
//	@Tags			document
//	@Produce		json
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents()
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if docs == nil {
		docs = []models.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

func (h *Handler) documentError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	slog.Error("read document failed", slog.String("path", h.defaults.Document), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// Sync handles POST /api/sync.
//
//	@Summary		Run a sync
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncRequest	false	"Overrides of the configured sync options"
//	@Success		200		{object}	SyncResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errorWithHint
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	opts := h.defaults
	if req.Repo != "" {
		opts.Repo = req.Repo
	}
	if req.State != "" {
		opts.State = issue.StateFilter(req.State)
		if err := opts.State.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "state must be one of all, open, closed")
			return
		}
	}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.Comments != nil {
		opts.Comments = *req.Comments
	}
	if req.Backup != nil {
		opts.Backup = *req.Backup
	}
	opts.DryRun = req.DryRun
	if opts.Repo == "" {
		writeError(w, http.StatusBadRequest, "repo is required")
		return
	}

	res, err := h.svc.Sync(r.Context(), opts)
	if err != nil {
		var se *apperr.SourceError
		switch {
		case errors.Is(err, apperr.ErrInvalidRepo):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &se):
			writeJSON(w, http.StatusBadGateway, errorWithHint{Error: se.Error(), Hint: se.Hint})
		default:
			slog.Error("sync failed", slog.String("repo", opts.Repo), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent sync runs
//	@Tags			sync
//	@Produce		json
//	@Param			limit	query		int		false	"Max runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(limit)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "history disabled")
			return
		}
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one sync run with its entries
//	@Tags			sync
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	history.Run
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.svc.Run(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Error("get run failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
