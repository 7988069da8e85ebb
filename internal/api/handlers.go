package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/threadbox/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListThreads handles GET /api/threads.
//
//	@Summary		List threads in creation order
//	@Tags			threads
//	@Produce		json
//	@Success		200	{object}	ThreadListResponse
//	@Security		BearerAuth
//	@Router			/threads [get]
func (h *Handler) ListThreads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ThreadListResponse{Threads: h.svc.Threads()})
}

// GetThread handles GET /api/threads/{id}.
//
//	@Summary		Get a thread with its notes and summaries
//	@Tags			threads
//	@Produce		json
//	@Param			id	path		string	true	"Thread id"
//	@Success		200	{object}	noteservice.ThreadDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads/{id} [get]
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.ThreadDetail(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get thread", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateThread handles POST /api/threads.
//
//	@Summary		Create a thread
//	@Tags			threads
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateThreadRequest	true	"Thread to create"
//	@Success		201		{object}	models.Thread
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads [post]
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.CreateThread(r.Context(), req.input())
	if err != nil {
		writeError(w, "create thread", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateThread handles PATCH /api/threads/{id}.
//
//	@Summary		Patch a thread
//	@Tags			threads
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Thread id"
//	@Param			body	body		UpdateThreadRequest	true	"Fields to change"
//	@Success		200		{object}	models.Thread
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads/{id} [patch]
func (h *Handler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	var req UpdateThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.UpdateThread(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, "update thread", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteThread handles DELETE /api/threads/{id}.
//
//	@Summary		Delete a thread, its summaries, and release or remove its notes
//	@Tags			threads
//	@Param			id	path	string	true	"Thread id"
//	@Success		204	"Thread deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads/{id} [delete]
func (h *Handler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteThread(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete thread", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ThreadNotes handles GET /api/threads/{id}/notes.
//
//	@Summary		List the notes of a thread
//	@Tags			threads
//	@Produce		json
//	@Param			id	path		string	true	"Thread id"
//	@Success		200	{object}	NoteListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads/{id}/notes [get]
func (h *Handler) ThreadNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ThreadNotes(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "thread notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// ListSummaries handles GET /api/threads/{id}/summaries.
//
//	@Summary		List generated summaries of a thread, oldest first
//	@Tags			summaries
//	@Produce		json
//	@Param			id	path		string	true	"Thread id"
//	@Success		200	{object}	SummaryListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads/{id}/summaries [get]
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := h.svc.Summaries(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryListResponse{Summaries: sums})
}

// GenerateSummary handles POST /api/threads/{id}/summaries.
//
//	@Summary		Generate a Markdown summary of a thread
//	@Tags			summaries
//	@Produce		json
//	@Param			id	path		string	true	"Thread id"
//	@Success		201	{object}	models.GeneratedMarkdown
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse	"Thread has no notes"
//	@Security		BearerAuth
//	@Router			/threads/{id}/summaries [post]
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GenerateSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "generate summary", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// GetSummary handles GET /api/summaries/{id}.
//
//	@Summary		Get a generated summary
//	@Tags			summaries
//	@Produce		json
//	@Param			id	path		string	true	"Summary id"
//	@Success		200	{object}	models.GeneratedMarkdown
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summaries/{id} [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Summary(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get summary", err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(g.Content))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ExportSummary handles POST /api/summaries/{id}/export.
//
//	@Summary		Write a summary to the export directory
//	@Tags			summaries
//	@Produce		json
//	@Param			id	path		string	true	"Summary id"
//	@Success		200	{object}	ExportResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse	"Export disabled"
//	@Security		BearerAuth
//	@Router			/summaries/{id}/export [post]
func (h *Handler) ExportSummary(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ExportSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "export summary", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: p})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
