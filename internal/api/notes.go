package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListNotes handles GET /api/notes.
//
//	@Summary		List all notes in creation order
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	notes := h.svc.Notes()
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// Inbox handles GET /api/inbox.
//
//	@Summary		List unassigned notes with their suggested thread
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	InboxResponse
//	@Security		BearerAuth
//	@Router			/inbox [get]
func (h *Handler) Inbox(w http.ResponseWriter, _ *http.Request) {
	items := h.svc.Inbox()
	writeJSON(w, http.StatusOK, InboxResponse{Items: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Note(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note in a thread or in the inbox
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse	"Thread not found"
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNote(r.Context(), req.input())
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Patch a note's metadata or content
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/{id}/move.
//
//	@Summary		Move a note into a thread
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		MoveNoteRequest	true	"Target thread"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.MoveNote(r.Context(), chi.URLParam(r, "id"), req.ThreadID)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// AttachClassification handles PUT /api/notes/{id}/classification.
//
//	@Summary		Attach a thread suggestion to a note without moving it
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Note id"
//	@Param			body	body		ClassificationRequest	true	"Suggestion"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/classification [put]
func (h *Handler) AttachClassification(w http.ResponseWriter, r *http.Request) {
	var req ClassificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.AttachClassification(r.Context(), chi.URLParam(r, "id"), req.classification())
	if err != nil {
		writeError(w, "attach classification", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ClassifyNote handles POST /api/notes/{id}/classify.
//
//	@Summary		Run the configured classifier on a note and attach its suggestion
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	ClassifyResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/classify [post]
func (h *Handler) ClassifyNote(w http.ResponseWriter, r *http.Request) {
	n, ok, err := h.svc.Classify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "classify note", err)
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Note: n, Suggested: ok})
}

// ApproveSuggestion handles POST /api/notes/{id}/approve.
//
//	@Summary		Move a note into its suggested thread
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse	"Note or suggested thread not found"
//	@Failure		409	{object}	errResponse	"No suggestion attached"
//	@Security		BearerAuth
//	@Router			/notes/{id}/approve [post]
func (h *Handler) ApproveSuggestion(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ApproveSuggestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "approve suggestion", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
