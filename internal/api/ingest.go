package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/threadbox/internal/ingest"
	"github.com/starford/threadbox/internal/parser"
)

const maxUploadBytes = 25 << 20

// Ingest handles POST /api/ingest.
//
//	@Summary		Ingest a message as an inbox note and classify it
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IngestRequest	true	"Message"
//	@Success		201		{object}	ingest.Result
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Duplicate message id"
//	@Security		BearerAuth
//	@Router			/ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Ingest(r.Context(), req.envelope())
	if err != nil {
		writeError(w, "ingest", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// messageKind validates an uploaded filename: a plain name ending in .md or .eml.
func messageKind(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	ext := strings.ToLower(filepath.Ext(cleaned))
	if ext != ".md" && ext != ".eml" {
		return "", fmt.Errorf("unsupported file type %q, want .md or .eml", ext)
	}
	return ext, nil
}

// IngestFile handles POST /api/ingest/file (multipart/form-data, field "file").
//
//	@Summary		Ingest an uploaded .md or .eml message file
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Message file"
//	@Success		201		{object}	ingest.Result
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Duplicate message id"
//	@Security		BearerAuth
//	@Router			/ingest/file [post]
func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	ext, err := messageKind(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	var msg *parser.Message
	if ext == ".eml" {
		msg, err = parser.ParseEmail(data)
	} else {
		msg, err = parser.Parse(data)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	env := ingest.FromMessage(msg)
	if env.From == "" {
		env.From = "upload"
	}
	res, err := h.svc.Ingest(r.Context(), env)
	if err != nil {
		writeError(w, "ingest file", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
