package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/threadbox/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", h.ListThreads)
		r.Post("/", h.CreateThread)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetThread)
			r.Patch("/", h.UpdateThread)
			r.Delete("/", h.DeleteThread)
			r.Get("/notes", h.ThreadNotes)
			r.Get("/summaries", h.ListSummaries)
			r.Post("/summaries", h.GenerateSummary)
		})
	})

	r.Get("/summaries/{id}", h.GetSummary)
	r.Post("/summaries/{id}/export", h.ExportSummary)

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Patch("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Post("/move", h.MoveNote)
			r.Put("/classification", h.AttachClassification)
			r.Post("/classify", h.ClassifyNote)
			r.Post("/approve", h.ApproveSuggestion)
		})
	})

	r.Get("/inbox", h.Inbox)
	r.Post("/ingest", h.Ingest)
	r.Post("/ingest/file", h.IngestFile)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
