// Package noteservice coordinates the store with the classifier, ingestor,
// search index and summary exports for the HTTP and MCP surfaces.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/classifier"
	"github.com/starford/threadbox/internal/ingest"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/search"
	"github.com/starford/threadbox/internal/storage"
	"github.com/starford/threadbox/internal/store"
)

// InboxItem is an inbox note with its suggested thread, if that thread still exists.
type InboxItem struct {
	Note      models.Note    `json:"note"`
	Suggested *models.Thread `json:"suggested_thread,omitempty"`
}

// ThreadDetail is a thread with its notes and generated summaries.
type ThreadDetail struct {
	Thread    models.Thread              `json:"thread"`
	Notes     []models.Note              `json:"notes"`
	Summaries []models.GeneratedMarkdown `json:"summaries"`
}

// Service is the application facade.
type Service struct {
	store      *store.Store
	classifier classifier.Classifier
	ingestor   *ingest.Ingestor
	index      *search.Index
	exports    storage.Provider
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier sets the classifier used by Classify.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithIngestor enables Ingest.
func WithIngestor(i *ingest.Ingestor) Option {
	return func(s *Service) { s.ingestor = i }
}

// WithIndex enables Search.
func WithIndex(idx *search.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithExports enables ExportSummary, writing under p.
func WithExports(p storage.Provider) Option {
	return func(s *Service) { s.exports = p }
}

// WithClock overrides the time source handed to the classifier.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		classifier: classifier.None{},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ingestor == nil {
		s.ingestor = ingest.New(st, ingest.WithClassifier(s.classifier), ingest.WithClock(s.now))
	}
	return s
}

// Store exposes the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// Threads returns all threads in creation order.
func (s *Service) Threads() []models.Thread { return s.store.Threads() }

// Thread returns one thread.
func (s *Service) Thread(id string) (models.Thread, error) { return s.store.Thread(id) }

// ThreadDetail returns a thread with its notes and summaries.
func (s *Service) ThreadDetail(id string) (ThreadDetail, error) {
	t, err := s.store.Thread(id)
	if err != nil {
		return ThreadDetail{}, err
	}
	return ThreadDetail{
		Thread:    t,
		Notes:     nonNil(s.store.NotesByThread(id)),
		Summaries: nonNil(s.store.Summaries(id)),
	}, nil
}

// CreateThread adds a thread.
func (s *Service) CreateThread(ctx context.Context, in store.ThreadInput) (models.Thread, error) {
	return s.store.CreateThread(ctx, in)
}

// UpdateThread patches a thread.
func (s *Service) UpdateThread(ctx context.Context, id string, p store.ThreadPatch) (models.Thread, error) {
	return s.store.UpdateThread(ctx, id, p)
}

// DeleteThread removes a thread. Exported summary files of the thread are
// removed too; a failed file removal is logged and does not fail the call.
func (s *Service) DeleteThread(ctx context.Context, id string) error {
	summaries := s.store.Summaries(id)
	if err := s.store.DeleteThread(ctx, id); err != nil {
		return err
	}
	if s.exports == nil {
		return nil
	}
	for _, g := range summaries {
		err := s.exports.Delete(exportPath(g))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("noteservice: remove exported summary",
				slog.String("summary", g.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// ThreadNotes lists the notes of an existing thread.
func (s *Service) ThreadNotes(id string) ([]models.Note, error) {
	if _, err := s.store.Thread(id); err != nil {
		return nil, err
	}
	return nonNil(s.store.NotesByThread(id)), nil
}

// Notes returns every note.
func (s *Service) Notes() []models.Note { return nonNil(s.store.Notes()) }

// Note returns one note.
func (s *Service) Note(id string) (models.Note, error) { return s.store.Note(id) }

// Inbox lists unassigned notes with their resolvable suggestions.
func (s *Service) Inbox() []InboxItem {
	notes := s.store.InboxNotes()
	out := make([]InboxItem, 0, len(notes))
	for _, n := range notes {
		item := InboxItem{Note: n}
		if t, ok := s.store.SuggestedThread(n); ok {
			item.Suggested = &t
		}
		out = append(out, item)
	}
	return out
}

// CreateNote adds a note.
func (s *Service) CreateNote(ctx context.Context, in store.NoteInput) (models.Note, error) {
	return s.store.CreateNote(ctx, in)
}

// UpdateNote patches a note.
func (s *Service) UpdateNote(ctx context.Context, id string, p store.NotePatch) (models.Note, error) {
	return s.store.UpdateNote(ctx, id, p)
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.store.DeleteNote(ctx, id)
}

// MoveNote assigns a note to a thread.
func (s *Service) MoveNote(ctx context.Context, noteID, threadID string) (models.Note, error) {
	return s.store.MoveNote(ctx, noteID, threadID)
}

// AttachClassification stores a suggestion on a note without moving it.
func (s *Service) AttachClassification(ctx context.Context, noteID string, c models.Classification) (models.Note, error) {
	return s.store.AttachClassification(ctx, noteID, c)
}

// ApproveSuggestion moves a note into its suggested thread.
func (s *Service) ApproveSuggestion(ctx context.Context, noteID string) (models.Note, error) {
	return s.store.ApproveSuggestion(ctx, noteID)
}

// Classify runs the classifier on an existing note and attaches the result.
// The boolean is false when the classifier had no suggestion.
func (s *Service) Classify(ctx context.Context, noteID string) (models.Note, bool, error) {
	n, err := s.store.Note(noteID)
	if err != nil {
		return models.Note{}, false, err
	}
	sug, err := s.classifier.Classify(ctx, classifier.InputFor(n, s.store.Threads(), s.now()))
	if err != nil {
		return models.Note{}, false, fmt.Errorf("noteservice: classify %s: %w", noteID, err)
	}
	if sug == nil {
		return n, false, nil
	}
	n, err = s.store.AttachClassification(ctx, noteID, *sug)
	if err != nil {
		return models.Note{}, false, err
	}
	return n, true, nil
}

// Ingest creates an inbox note from a message.
func (s *Service) Ingest(ctx context.Context, env ingest.Envelope) (ingest.Result, error) {
	return s.ingestor.Ingest(ctx, env)
}

// GenerateSummary renders and records a summary for a thread.
func (s *Service) GenerateSummary(ctx context.Context, threadID string) (models.GeneratedMarkdown, error) {
	return s.store.GenerateMarkdown(ctx, threadID)
}

// Summaries lists the summaries of an existing thread.
func (s *Service) Summaries(threadID string) ([]models.GeneratedMarkdown, error) {
	if _, err := s.store.Thread(threadID); err != nil {
		return nil, err
	}
	return nonNil(s.store.Summaries(threadID)), nil
}

// Summary returns one summary.
func (s *Service) Summary(id string) (models.GeneratedMarkdown, error) {
	return s.store.Summary(id)
}

// Search runs a full-text query over notes.
func (s *Service) Search(_ context.Context, q string, limit int) ([]search.Hit, error) {
	if s.index == nil {
		return nil, fmt.Errorf("noteservice: search is disabled: %w", apperr.ErrInvalidState)
	}
	return s.index.Search(q, limit)
}

// ExportSummary writes a summary's Markdown to <thread-id>/<summary-id>.md
// under the export root and returns that relative path.
func (s *Service) ExportSummary(_ context.Context, summaryID string) (string, error) {
	if s.exports == nil {
		return "", fmt.Errorf("noteservice: export is disabled: %w", apperr.ErrInvalidState)
	}
	g, err := s.store.Summary(summaryID)
	if err != nil {
		return "", err
	}
	rel := exportPath(g)
	if err := s.exports.Write(rel, []byte(g.Content)); err != nil {
		return "", fmt.Errorf("noteservice: export %s: %w", summaryID, err)
	}
	return rel, nil
}

func exportPath(g models.GeneratedMarkdown) string {
	return path.Join(g.ThreadID, g.ID+".md")
}

// Ready reports whether the store's derived state is consistent.
func (s *Service) Ready() error {
	return s.store.Check()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
