// Package search keeps an in-memory Bleve index of notes for full-text lookup.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/store"
)

// DefaultLimit caps results when the caller passes a non-positive limit.
const DefaultLimit = 20

// Source is the read side of the store the index pulls notes from.
type Source interface {
	Note(id string) (models.Note, error)
}

// Index wraps a memory-only Bleve index.
type Index struct {
	index  bleve.Index
	logger *slog.Logger
}

type noteDoc struct {
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Text     string `json:"text"`
	ThreadID string `json:"thread_id"`
}

// Hit is one search result.
type Hit struct {
	NoteID    string              `json:"note_id"`
	ThreadID  string              `json:"thread_id,omitempty"`
	Subject   string              `json:"subject,omitempty"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// NewMemory creates an empty index held in memory.
func NewMemory(logger *slog.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("search: create index: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{index: idx, logger: logger}, nil
}

func buildMapping() mapping.IndexMapping {
	subject := bleve.NewTextFieldMapping()
	subject.Analyzer = "en"

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "en"

	thread := bleve.NewKeywordFieldMapping()
	thread.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("subject", subject)
	doc.AddFieldMappingsAt("from", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("thread_id", thread)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// Count returns the number of indexed notes.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func toDoc(n models.Note) noteDoc {
	d := noteDoc{
		Subject: n.Subject(),
		Text:    n.Content.ExtractedText,
	}
	if d.Text == "" {
		d.Text = n.Content.PlainText
	}
	if n.EmailMetadata != nil {
		d.From = n.EmailMetadata.From
	}
	if n.ThreadID != nil {
		d.ThreadID = *n.ThreadID
	}
	return d
}

// Put adds or replaces a note.
func (i *Index) Put(n models.Note) error {
	if err := i.index.Index(n.ID, toDoc(n)); err != nil {
		return fmt.Errorf("search: index %s: %w", n.ID, err)
	}
	return nil
}

// Delete removes a note.
func (i *Index) Delete(id string) error {
	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("search: delete %s: %w", id, err)
	}
	return nil
}

// Rebuild indexes notes in one batch.
func (i *Index) Rebuild(notes []models.Note) error {
	batch := i.index.NewBatch()
	for _, n := range notes {
		if err := batch.Index(n.ID, toDoc(n)); err != nil {
			return fmt.Errorf("search: batch index %s: %w", n.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("search: commit batch: %w", err)
	}
	return nil
}

// Apply keeps the index in step with one store event.
func (i *Index) Apply(e store.Event, src Source) {
	if e.NoteID == "" {
		return
	}
	var err error
	switch e.Kind {
	case store.EventNoteDeleted:
		err = i.Delete(e.NoteID)
	case store.EventNoteCreated, store.EventNoteUpdated, store.EventNoteMoved:
		n, lerr := src.Note(e.NoteID)
		switch {
		case errors.Is(lerr, apperr.ErrNotFound):
			err = i.Delete(e.NoteID)
		case lerr != nil:
			err = lerr
		default:
			err = i.Put(n)
		}
	default:
		return
	}
	if err != nil {
		i.logger.Warn("search: apply event failed",
			slog.String("kind", string(e.Kind)),
			slog.String("note", e.NoteID),
			slog.String("error", err.Error()))
	}
}

// Search runs a match query over subject, sender and text. Matches in the
// subject weigh more.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("search: empty query: %w", apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	subject := bleve.NewMatchQuery(q)
	subject.SetField("subject")
	subject.SetBoost(2)
	all := bleve.NewMatchQuery(q)
	query := bleve.NewDisjunctionQuery(subject, all)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"subject", "thread_id"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{NoteID: h.ID, Score: h.Score, Fragments: h.Fragments}
		if s, ok := h.Fields["subject"].(string); ok {
			hit.Subject = s
		}
		if t, ok := h.Fields["thread_id"].(string); ok {
			hit.ThreadID = t
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
