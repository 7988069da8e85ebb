package store

import (
	"context"

	"github.com/starford/threadbox/internal/models"
)

// DeletePolicy decides what happens to a thread's notes when the thread is deleted.
type DeletePolicy string

// Delete policies.
const (
	PolicyInbox  DeletePolicy = "inbox"
	PolicyRemove DeletePolicy = "remove"
)

// ThreadInput carries the caller-supplied fields of a new thread.
type ThreadInput struct {
	Title       string
	Description string
	Keywords    []string
	Color       string
}

// ThreadPatch lists the thread fields to change. Nil fields are left untouched.
type ThreadPatch struct {
	Title       *string
	Description *string
	Keywords    *[]string
	Color       *string
}

// NoteInput carries the caller-supplied fields of a new note.
// A nil ThreadID creates the note in the inbox.
type NoteInput struct {
	ThreadID       *string
	Source         models.NoteSource
	EmailMetadata  *models.EmailMetadata
	Content        models.NoteContent
	Classification *models.Classification
}

// NotePatch lists the note fields to change. Thread membership is not patchable;
// use MoveNote.
type NotePatch struct {
	EmailMetadata  *models.EmailMetadata
	Content        *models.NoteContent
	Classification *models.Classification
}

// Snapshot is the full store state, used for seeding and persistence.
type Snapshot struct {
	Threads   []models.Thread
	Notes     []models.Note
	Summaries []models.GeneratedMarkdown
}

// Change is one atomic store mutation expressed as row-level writes.
type Change struct {
	UpsertThreads   []models.Thread
	UpsertNotes     []models.Note
	InsertSummaries []models.GeneratedMarkdown
	DeleteSummaries []string
	DeleteNotes     []string
	DeleteThreads   []string
}

// Empty reports whether the change writes nothing.
func (c Change) Empty() bool {
	return len(c.UpsertThreads) == 0 && len(c.UpsertNotes) == 0 &&
		len(c.InsertSummaries) == 0 && len(c.DeleteSummaries) == 0 &&
		len(c.DeleteNotes) == 0 && len(c.DeleteThreads) == 0
}

// Persister durably records a change. Apply runs under the store's write lock
// before the change becomes visible in memory; an error aborts the mutation.
type Persister interface {
	Apply(ctx context.Context, ch Change) error
}

// EventKind names a store mutation.
type EventKind string

// Event kinds.
const (
	EventThreadCreated  EventKind = "thread.created"
	EventThreadUpdated  EventKind = "thread.updated"
	EventThreadDeleted  EventKind = "thread.deleted"
	EventNoteCreated    EventKind = "note.created"
	EventNoteUpdated    EventKind = "note.updated"
	EventNoteMoved      EventKind = "note.moved"
	EventNoteDeleted    EventKind = "note.deleted"
	EventSummaryCreated EventKind = "summary.created"
)

// Event describes a committed mutation. Observers receive events after the
// store lock is released and should look up current state through the store.
type Event struct {
	Kind         EventKind `json:"kind"`
	ThreadID     string    `json:"thread_id,omitempty"`
	FromThreadID string    `json:"from_thread_id,omitempty"`
	NoteID       string    `json:"note_id,omitempty"`
	SummaryID    string    `json:"summary_id,omitempty"`
}

// Observer is notified of every committed mutation.
type Observer func(Event)
