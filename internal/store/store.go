// Package store owns threads, notes and generated summaries and keeps them consistent.
//
// Every mutation is built against the current state, handed to the optional
// Persister, and only then applied in memory, all under one write lock. A failed
// mutation leaves the store untouched. Thread note counts are a cache that each
// membership change adjusts in the same step as the note itself.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/summary"
)

const (
	prefixThread  = "thread"
	prefixNote    = "note"
	prefixSummary = "gen"

	maxIDAttempts = 8
)

// Store is the authoritative in-process state. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	threads     map[string]*models.Thread
	threadOrder []string
	notes       map[string]*models.Note
	noteOrder   []string
	summaries   []models.GeneratedMarkdown
	issued      map[string]struct{}

	now       func() time.Time
	newID     func(prefix string) string
	persister Persister
	observers []Observer
	policy    DeletePolicy
	generator summary.Generator
	initial   *Snapshot
}

// New builds a store. Without WithSnapshot it starts empty.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		threads: make(map[string]*models.Thread),
		notes:   make(map[string]*models.Note),
		issued:  make(map[string]struct{}),
		now:     time.Now,
		newID:   defaultID,
		policy:  PolicyInbox,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy != PolicyInbox && s.policy != PolicyRemove {
		return nil, fmt.Errorf("store: unknown delete policy %q: %w", s.policy, apperr.ErrInvalidInput)
	}
	if s.generator == nil {
		s.generator = summary.NewTemplate("")
	}
	if s.initial != nil {
		s.load(*s.initial)
		s.initial = nil
	}
	return s, nil
}

func (s *Store) load(snap Snapshot) {
	for _, t := range snap.Threads {
		if _, dup := s.threads[t.ID]; dup || t.ID == "" {
			continue
		}
		t = t.Clone()
		t.NoteCount = 0
		s.threads[t.ID] = &t
		s.threadOrder = append(s.threadOrder, t.ID)
		s.issued[t.ID] = struct{}{}
	}
	for _, n := range snap.Notes {
		if _, dup := s.notes[n.ID]; dup || n.ID == "" {
			continue
		}
		n = n.Clone()
		if n.ThreadID != nil {
			if t, ok := s.threads[*n.ThreadID]; ok {
				t.NoteCount++
			} else {
				n.ThreadID = nil
			}
		}
		s.notes[n.ID] = &n
		s.noteOrder = append(s.noteOrder, n.ID)
		s.issued[n.ID] = struct{}{}
	}
	for _, g := range snap.Summaries {
		if _, ok := s.threads[g.ThreadID]; !ok {
			continue
		}
		s.summaries = append(s.summaries, g)
		s.issued[g.ID] = struct{}{}
	}
}

// mutate runs build under the write lock, persists and applies the resulting
// change, then notifies observers once the lock is released.
func (s *Store) mutate(ctx context.Context, build func() (Change, []Event, error)) error {
	s.mu.Lock()
	ch, events, err := build()
	if err == nil && !ch.Empty() {
		err = s.commitLocked(ctx, ch)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(events)
	return nil
}

func (s *Store) commitLocked(ctx context.Context, ch Change) error {
	if s.persister != nil {
		if err := s.persister.Apply(ctx, ch); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	s.applyLocked(ch)
	return nil
}

func (s *Store) applyLocked(ch Change) {
	for _, t := range ch.UpsertThreads {
		t = t.Clone()
		if _, ok := s.threads[t.ID]; !ok {
			s.threadOrder = append(s.threadOrder, t.ID)
		}
		s.threads[t.ID] = &t
		s.issued[t.ID] = struct{}{}
	}
	for _, n := range ch.UpsertNotes {
		n = n.Clone()
		if _, ok := s.notes[n.ID]; !ok {
			s.noteOrder = append(s.noteOrder, n.ID)
		}
		s.notes[n.ID] = &n
		s.issued[n.ID] = struct{}{}
	}
	for _, g := range ch.InsertSummaries {
		s.summaries = append(s.summaries, g)
		s.issued[g.ID] = struct{}{}
	}
	if len(ch.DeleteSummaries) > 0 {
		drop := idSet(ch.DeleteSummaries)
		kept := s.summaries[:0]
		for _, g := range s.summaries {
			if _, ok := drop[g.ID]; !ok {
				kept = append(kept, g)
			}
		}
		s.summaries = kept
	}
	if len(ch.DeleteNotes) > 0 {
		drop := idSet(ch.DeleteNotes)
		for id := range drop {
			delete(s.notes, id)
		}
		s.noteOrder = without(s.noteOrder, drop)
	}
	if len(ch.DeleteThreads) > 0 {
		drop := idSet(ch.DeleteThreads)
		for id := range drop {
			delete(s.threads, id)
		}
		s.threadOrder = without(s.threadOrder, drop)
	}
}

func (s *Store) notify(events []Event) {
	for _, e := range events {
		for _, o := range s.observers {
			o(e)
		}
	}
}

func (s *Store) freshIDLocked(prefix string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID(prefix)
		if id == "" {
			continue
		}
		if _, taken := s.issued[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate %s id: %w", prefix, apperr.ErrConflict)
}

// touchLocked returns a copy of thread id with its count moved by delta
// (floored at zero) and UpdatedAt refreshed.
func (s *Store) touchLocked(id string, delta int, now time.Time) (models.Thread, bool) {
	t, ok := s.threads[id]
	if !ok {
		return models.Thread{}, false
	}
	c := t.Clone()
	c.NoteCount += delta
	if c.NoteCount < 0 {
		c.NoteCount = 0
	}
	c.UpdatedAt = now
	return c, true
}

// CreateThread adds a thread with a fresh id and zero notes.
func (s *Store) CreateThread(ctx context.Context, in ThreadInput) (models.Thread, error) {
	var out models.Thread
	err := s.mutate(ctx, func() (Change, []Event, error) {
		if !models.ValidColor(in.Color) {
			return Change{}, nil, fmt.Errorf("color %q: %w", in.Color, apperr.ErrInvalidInput)
		}
		id, err := s.freshIDLocked(prefixThread)
		if err != nil {
			return Change{}, nil, err
		}
		now := s.now()
		out = models.Thread{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			Keywords:    models.NormalizeKeywords(in.Keywords),
			Color:       in.Color,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return Change{UpsertThreads: []models.Thread{out}},
			[]Event{{Kind: EventThreadCreated, ThreadID: id}}, nil
	})
	if err != nil {
		return models.Thread{}, fmt.Errorf("store: create thread: %w", err)
	}
	return out.Clone(), nil
}

// UpdateThread merges the non-nil fields of p into thread id.
func (s *Store) UpdateThread(ctx context.Context, id string, p ThreadPatch) (models.Thread, error) {
	var out models.Thread
	err := s.mutate(ctx, func() (Change, []Event, error) {
		t, ok := s.threads[id]
		if !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		out = t.Clone()
		if p.Title != nil {
			out.Title = *p.Title
		}
		if p.Description != nil {
			out.Description = *p.Description
		}
		if p.Keywords != nil {
			out.Keywords = models.NormalizeKeywords(*p.Keywords)
		}
		if p.Color != nil {
			if !models.ValidColor(*p.Color) {
				return Change{}, nil, fmt.Errorf("color %q: %w", *p.Color, apperr.ErrInvalidInput)
			}
			out.Color = *p.Color
		}
		out.UpdatedAt = s.now()
		return Change{UpsertThreads: []models.Thread{out}},
			[]Event{{Kind: EventThreadUpdated, ThreadID: id}}, nil
	})
	if err != nil {
		return models.Thread{}, fmt.Errorf("store: update thread %s: %w", id, err)
	}
	return out.Clone(), nil
}

// DeleteThread removes thread id together with its summaries. Its notes are
// returned to the inbox or removed according to the delete policy.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	err := s.mutate(ctx, func() (Change, []Event, error) {
		if _, ok := s.threads[id]; !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		now := s.now()
		ch := Change{DeleteThreads: []string{id}}
		var events []Event
		for _, nid := range s.noteOrder {
			n := s.notes[nid]
			if !n.InThread(id) {
				continue
			}
			if s.policy == PolicyRemove {
				ch.DeleteNotes = append(ch.DeleteNotes, nid)
				events = append(events, Event{Kind: EventNoteDeleted, NoteID: nid, ThreadID: id})
				continue
			}
			c := n.Clone()
			c.ThreadID = nil
			c.UpdatedAt = now
			ch.UpsertNotes = append(ch.UpsertNotes, c)
			events = append(events, Event{Kind: EventNoteMoved, NoteID: nid, FromThreadID: id})
		}
		for _, g := range s.summaries {
			if g.ThreadID == id {
				ch.DeleteSummaries = append(ch.DeleteSummaries, g.ID)
			}
		}
		events = append(events, Event{Kind: EventThreadDeleted, ThreadID: id})
		return ch, events, nil
	})
	if err != nil {
		return fmt.Errorf("store: delete thread %s: %w", id, err)
	}
	return nil
}

// CreateNote adds a note. A non-nil ThreadID must name an existing thread,
// whose count is bumped in the same step.
func (s *Store) CreateNote(ctx context.Context, in NoteInput) (models.Note, error) {
	var out models.Note
	err := s.mutate(ctx, func() (Change, []Event, error) {
		src := in.Source
		if src == "" {
			src = models.SourceManual
		}
		if src != models.SourceEmail && src != models.SourceManual {
			return Change{}, nil, fmt.Errorf("source %q: %w", src, apperr.ErrInvalidInput)
		}
		if src == models.SourceManual && in.EmailMetadata != nil {
			return Change{}, nil, fmt.Errorf("manual note with email metadata: %w", apperr.ErrInvalidInput)
		}
		now := s.now()
		var ch Change
		if in.ThreadID != nil {
			t, ok := s.touchLocked(*in.ThreadID, 1, now)
			if !ok {
				return Change{}, nil, fmt.Errorf("thread %s: %w", *in.ThreadID, apperr.ErrNotFound)
			}
			ch.UpsertThreads = append(ch.UpsertThreads, t)
		}
		id, err := s.freshIDLocked(prefixNote)
		if err != nil {
			return Change{}, nil, err
		}
		out = models.Note{
			ID:            id,
			ThreadID:      in.ThreadID,
			Source:        src,
			EmailMetadata: in.EmailMetadata,
			Content:       in.Content,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if in.Classification != nil {
			c, err := s.checkClassification(*in.Classification, now)
			if err != nil {
				return Change{}, nil, err
			}
			out.Classification = &c
		}
		out = out.Clone()
		ch.UpsertNotes = append(ch.UpsertNotes, out)
		ev := Event{Kind: EventNoteCreated, NoteID: id}
		if in.ThreadID != nil {
			ev.ThreadID = *in.ThreadID
		}
		return ch, []Event{ev}, nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("store: create note: %w", err)
	}
	return out.Clone(), nil
}

// UpdateNote merges the non-nil fields of p into note id.
func (s *Store) UpdateNote(ctx context.Context, id string, p NotePatch) (models.Note, error) {
	var out models.Note
	err := s.mutate(ctx, func() (Change, []Event, error) {
		n, ok := s.notes[id]
		if !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		now := s.now()
		out = n.Clone()
		if p.EmailMetadata != nil {
			if n.Source != models.SourceEmail {
				return Change{}, nil, fmt.Errorf("manual note with email metadata: %w", apperr.ErrInvalidInput)
			}
			md := *p.EmailMetadata
			out.EmailMetadata = &md
		}
		if p.Content != nil {
			out.Content = *p.Content
		}
		if p.Classification != nil {
			c, err := s.checkClassification(*p.Classification, now)
			if err != nil {
				return Change{}, nil, err
			}
			out.Classification = &c
		}
		out.UpdatedAt = now
		return Change{UpsertNotes: []models.Note{out}},
			[]Event{{Kind: EventNoteUpdated, NoteID: id, ThreadID: deref(out.ThreadID)}}, nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("store: update note %s: %w", id, err)
	}
	return out.Clone(), nil
}

// AttachClassification stores a suggestion on a note. The note's thread is not changed.
func (s *Store) AttachClassification(ctx context.Context, noteID string, c models.Classification) (models.Note, error) {
	return s.UpdateNote(ctx, noteID, NotePatch{Classification: &c})
}

func (s *Store) checkClassification(c models.Classification, now time.Time) (models.Classification, error) {
	if c.ThreadID == "" {
		return c, fmt.Errorf("classification thread id is empty: %w", apperr.ErrInvalidInput)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return c, fmt.Errorf("classification confidence %v outside [0,1]: %w", c.Confidence, apperr.ErrInvalidInput)
	}
	if c.ClassifiedAt.IsZero() {
		c.ClassifiedAt = now
	}
	return c, nil
}

// MoveNote assigns a note to targetThreadID, decrementing its previous thread
// and incrementing the target in one step. Moving to the current thread is a no-op.
func (s *Store) MoveNote(ctx context.Context, noteID, targetThreadID string) (models.Note, error) {
	var out models.Note
	err := s.mutate(ctx, func() (Change, []Event, error) {
		var (
			ch     Change
			events []Event
			err    error
		)
		out, ch, events, err = s.moveLocked(noteID, targetThreadID)
		return ch, events, err
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("store: move note %s: %w", noteID, err)
	}
	return out.Clone(), nil
}

// ApproveSuggestion commits a note's attached classification through the move path.
func (s *Store) ApproveSuggestion(ctx context.Context, noteID string) (models.Note, error) {
	var out models.Note
	err := s.mutate(ctx, func() (Change, []Event, error) {
		n, ok := s.notes[noteID]
		if !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		if n.Classification == nil {
			return Change{}, nil, fmt.Errorf("no classification attached: %w", apperr.ErrInvalidState)
		}
		var (
			ch     Change
			events []Event
			err    error
		)
		out, ch, events, err = s.moveLocked(noteID, n.Classification.ThreadID)
		return ch, events, err
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("store: approve suggestion for %s: %w", noteID, err)
	}
	return out.Clone(), nil
}

// moveLocked computes the change for a move without applying it.
func (s *Store) moveLocked(noteID, target string) (models.Note, Change, []Event, error) {
	n, ok := s.notes[noteID]
	if !ok {
		return models.Note{}, Change{}, nil, apperr.ErrNotFound
	}
	if _, ok := s.threads[target]; !ok {
		return models.Note{}, Change{}, nil, fmt.Errorf("thread %s: %w", target, apperr.ErrNotFound)
	}
	if n.InThread(target) {
		return n.Clone(), Change{}, nil, nil
	}
	now := s.now()
	var ch Change
	from := deref(n.ThreadID)
	if from != "" {
		if t, ok := s.touchLocked(from, -1, now); ok {
			ch.UpsertThreads = append(ch.UpsertThreads, t)
		}
	}
	t, _ := s.touchLocked(target, 1, now)
	ch.UpsertThreads = append(ch.UpsertThreads, t)

	out := n.Clone()
	out.ThreadID = models.StringPtr(target)
	out.UpdatedAt = now
	ch.UpsertNotes = []models.Note{out}

	return out, ch, []Event{{Kind: EventNoteMoved, NoteID: noteID, ThreadID: target, FromThreadID: from}}, nil
}

// DeleteNote removes a note and decrements its thread's count, floored at zero.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	err := s.mutate(ctx, func() (Change, []Event, error) {
		n, ok := s.notes[id]
		if !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		ch := Change{DeleteNotes: []string{id}}
		owner := deref(n.ThreadID)
		if owner != "" {
			if t, ok := s.touchLocked(owner, -1, s.now()); ok {
				ch.UpsertThreads = append(ch.UpsertThreads, t)
			}
		}
		return ch, []Event{{Kind: EventNoteDeleted, NoteID: id, ThreadID: owner}}, nil
	})
	if err != nil {
		return fmt.Errorf("store: delete note %s: %w", id, err)
	}
	return nil
}

// GenerateMarkdown renders a new summary record for a thread with at least one note.
// The generator runs outside the lock; the record is committed only if the
// thread still exists afterwards.
func (s *Store) GenerateMarkdown(ctx context.Context, threadID string) (models.GeneratedMarkdown, error) {
	s.mu.RLock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.RUnlock()
		return models.GeneratedMarkdown{}, fmt.Errorf("store: generate markdown for %s: %w", threadID, apperr.ErrNotFound)
	}
	in := summary.Input{Thread: t.Clone(), Notes: s.notesByThreadLocked(threadID)}
	s.mu.RUnlock()

	if len(in.Notes) == 0 {
		return models.GeneratedMarkdown{}, fmt.Errorf("store: generate markdown for %s: thread has no notes: %w", threadID, apperr.ErrInvalidState)
	}
	sort.SliceStable(in.Notes, func(i, j int) bool {
		return in.Notes[i].CreatedAt.Before(in.Notes[j].CreatedAt)
	})
	in.Now = s.now()

	doc, err := s.generator.Generate(ctx, in)
	if err != nil {
		return models.GeneratedMarkdown{}, fmt.Errorf("store: generate markdown for %s: %w", threadID, err)
	}

	var out models.GeneratedMarkdown
	err = s.mutate(ctx, func() (Change, []Event, error) {
		if _, ok := s.threads[threadID]; !ok {
			return Change{}, nil, apperr.ErrNotFound
		}
		id, err := s.freshIDLocked(prefixSummary)
		if err != nil {
			return Change{}, nil, err
		}
		out = models.GeneratedMarkdown{
			ID:          id,
			ThreadID:    threadID,
			ThreadTitle: in.Thread.Title,
			Content:     doc.Content,
			GeneratedAt: in.Now,
			ModelUsed:   doc.Model,
			NoteCount:   len(in.Notes),
		}
		return Change{InsertSummaries: []models.GeneratedMarkdown{out}},
			[]Event{{Kind: EventSummaryCreated, ThreadID: threadID, SummaryID: id}}, nil
	})
	if err != nil {
		return models.GeneratedMarkdown{}, fmt.Errorf("store: generate markdown for %s: %w", threadID, err)
	}
	return out, nil
}

// Threads returns all threads in creation order.
func (s *Store) Threads() []models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Thread, 0, len(s.threadOrder))
	for _, id := range s.threadOrder {
		out = append(out, s.threads[id].Clone())
	}
	return out
}

// Thread returns one thread.
func (s *Store) Thread(id string) (models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return models.Thread{}, fmt.Errorf("store: thread %s: %w", id, apperr.ErrNotFound)
	}
	return t.Clone(), nil
}

// Notes returns all notes in insertion order.
func (s *Store) Notes() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0, len(s.noteOrder))
	for _, id := range s.noteOrder {
		out = append(out, s.notes[id].Clone())
	}
	return out
}

// Note returns one note.
func (s *Store) Note(id string) (models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return models.Note{}, fmt.Errorf("store: note %s: %w", id, apperr.ErrNotFound)
	}
	return n.Clone(), nil
}

// InboxNotes returns the unassigned notes in insertion order.
func (s *Store) InboxNotes() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Note{}
	for _, id := range s.noteOrder {
		if n := s.notes[id]; n.InInbox() {
			out = append(out, n.Clone())
		}
	}
	return out
}

// NotesByThread returns the notes assigned to threadID in insertion order.
// An unknown thread yields an empty slice.
func (s *Store) NotesByThread(threadID string) []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notesByThreadLocked(threadID)
}

func (s *Store) notesByThreadLocked(threadID string) []models.Note {
	out := []models.Note{}
	for _, id := range s.noteOrder {
		if n := s.notes[id]; n.InThread(threadID) {
			out = append(out, n.Clone())
		}
	}
	return out
}

// SuggestedThread resolves a note's classification to a live thread.
// It reports false when there is no suggestion or the thread is gone.
func (s *Store) SuggestedThread(n models.Note) (models.Thread, bool) {
	if n.Classification == nil {
		return models.Thread{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[n.Classification.ThreadID]
	if !ok {
		return models.Thread{}, false
	}
	return t.Clone(), true
}

// Summaries returns the summaries generated for threadID, oldest first.
func (s *Store) Summaries(threadID string) []models.GeneratedMarkdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.GeneratedMarkdown{}
	for _, g := range s.summaries {
		if g.ThreadID == threadID {
			out = append(out, g)
		}
	}
	return out
}

// AllSummaries returns every summary, oldest first.
func (s *Store) AllSummaries() []models.GeneratedMarkdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.GeneratedMarkdown{}, s.summaries...)
}

// Summary returns one summary.
func (s *Store) Summary(id string) (models.GeneratedMarkdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.summaries {
		if g.ID == id {
			return g, nil
		}
	}
	return models.GeneratedMarkdown{}, fmt.Errorf("store: summary %s: %w", id, apperr.ErrNotFound)
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Threads:   make([]models.Thread, 0, len(s.threadOrder)),
		Notes:     make([]models.Note, 0, len(s.noteOrder)),
		Summaries: append([]models.GeneratedMarkdown{}, s.summaries...),
	}
	for _, id := range s.threadOrder {
		snap.Threads = append(snap.Threads, s.threads[id].Clone())
	}
	for _, id := range s.noteOrder {
		snap.Notes = append(snap.Notes, s.notes[id].Clone())
	}
	return snap
}

// Check recomputes thread counts and references and reports any drift.
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	counts := make(map[string]int, len(s.threads))
	for _, id := range s.noteOrder {
		n := s.notes[id]
		if n.ThreadID == nil {
			continue
		}
		if _, ok := s.threads[*n.ThreadID]; !ok {
			errs = append(errs, fmt.Errorf("note %s references missing thread %s", id, *n.ThreadID))
			continue
		}
		counts[*n.ThreadID]++
	}
	for _, id := range s.threadOrder {
		if got, want := s.threads[id].NoteCount, counts[id]; got != want {
			errs = append(errs, fmt.Errorf("thread %s note count = %d, want %d", id, got, want))
		}
	}
	for _, g := range s.summaries {
		if _, ok := s.threads[g.ThreadID]; !ok {
			errs = append(errs, fmt.Errorf("summary %s references missing thread %s", g.ID, g.ThreadID))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("store: check: %w", errors.Join(append([]error{apperr.ErrInvalidState}, errs...)...))
}

func idSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func without(order []string, drop map[string]struct{}) []string {
	kept := order[:0]
	for _, id := range order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
