package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/threadbox/internal/summary"
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides id generation. newID receives the collection
// prefix ("thread", "note" or "gen").
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithPersister makes every mutation durable before it is committed in memory.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithObserver registers a mutation observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observers = append(s.observers, o)
	}
}

// WithDeletePolicy chooses what DeleteThread does with the thread's notes.
func WithDeletePolicy(p DeletePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithGenerator sets the summary generator used by GenerateMarkdown.
func WithGenerator(g summary.Generator) Option {
	return func(s *Store) {
		s.generator = g
	}
}

// WithSnapshot loads initial state. Note counts are recomputed from the notes,
// and notes pointing at unknown threads are returned to the inbox.
func WithSnapshot(snap Snapshot) Option {
	return func(s *Store) {
		s.initial = &snap
	}
}

func defaultID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
