package persist

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "threadbox-persist-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(DriverSQLite, f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newPersistentStore(t *testing.T, db *DB, opts ...store.Option) *store.Store {
	t.Helper()
	snap, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	n := 0
	base := []store.Option{
		store.WithPersister(db),
		store.WithSnapshot(snap),
		store.WithIDGenerator(func(prefix string) string {
			n++
			return fmt.Sprintf("%s-%d-%d", prefix, len(snap.Threads)+len(snap.Notes), n)
		}),
	}
	s, err := store.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"threads", "notes", "generated_summaries"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	got := pg.rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`)
	want := `UPDATE t SET a = $1, b = $2 WHERE id = $3`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	lite := &DB{driver: DriverSQLite}
	if got := lite.rebind(`a = ?`); got != `a = ?` {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	s := newPersistentStore(t, db)

	a, err := s.CreateThread(ctx, store.ThreadInput{Title: "A", Keywords: []string{"Go", "sql"}, Color: "#10B981"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateThread(ctx, store.ThreadInput{Title: "B"})
	if err != nil {
		t.Fatal(err)
	}
	received := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	n1, err := s.CreateNote(ctx, store.NoteInput{
		Source: models.SourceEmail,
		EmailMetadata: &models.EmailMetadata{
			From: "bob@example.com", Subject: "Hello", ReceivedAt: received, MessageID: "<1@x>",
		},
		Content: models.NoteContent{PlainText: "hi", HTML: "<p>hi</p>", ExtractedText: "hi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AttachClassification(ctx, n1.ID, models.Classification{ThreadID: a.ID, Confidence: 0.75, Reasoning: "go", ModelUsed: "keyword-v1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApproveSuggestion(ctx, n1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNote(ctx, store.NoteInput{ThreadID: &b.ID, Content: models.NoteContent{ExtractedText: "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNote(ctx, store.NoteInput{Content: models.NoteContent{ExtractedText: "inbox"}}); err != nil {
		t.Fatal(err)
	}
	gen, err := s.GenerateMarkdown(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Threads) != 2 || len(snap.Notes) != 3 || len(snap.Summaries) != 1 {
		t.Fatalf("loaded %d threads, %d notes, %d summaries", len(snap.Threads), len(snap.Notes), len(snap.Summaries))
	}
	if snap.Threads[0].ID != a.ID || snap.Threads[1].ID != b.ID {
		t.Errorf("thread order = %s, %s", snap.Threads[0].ID, snap.Threads[1].ID)
	}
	if got := snap.Threads[0].Keywords; len(got) != 2 || got[0] != "go" {
		t.Errorf("keywords = %v", got)
	}
	if snap.Threads[0].NoteCount != 1 {
		t.Errorf("note_count = %d, want 1", snap.Threads[0].NoteCount)
	}

	note := snap.Notes[0]
	if note.ThreadID == nil || *note.ThreadID != a.ID {
		t.Errorf("thread_id = %v, want %s", note.ThreadID, a.ID)
	}
	if note.EmailMetadata == nil || !note.EmailMetadata.ReceivedAt.Equal(received) {
		t.Errorf("email metadata = %+v", note.EmailMetadata)
	}
	if note.Classification == nil || note.Classification.Confidence != 0.75 {
		t.Errorf("classification = %+v", note.Classification)
	}
	if note.Content.HTML != "<p>hi</p>" {
		t.Errorf("html = %q", note.Content.HTML)
	}
	if snap.Notes[2].ThreadID != nil {
		t.Errorf("inbox note has thread %v", *snap.Notes[2].ThreadID)
	}
	if snap.Summaries[0].ID != gen.ID || snap.Summaries[0].Content != gen.Content {
		t.Errorf("summary mismatch: %+v", snap.Summaries[0])
	}

	reloaded := newPersistentStore(t, db)
	if err := reloaded.Check(); err != nil {
		t.Fatalf("Check after reload: %v", err)
	}
	if got := len(reloaded.InboxNotes()); got != 1 {
		t.Errorf("inbox after reload = %d, want 1", got)
	}
}

func TestDeleteThreadCascade(t *testing.T) {
	ctx := context.Background()
	for _, policy := range []store.DeletePolicy{store.PolicyInbox, store.PolicyRemove} {
		t.Run(string(policy), func(t *testing.T) {
			db := testDB(t)
			s := newPersistentStore(t, db, store.WithDeletePolicy(policy))
			a, _ := s.CreateThread(ctx, store.ThreadInput{Title: "A"})
			if _, err := s.CreateNote(ctx, store.NoteInput{ThreadID: &a.ID}); err != nil {
				t.Fatal(err)
			}
			if _, err := s.GenerateMarkdown(ctx, a.ID); err != nil {
				t.Fatal(err)
			}
			if err := s.DeleteThread(ctx, a.ID); err != nil {
				t.Fatalf("DeleteThread: %v", err)
			}

			snap, err := db.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(snap.Threads) != 0 || len(snap.Summaries) != 0 {
				t.Errorf("threads = %d, summaries = %d, want 0", len(snap.Threads), len(snap.Summaries))
			}
			wantNotes := 1
			if policy == store.PolicyRemove {
				wantNotes = 0
			}
			if len(snap.Notes) != wantNotes {
				t.Fatalf("notes = %d, want %d", len(snap.Notes), wantNotes)
			}
			if wantNotes == 1 && snap.Notes[0].ThreadID != nil {
				t.Errorf("demoted note still has thread %s", *snap.Notes[0].ThreadID)
			}
		})
	}
}

func TestApplyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	now := time.Now()
	ghost := "thread-ghost"
	err := db.Apply(ctx, store.Change{
		UpsertThreads: []models.Thread{{ID: "thread-ok", Title: "ok", CreatedAt: now, UpdatedAt: now}},
		UpsertNotes:   []models.Note{{ID: "note-bad", ThreadID: &ghost, Source: models.SourceManual, CreatedAt: now, UpdatedAt: now}},
	})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
	snap, err := db.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Threads) != 0 {
		t.Errorf("threads = %d, want 0 after rollback", len(snap.Threads))
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	now := time.Now()
	snap := store.Snapshot{
		Threads: []models.Thread{{ID: "thread-1", Title: "T", Keywords: []string{}, CreatedAt: now, UpdatedAt: now}},
		Notes:   []models.Note{{ID: "note-1", ThreadID: models.StringPtr("thread-1"), Source: models.SourceManual, CreatedAt: now, UpdatedAt: now}},
	}
	if err := db.Import(ctx, snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Threads) != 1 || len(got.Notes) != 1 {
		t.Fatalf("loaded %d threads, %d notes", len(got.Threads), len(got.Notes))
	}
}
