package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/classifier"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/storage"
	"github.com/starford/threadbox/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) (*store.Store, models.Thread) {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	th, err := st.CreateThread(context.Background(), store.ThreadInput{
		Title:    "Product Ideas",
		Keywords: []string{"feature", "roadmap", "export"},
	})
	require.NoError(t, err)
	return st, th
}

func TestIngest_CreatesInboxNoteWithSuggestion(t *testing.T) {
	st, th := newStore(t)
	ing := New(st, WithClassifier(classifier.NewKeyword(0.3)), WithLogger(quiet))

	res, err := ing.Ingest(context.Background(), Envelope{
		From:      "john@company.com",
		Subject:   "Export feature",
		MessageID: "msg-1",
		Body:      "Customers want **PDF** export.",
	})
	require.NoError(t, err)
	assert.True(t, res.Suggested)
	assert.False(t, res.AutoApproved)

	n := res.Note
	assert.True(t, n.InInbox())
	assert.Equal(t, models.SourceEmail, n.Source)
	require.NotNil(t, n.EmailMetadata)
	assert.Equal(t, "msg-1", n.EmailMetadata.MessageID)
	assert.False(t, n.EmailMetadata.ReceivedAt.IsZero())
	assert.Equal(t, "Customers want PDF export.", n.Content.ExtractedText)
	require.NotNil(t, n.Classification)
	assert.Equal(t, th.ID, n.Classification.ThreadID)

	got, err := st.Thread(th.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NoteCount)
	assert.Len(t, st.InboxNotes(), 1)
}

func TestIngest_DuplicateMessageID(t *testing.T) {
	st, _ := newStore(t)
	ing := New(st, WithLogger(quiet))
	env := Envelope{From: "a@b.c", Subject: "hi", MessageID: "dup", Body: "x"}

	_, err := ing.Ingest(context.Background(), env)
	require.NoError(t, err)
	_, err = ing.Ingest(context.Background(), env)
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	assert.True(t, IsDuplicate(err))
	assert.Len(t, st.Notes(), 1)
}

func TestIngest_DerivedMessageIDIsStable(t *testing.T) {
	st, _ := newStore(t)
	ing := New(st, WithLogger(quiet))
	env := Envelope{From: "a@b.c", Subject: "same", Body: "same body"}

	res, err := ing.Ingest(context.Background(), env)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Note.EmailMetadata.MessageID)

	_, err = ing.Ingest(context.Background(), env)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestIngest_RejectsEmptyMessage(t *testing.T) {
	st, _ := newStore(t)
	_, err := New(st, WithLogger(quiet)).Ingest(context.Background(), Envelope{From: "a@b.c", Body: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Empty(t, st.Notes())
}

func TestIngest_HTMLOnlyBody(t *testing.T) {
	st, th := newStore(t)
	ing := New(st, WithClassifier(classifier.NewKeyword(0.3)), WithLogger(quiet))

	res, err := ing.Ingest(context.Background(), Envelope{
		From: "a@b.c",
		HTML: "<p>Plan the <b>roadmap</b> &amp; more</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Plan the roadmap & more", res.Note.Content.ExtractedText)
	assert.Empty(t, res.Note.Content.PlainText)
	assert.NotEmpty(t, res.Note.EmailMetadata.MessageID)
	require.True(t, res.Suggested)
	assert.Equal(t, th.ID, res.Note.Classification.ThreadID)

	_, err = ing.Ingest(context.Background(), Envelope{From: "a@b.c", HTML: "<p> </p>"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestIngest_TagsDriveSuggestion(t *testing.T) {
	st, th := newStore(t)
	ing := New(st, WithClassifier(classifier.NewKeyword(0.3)), WithLogger(quiet))

	res, err := ing.Ingest(context.Background(), Envelope{
		From:    "a@b.c",
		Subject: "Dark mode",
		Body:    "Customers keep asking for it. #UI",
		Tags:    []string{"Roadmap", "ui"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"roadmap", "ui"}, res.Note.Content.Tags)
	require.True(t, res.Suggested)
	assert.Equal(t, th.ID, res.Note.Classification.ThreadID)
	assert.Contains(t, res.Note.Classification.Reasoning, "roadmap")
}

func TestIngest_AutoApprove(t *testing.T) {
	st, th := newStore(t)
	ing := New(st,
		WithClassifier(classifier.NewKeyword(0)),
		WithAutoApprove(0.7),
		WithLogger(quiet))

	// Two keywords give 0.75, one gives 0.5.
	res, err := ing.Ingest(context.Background(), Envelope{From: "a@b.c", Subject: "roadmap", Body: "new feature", MessageID: "m1"})
	require.NoError(t, err)
	assert.True(t, res.AutoApproved)
	assert.True(t, res.Note.InThread(th.ID))

	res, err = ing.Ingest(context.Background(), Envelope{From: "a@b.c", Subject: "roadmap", Body: "thoughts", MessageID: "m2"})
	require.NoError(t, err)
	assert.True(t, res.Suggested)
	assert.False(t, res.AutoApproved)
	assert.True(t, res.Note.InInbox())

	got, err := st.Thread(th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NoteCount)
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, classifier.Input) (*models.Classification, error) {
	return nil, errors.New("model offline")
}

func TestIngest_ClassifierFailureKeepsNote(t *testing.T) {
	st, _ := newStore(t)
	res, err := New(st, WithClassifier(failingClassifier{}), WithLogger(quiet)).
		Ingest(context.Background(), Envelope{From: "a@b.c", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.False(t, res.Suggested)
	assert.Nil(t, res.Note.Classification)
	assert.Len(t, st.InboxNotes(), 1)
}

func dropFolder(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	require.NoError(t, err)
	return dir, fs
}

const mdMessage = `---
from: sarah@company.com
subject: Roadmap review
received_at: 2025-11-15T09:30:00Z
message_id: file-1
---
Next quarter's roadmap has a new export feature.
`

func TestWatcher_SyncMovesFiles(t *testing.T) {
	st, th := newStore(t)
	ing := New(st, WithClassifier(classifier.NewKeyword(0.3)), WithLogger(quiet))
	dir, fs := dropFolder(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte(mdMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.md"), []byte(mdMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.eml"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	w := NewWatcher(ing, fs, quiet, nil)
	n, err := w.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := st.InboxNotes()
	require.Len(t, notes, 1)
	assert.Equal(t, "Roadmap review", notes[0].Subject())
	assert.Equal(t, "sarah@company.com", notes[0].EmailMetadata.From)
	require.NotNil(t, notes[0].Classification)
	assert.Equal(t, th.ID, notes[0].Classification.ThreadID)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "one.md"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "dup.md"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "bad.eml"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "one.md"))

	// A second sync sees nothing new.
	n, err = w.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWatcher_FrontmatterTags(t *testing.T) {
	st, th := newStore(t)
	ing := New(st, WithClassifier(classifier.NewKeyword(0.3)), WithLogger(quiet))
	dir, fs := dropFolder(t)

	msg := "---\nfrom: sarah@company.com\nsubject: Dark mode\ntags: [roadmap]\n---\nCustomers keep asking for it. #ui\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tagged.md"), []byte(msg), 0o644))

	n, err := NewWatcher(ing, fs, quiet, nil).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := st.InboxNotes()
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"roadmap", "ui"}, notes[0].Content.Tags)
	require.NotNil(t, notes[0].Classification)
	assert.Equal(t, th.ID, notes[0].Classification.ThreadID)
}

func TestWatcher_PicksUpNewFiles(t *testing.T) {
	st, _ := newStore(t)
	ing := New(st, WithLogger(quiet))
	dir, fs := dropFolder(t)

	var (
		mu    sync.Mutex
		files []string
	)
	w := NewWatcher(ing, fs, quiet, func(file string, res *Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil && res != nil {
			files = append(files, file)
		}
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	eml := "From: Jane <jane@company.com>\r\nSubject: Standup\r\nMessage-Id: <m-9@x>\r\n\r\nNotes from today.\r\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "standup.eml"), []byte(eml), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(files) == 1
	}, 5*time.Second, 20*time.Millisecond)

	notes := st.InboxNotes()
	require.Len(t, notes, 1)
	assert.Equal(t, "jane@company.com", notes[0].EmailMetadata.From)
	assert.Equal(t, "<m-9@x>", notes[0].EmailMetadata.MessageID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
