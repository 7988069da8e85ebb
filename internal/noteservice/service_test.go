package noteservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/classifier"
	"github.com/starford/threadbox/internal/ingest"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/search"
	"github.com/starford/threadbox/internal/seed"
	"github.com/starford/threadbox/internal/storage"
	"github.com/starford/threadbox/internal/store"
)

func seeded(t *testing.T, opts ...Option) *Service {
	t.Helper()
	snap, err := seed.Load()
	require.NoError(t, err)
	st, err := store.New(store.WithSnapshot(snap))
	require.NoError(t, err)
	return New(st, opts...)
}

func TestInbox_OnlyResolvableSuggestions(t *testing.T) {
	svc := seeded(t)
	items := svc.Inbox()
	require.Len(t, items, 3)

	withSuggestion := 0
	for _, it := range items {
		if it.Suggested != nil {
			withSuggestion++
			assert.Equal(t, it.Note.Classification.ThreadID, it.Suggested.ID)
		}
	}
	assert.Equal(t, 2, withSuggestion)

	// Deleting a suggested thread hides the suggestion without touching the note.
	require.NoError(t, svc.DeleteThread(context.Background(), "thread-2"))
	withSuggestion = 0
	for _, it := range svc.Inbox() {
		if it.Suggested != nil {
			withSuggestion++
		}
	}
	assert.Equal(t, 1, withSuggestion)
}

func TestThreadDetail(t *testing.T) {
	svc := seeded(t)
	d, err := svc.ThreadDetail("thread-1")
	require.NoError(t, err)
	assert.Len(t, d.Notes, d.Thread.NoteCount)
	assert.Len(t, d.Summaries, 1)

	_, err = svc.ThreadDetail("thread-x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.ThreadNotes("thread-x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Summaries("thread-x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClassify(t *testing.T) {
	svc := seeded(t, WithClassifier(classifier.NewKeyword(0.3)))
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, store.NoteInput{
		Content: models.NoteContent{PlainText: "x", ExtractedText: "standup meeting action-items"},
	})
	require.NoError(t, err)

	got, ok, err := svc.Classify(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Classification)
	assert.True(t, got.InInbox())

	approved, err := svc.ApproveSuggestion(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, approved.InThread(got.Classification.ThreadID))
	require.NoError(t, svc.Store().Check())

	_, _, err = svc.Classify(ctx, "note-missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClassify_NoSuggestion(t *testing.T) {
	svc := seeded(t)
	_, ok, err := svc.Classify(context.Background(), "note-11")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestUsesServiceClassifier(t *testing.T) {
	svc := seeded(t, WithClassifier(classifier.NewKeyword(0.3)))
	res, err := svc.Ingest(context.Background(), ingest.Envelope{
		From: "a@b.c", Subject: "Weekly standup", Body: "meeting recap", MessageID: "new-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Suggested)
}

func TestSearchAndExportDisabled(t *testing.T) {
	svc := seeded(t)
	_, err := svc.Search(context.Background(), "x", 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.ExportSummary(context.Background(), "gen-1")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestSearch(t *testing.T) {
	snap, err := seed.Load()
	require.NoError(t, err)
	idx, err := search.NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Rebuild(snap.Notes))

	st, err := store.New(store.WithSnapshot(snap))
	require.NoError(t, err)
	svc := New(st, WithIndex(idx))

	hits, err := svc.Search(context.Background(), "dark mode", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestExportSummary(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	require.NoError(t, err)
	svc := seeded(t, WithExports(fs))
	ctx := context.Background()

	g, err := svc.GenerateSummary(ctx, "thread-2")
	require.NoError(t, err)

	rel, err := svc.ExportSummary(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "thread-2/"+g.ID+".md", rel)

	data, err := os.ReadFile(filepath.Join(dir, "thread-2", g.ID+".md"))
	require.NoError(t, err)
	assert.Equal(t, g.Content, string(data))

	_, err = svc.ExportSummary(ctx, "gen-missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteThread_RemovesExports(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	require.NoError(t, err)
	svc := seeded(t, WithExports(fs))
	ctx := context.Background()

	exported, err := svc.GenerateSummary(ctx, "thread-2")
	require.NoError(t, err)
	_, err = svc.ExportSummary(ctx, exported.ID)
	require.NoError(t, err)
	// Never exported, so there is no file to remove.
	_, err = svc.GenerateSummary(ctx, "thread-2")
	require.NoError(t, err)

	other, err := svc.GenerateSummary(ctx, "thread-1")
	require.NoError(t, err)
	_, err = svc.ExportSummary(ctx, other.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteThread(ctx, "thread-2"))
	assert.NoFileExists(t, filepath.Join(dir, "thread-2", exported.ID+".md"))
	assert.FileExists(t, filepath.Join(dir, "thread-1", other.ID+".md"))

	assert.ErrorIs(t, svc.DeleteThread(ctx, "thread-2"), apperr.ErrNotFound)
}
