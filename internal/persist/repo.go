package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/store"
)

const timeLayout = time.RFC3339Nano

var _ store.Persister = (*DB)(nil)

// Apply writes one store mutation in a single transaction. Writes run in
// dependency order so foreign keys hold at every statement.
func (db *DB) Apply(ctx context.Context, ch store.Change) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, t := range ch.UpsertThreads {
		if err := db.upsertThread(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, n := range ch.UpsertNotes {
		if err := db.upsertNote(ctx, tx, n); err != nil {
			return err
		}
	}
	for _, g := range ch.InsertSummaries {
		if err := db.insertSummary(ctx, tx, g); err != nil {
			return err
		}
	}
	for _, id := range ch.DeleteSummaries {
		if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM generated_summaries WHERE id = ?`), id); err != nil {
			return fmt.Errorf("persist: delete summary %s: %w", id, err)
		}
	}
	for _, id := range ch.DeleteNotes {
		if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM notes WHERE id = ?`), id); err != nil {
			return fmt.Errorf("persist: delete note %s: %w", id, err)
		}
	}
	for _, id := range ch.DeleteThreads {
		if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM threads WHERE id = ?`), id); err != nil {
			return fmt.Errorf("persist: delete thread %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

// Import writes a whole snapshot, typically the seed dataset, in one transaction.
func (db *DB) Import(ctx context.Context, snap store.Snapshot) error {
	return db.Apply(ctx, store.Change{
		UpsertThreads:   snap.Threads,
		UpsertNotes:     snap.Notes,
		InsertSummaries: snap.Summaries,
	})
}

func (db *DB) upsertThread(ctx context.Context, tx *sql.Tx, t models.Thread) error {
	keywords, err := json.Marshal(t.Keywords)
	if err != nil {
		return fmt.Errorf("persist: encode keywords: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO threads (id, title, description, keywords, color, note_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			keywords    = excluded.keywords,
			color       = excluded.color,
			note_count  = excluded.note_count,
			updated_at  = excluded.updated_at
	`), t.ID, t.Title, t.Description, string(keywords), t.Color, t.NoteCount,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("persist: upsert thread %s: %w", t.ID, err)
	}
	return nil
}

func (db *DB) upsertNote(ctx context.Context, tx *sql.Tx, n models.Note) error {
	metadata, err := encodeOptional(n.EmailMetadata)
	if err != nil {
		return fmt.Errorf("persist: encode email metadata: %w", err)
	}
	classification, err := encodeOptional(n.Classification)
	if err != nil {
		return fmt.Errorf("persist: encode classification: %w", err)
	}
	content, err := json.Marshal(n.Content)
	if err != nil {
		return fmt.Errorf("persist: encode content: %w", err)
	}
	var threadID sql.NullString
	if n.ThreadID != nil {
		threadID = sql.NullString{String: *n.ThreadID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO notes (id, thread_id, source, email_metadata, content, classification, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id      = excluded.thread_id,
			source         = excluded.source,
			email_metadata = excluded.email_metadata,
			content        = excluded.content,
			classification = excluded.classification,
			updated_at     = excluded.updated_at
	`), n.ID, threadID, string(n.Source), metadata, string(content), classification,
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("persist: upsert note %s: %w", n.ID, err)
	}
	return nil
}

func (db *DB) insertSummary(ctx context.Context, tx *sql.Tx, g models.GeneratedMarkdown) error {
	_, err := tx.ExecContext(ctx, db.rebind(`
		INSERT INTO generated_summaries (id, thread_id, thread_title, content, generated_at, model_used, note_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), g.ID, g.ThreadID, g.ThreadTitle, g.Content, formatTime(g.GeneratedAt), g.ModelUsed, g.NoteCount)
	if err != nil {
		return fmt.Errorf("persist: insert summary %s: %w", g.ID, err)
	}
	return nil
}

// Load reads the full state in insertion order.
func (db *DB) Load(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot
	var err error
	if snap.Threads, err = db.loadThreads(ctx); err != nil {
		return store.Snapshot{}, err
	}
	if snap.Notes, err = db.loadNotes(ctx); err != nil {
		return store.Snapshot{}, err
	}
	if snap.Summaries, err = db.loadSummaries(ctx); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}

func (db *DB) loadThreads(ctx context.Context) ([]models.Thread, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, description, keywords, color, note_count, created_at, updated_at
		FROM threads ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("persist: load threads: %w", err)
	}
	defer rows.Close()

	var out []models.Thread
	for rows.Next() {
		var (
			t                models.Thread
			keywords         string
			created, updated string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &keywords, &t.Color, &t.NoteCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("persist: scan thread: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &t.Keywords); err != nil {
			return nil, fmt.Errorf("persist: decode keywords for %s: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) loadNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, thread_id, source, email_metadata, content, classification, created_at, updated_at
		FROM notes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("persist: load notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var (
			n                        models.Note
			threadID                 sql.NullString
			source, content          string
			metadata, classification sql.NullString
			created, updated         string
		)
		if err := rows.Scan(&n.ID, &threadID, &source, &metadata, &content, &classification, &created, &updated); err != nil {
			return nil, fmt.Errorf("persist: scan note: %w", err)
		}
		n.Source = models.NoteSource(source)
		if threadID.Valid {
			n.ThreadID = models.StringPtr(threadID.String)
		}
		if err := json.Unmarshal([]byte(content), &n.Content); err != nil {
			return nil, fmt.Errorf("persist: decode content for %s: %w", n.ID, err)
		}
		if metadata.Valid {
			n.EmailMetadata = &models.EmailMetadata{}
			if err := json.Unmarshal([]byte(metadata.String), n.EmailMetadata); err != nil {
				return nil, fmt.Errorf("persist: decode email metadata for %s: %w", n.ID, err)
			}
		}
		if classification.Valid {
			n.Classification = &models.Classification{}
			if err := json.Unmarshal([]byte(classification.String), n.Classification); err != nil {
				return nil, fmt.Errorf("persist: decode classification for %s: %w", n.ID, err)
			}
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if n.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) loadSummaries(ctx context.Context) ([]models.GeneratedMarkdown, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, thread_id, thread_title, content, generated_at, model_used, note_count
		FROM generated_summaries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("persist: load summaries: %w", err)
	}
	defer rows.Close()

	var out []models.GeneratedMarkdown
	for rows.Next() {
		var (
			g         models.GeneratedMarkdown
			generated string
		)
		if err := rows.Scan(&g.ID, &g.ThreadID, &g.ThreadTitle, &g.Content, &generated, &g.ModelUsed, &g.NoteCount); err != nil {
			return nil, fmt.Errorf("persist: scan summary: %w", err)
		}
		if g.GeneratedAt, err = parseTime(generated); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func encodeOptional[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("persist: parse time %q: %w", s, err)
	}
	return t, nil
}
