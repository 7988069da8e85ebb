// Package seed provides the built-in demo dataset.
package seed

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/store"
	"github.com/starford/threadbox/internal/summary"
)

//go:embed seed.yaml
var dataset []byte

type file struct {
	Threads   []threadRow  `yaml:"threads"`
	Notes     []noteRow    `yaml:"notes"`
	Summaries []summaryRow `yaml:"summaries"`
}

type threadRow struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Keywords    []string  `yaml:"keywords"`
	Color       string    `yaml:"color"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

type noteRow struct {
	ID         string         `yaml:"id"`
	ThreadID   string         `yaml:"thread_id"`
	From       string         `yaml:"from"`
	Subject    string         `yaml:"subject"`
	ReceivedAt time.Time      `yaml:"received_at"`
	MessageID  string         `yaml:"message_id"`
	Text       string         `yaml:"text"`
	CreatedAt  time.Time      `yaml:"created_at"`
	Suggestion *suggestionRow `yaml:"suggestion"`
}

type suggestionRow struct {
	ThreadID   string  `yaml:"thread_id"`
	Confidence float64 `yaml:"confidence"`
	Reasoning  string  `yaml:"reasoning"`
	Model      string  `yaml:"model"`
}

type summaryRow struct {
	ID          string    `yaml:"id"`
	ThreadID    string    `yaml:"thread_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Model       string    `yaml:"model"`
}

// Load decodes the embedded dataset into a store snapshot. Summary documents
// are rendered from the seeded notes.
func Load() (store.Snapshot, error) {
	return Parse(dataset)
}

// Parse decodes a dataset in the seed YAML layout.
func Parse(data []byte) (store.Snapshot, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return store.Snapshot{}, fmt.Errorf("seed: decode: %w", err)
	}

	var snap store.Snapshot
	threads := make(map[string]models.Thread, len(f.Threads))
	for _, r := range f.Threads {
		t := models.Thread{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Keywords:    models.NormalizeKeywords(r.Keywords),
			Color:       r.Color,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		}
		threads[t.ID] = t
		snap.Threads = append(snap.Threads, t)
	}

	for _, r := range f.Notes {
		n, err := r.note()
		if err != nil {
			return store.Snapshot{}, err
		}
		if n.ThreadID != nil {
			if _, ok := threads[*n.ThreadID]; !ok {
				return store.Snapshot{}, fmt.Errorf("seed: note %s: unknown thread %s", n.ID, *n.ThreadID)
			}
		}
		snap.Notes = append(snap.Notes, n)
	}

	for _, r := range f.Summaries {
		t, ok := threads[r.ThreadID]
		if !ok {
			return store.Snapshot{}, fmt.Errorf("seed: summary %s: unknown thread %s", r.ID, r.ThreadID)
		}
		in := summary.Input{Thread: t, Now: r.GeneratedAt}
		for _, n := range snap.Notes {
			if n.InThread(t.ID) {
				in.Notes = append(in.Notes, n)
			}
		}
		sort.SliceStable(in.Notes, func(i, j int) bool {
			return in.Notes[i].CreatedAt.Before(in.Notes[j].CreatedAt)
		})
		t.NoteCount = len(in.Notes)
		in.Thread = t
		snap.Summaries = append(snap.Summaries, models.GeneratedMarkdown{
			ID:          r.ID,
			ThreadID:    t.ID,
			ThreadTitle: t.Title,
			Content:     summary.Render(in, r.Model, ""),
			GeneratedAt: r.GeneratedAt,
			ModelUsed:   r.Model,
			NoteCount:   len(in.Notes),
		})
	}
	return snap, nil
}

func (r noteRow) note() (models.Note, error) {
	if r.ID == "" {
		return models.Note{}, fmt.Errorf("seed: note without id")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = r.ReceivedAt.Add(5 * time.Second)
	}
	n := models.Note{
		ID:     r.ID,
		Source: models.SourceManual,
		Content: models.NoteContent{
			PlainText:     r.Text,
			ExtractedText: r.Text,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if r.ThreadID != "" {
		n.ThreadID = models.StringPtr(r.ThreadID)
	}
	if r.From != "" {
		n.Source = models.SourceEmail
		n.EmailMetadata = &models.EmailMetadata{
			From:       r.From,
			Subject:    r.Subject,
			ReceivedAt: r.ReceivedAt,
			MessageID:  r.MessageID,
		}
	}
	if s := r.Suggestion; s != nil {
		n.Classification = &models.Classification{
			ThreadID:     s.ThreadID,
			Confidence:   s.Confidence,
			Reasoning:    s.Reasoning,
			ModelUsed:    s.Model,
			ClassifiedAt: created,
		}
	}
	return n, nil
}
