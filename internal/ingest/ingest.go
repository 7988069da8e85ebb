// Package ingest turns incoming messages into inbox notes and attaches a
// thread suggestion. Auto-approval is a policy of this package; the store
// only ever moves a note when asked to.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/threadbox/internal/apperr"
	"github.com/starford/threadbox/internal/checksum"
	"github.com/starford/threadbox/internal/classifier"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/parser"
	"github.com/starford/threadbox/internal/store"
)

// Envelope is one message handed to the ingestor.
type Envelope struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	MessageID  string    `json:"message_id"`
	Body       string    `json:"body"`
	HTML       string    `json:"html,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}

// FromMessage converts a parsed message file into an Envelope.
func FromMessage(m *parser.Message) Envelope {
	return Envelope{
		From:       m.From,
		Subject:    m.Subject,
		ReceivedAt: m.ReceivedAt,
		MessageID:  m.MessageID,
		Body:       m.Body,
		HTML:       m.HTML,
		Tags:       m.Tags,
	}
}

// Result reports what happened to an ingested message.
type Result struct {
	Note         models.Note `json:"note"`
	Suggested    bool        `json:"suggested"`
	AutoApproved bool        `json:"auto_approved"`
}

// Ingestor creates inbox notes from envelopes.
type Ingestor struct {
	store      *store.Store
	classifier classifier.Classifier
	threshold  float64
	now        func() time.Time
	logger     *slog.Logger

	// mu serializes the duplicate check with note creation.
	mu sync.Mutex
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithClassifier sets the classifier used for suggestions.
func WithClassifier(c classifier.Classifier) Option {
	return func(i *Ingestor) { i.classifier = c }
}

// WithAutoApprove approves suggestions whose confidence reaches threshold.
// Zero disables auto-approval.
func WithAutoApprove(threshold float64) Option {
	return func(i *Ingestor) { i.threshold = threshold }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Ingestor) { i.logger = l }
}

// New returns an Ingestor writing into st. The default classifier never suggests.
func New(st *store.Store, opts ...Option) *Ingestor {
	i := &Ingestor{
		store:      st,
		classifier: classifier.None{},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest creates an inbox note for env, classifies it and attaches the
// suggestion. A message id already present in the store is rejected with
// apperr.ErrAlreadyExists. Classifier failures do not fail the ingest.
func (i *Ingestor) Ingest(ctx context.Context, env Envelope) (Result, error) {
	env.From = strings.TrimSpace(env.From)
	env.Subject = strings.TrimSpace(env.Subject)
	src := env.Body
	if strings.TrimSpace(src) == "" {
		src = env.HTML
	}
	text := parser.ExtractText(src)
	if env.Subject == "" && text == "" {
		return Result{}, fmt.Errorf("ingest: message has neither subject nor body: %w", apperr.ErrInvalidInput)
	}
	if env.MessageID == "" {
		env.MessageID = checksum.MessageID([]byte(env.From + "\n" + env.Subject + "\n" + src))
	}
	if env.ReceivedAt.IsZero() {
		env.ReceivedAt = i.now()
	}

	tags := models.NormalizeKeywords(parser.ExtractTags(text, env.Tags))
	if len(tags) == 0 {
		tags = nil
	}

	note, err := i.create(ctx, env, models.NoteContent{
		PlainText:     env.Body,
		HTML:          env.HTML,
		ExtractedText: text,
		Tags:          tags,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{Note: note}

	threads := i.store.Threads()
	sug, err := i.classifier.Classify(ctx, classifier.InputFor(note, threads, i.now()))
	if err != nil {
		i.logger.Warn("ingest: classify failed", slog.String("note", note.ID), slog.String("error", err.Error()))
		return res, nil
	}
	if sug == nil {
		return res, nil
	}
	attached, err := i.store.AttachClassification(ctx, note.ID, *sug)
	if err != nil {
		i.logger.Warn("ingest: attach suggestion failed", slog.String("note", note.ID), slog.String("error", err.Error()))
		return res, nil
	}
	res.Note, res.Suggested = attached, true

	if i.threshold > 0 && sug.Confidence >= i.threshold {
		approved, err := i.store.ApproveSuggestion(ctx, note.ID)
		if err != nil {
			i.logger.Warn("ingest: auto-approve failed", slog.String("note", note.ID), slog.String("error", err.Error()))
			return res, nil
		}
		res.Note, res.AutoApproved = approved, true
	}
	i.logger.Info("ingest: note created",
		slog.String("note", res.Note.ID),
		slog.String("suggested_thread", sug.ThreadID),
		slog.Float64("confidence", sug.Confidence),
		slog.Bool("auto_approved", res.AutoApproved))
	return res, nil
}

func (i *Ingestor) create(ctx context.Context, env Envelope, content models.NoteContent) (models.Note, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.seen(env.MessageID) {
		return models.Note{}, fmt.Errorf("ingest: message %s: %w", env.MessageID, apperr.ErrAlreadyExists)
	}
	note, err := i.store.CreateNote(ctx, store.NoteInput{
		Source: models.SourceEmail,
		EmailMetadata: &models.EmailMetadata{
			From:       env.From,
			Subject:    env.Subject,
			ReceivedAt: env.ReceivedAt,
			MessageID:  env.MessageID,
		},
		Content: content,
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("ingest: %w", err)
	}
	return note, nil
}

func (i *Ingestor) seen(messageID string) bool {
	for _, n := range i.store.Notes() {
		if n.EmailMetadata != nil && n.EmailMetadata.MessageID == messageID {
			return true
		}
	}
	return false
}

// IsDuplicate reports whether err is a duplicate-message rejection.
func IsDuplicate(err error) bool {
	return errors.Is(err, apperr.ErrAlreadyExists)
}
