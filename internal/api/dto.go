package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/threadbox/internal/ingest"
	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/noteservice"
	"github.com/starford/threadbox/internal/parser"
	"github.com/starford/threadbox/internal/search"
	"github.com/starford/threadbox/internal/store"
)

// CreateThreadRequest is the request body for creating a thread.
type CreateThreadRequest struct {
	Title       string   `json:"title" example:"Product Ideas" validate:"required"`
	Description string   `json:"description" example:"Feature requests and roadmap ideas"`
	Keywords    []string `json:"keywords" example:"product,roadmap"`
	Color       string   `json:"color" example:"#3B82F6"`
}

// Validate implements validation.Validatable.
func (r CreateThreadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Keywords, validation.Length(0, 50), validation.Each(validation.Length(0, 64))),
		validation.Field(&r.Color, validation.Match(models.ColorPattern).Error("must be a #RRGGBB color")),
	)
}

func (r CreateThreadRequest) input() store.ThreadInput {
	return store.ThreadInput{
		Title:       r.Title,
		Description: r.Description,
		Keywords:    r.Keywords,
		Color:       r.Color,
	}
}

// UpdateThreadRequest is the request body for patching a thread. Omitted
// fields are left unchanged.
type UpdateThreadRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Keywords    *[]string `json:"keywords,omitempty"`
	Color       *string   `json:"color,omitempty"`
}

// Validate implements validation.Validatable.
func (r UpdateThreadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Color, validation.Match(models.ColorPattern).Error("must be a #RRGGBB color")),
	)
}

func (r UpdateThreadRequest) patch() store.ThreadPatch {
	return store.ThreadPatch{
		Title:       r.Title,
		Description: r.Description,
		Keywords:    r.Keywords,
		Color:       r.Color,
	}
}

// NoteContentRequest carries note bodies. ExtractedText is derived when
// omitted; inline #tags are merged into Tags.
type NoteContentRequest struct {
	PlainText     string   `json:"plain_text"`
	HTML          string   `json:"html,omitempty"`
	ExtractedText string   `json:"extracted_text,omitempty"`
	Tags          []string `json:"tags,omitempty" example:"ui,feature"`
}

// Validate implements validation.Validatable.
func (c NoteContentRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PlainText,
			validation.When(c.HTML == "", validation.Required.Error("plain_text or html is required"))),
	)
}

func (c NoteContentRequest) content() models.NoteContent {
	out := models.NoteContent{PlainText: c.PlainText, HTML: c.HTML, ExtractedText: c.ExtractedText}
	if out.ExtractedText == "" {
		src := c.PlainText
		if src == "" {
			src = c.HTML
		}
		out.ExtractedText = parser.ExtractText(src)
	}
	if tags := models.NormalizeKeywords(parser.ExtractTags(out.ExtractedText, c.Tags)); len(tags) > 0 {
		out.Tags = tags
	}
	return out
}

// ClassificationRequest is a suggestion supplied by an external classifier.
type ClassificationRequest struct {
	ThreadID   string  `json:"thread_id" example:"thread-1" validate:"required"`
	Confidence float64 `json:"confidence" example:"0.87"`
	Reasoning  string  `json:"reasoning" example:"Matched keywords: standup"`
	ModelUsed  string  `json:"model_used" example:"keyword-v1"`
}

// Validate implements validation.Validatable.
func (r ClassificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ThreadID, validation.Required),
		validation.Field(&r.Confidence, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (r ClassificationRequest) classification() models.Classification {
	return models.Classification{
		ThreadID:   r.ThreadID,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
		ModelUsed:  r.ModelUsed,
	}
}

// CreateNoteRequest is the request body for creating a note. A null
// thread_id puts the note in the inbox.
type CreateNoteRequest struct {
	ThreadID       *string                `json:"thread_id"`
	Source         models.NoteSource      `json:"source" example:"manual"`
	EmailMetadata  *models.EmailMetadata  `json:"email_metadata,omitempty"`
	Content        NoteContentRequest     `json:"content"`
	Classification *ClassificationRequest `json:"classification,omitempty"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ThreadID, validation.NilOrNotEmpty),
		validation.Field(&r.Source, validation.In(models.SourceEmail, models.SourceManual)),
		validation.Field(&r.EmailMetadata,
			validation.When(r.Source == models.SourceEmail, validation.Required),
			validation.When(r.Source != models.SourceEmail, validation.Nil.Error("only email notes carry email_metadata"))),
		validation.Field(&r.Content),
		validation.Field(&r.Classification),
	)
}

func (r CreateNoteRequest) input() store.NoteInput {
	in := store.NoteInput{
		ThreadID:      r.ThreadID,
		Source:        r.Source,
		EmailMetadata: r.EmailMetadata,
		Content:       r.Content.content(),
	}
	if r.Classification != nil {
		c := r.Classification.classification()
		in.Classification = &c
	}
	return in
}

// UpdateNoteRequest is the request body for patching a note's metadata or
// content. Thread membership changes go through the move endpoint.
type UpdateNoteRequest struct {
	EmailMetadata *models.EmailMetadata `json:"email_metadata,omitempty"`
	Content       *NoteContentRequest   `json:"content,omitempty"`
}

// Validate implements validation.Validatable.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content),
	)
}

func (r UpdateNoteRequest) patch() store.NotePatch {
	p := store.NotePatch{EmailMetadata: r.EmailMetadata}
	if r.Content != nil {
		c := r.Content.content()
		p.Content = &c
	}
	return p
}

// MoveNoteRequest is the request body for moving a note into a thread.
type MoveNoteRequest struct {
	ThreadID string `json:"thread_id" example:"thread-2" validate:"required"`
}

// Validate implements validation.Validatable.
func (r MoveNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ThreadID, validation.Required),
	)
}

// IngestRequest is one incoming message.
type IngestRequest struct {
	From       string    `json:"from" example:"sarah@company.com" validate:"required"`
	Subject    string    `json:"subject" example:"Dark mode"`
	ReceivedAt time.Time `json:"received_at"`
	MessageID  string    `json:"message_id" example:"<msg-001@company.com>"`
	Body       string    `json:"body" example:"We should add dark mode."`
	HTML       string    `json:"html,omitempty"`
	Tags       []string  `json:"tags,omitempty" example:"ui,feature"`
}

// Validate implements validation.Validatable.
func (r IngestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required, validation.Length(1, 320)),
		validation.Field(&r.Body, validation.When(r.Subject == "" && r.HTML == "", validation.Required.Error("subject, body or html is required"))),
	)
}

func (r IngestRequest) envelope() ingest.Envelope {
	return ingest.Envelope{
		From:       r.From,
		Subject:    r.Subject,
		ReceivedAt: r.ReceivedAt,
		MessageID:  r.MessageID,
		Body:       r.Body,
		HTML:       r.HTML,
		Tags:       r.Tags,
	}
}

// ThreadListResponse wraps thread listings.
type ThreadListResponse struct {
	Threads []models.Thread `json:"threads" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// InboxResponse wraps the inbox listing.
type InboxResponse struct {
	Items []noteservice.InboxItem `json:"items" validate:"required"`
	Total int                     `json:"total" validate:"required"`
}

// SummaryListResponse wraps the summaries of a thread.
type SummaryListResponse struct {
	Summaries []models.GeneratedMarkdown `json:"summaries" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Hit `json:"results" validate:"required"`
}

// ClassifyResponse is returned by the classify endpoint.
type ClassifyResponse struct {
	Note      models.Note `json:"note" validate:"required"`
	Suggested bool        `json:"suggested"`
}

// ExportResponse reports where a summary was written.
type ExportResponse struct {
	Path string `json:"path" example:"thread-1/gen-1.md" validate:"required"`
}
