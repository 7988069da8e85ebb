// Package models defines the domain types for Threadbox.
package models

import "time"

// NoteSource records how a note entered the system.
type NoteSource string

// Note sources.
const (
	SourceEmail  NoteSource = "email"
	SourceManual NoteSource = "manual"
)

// Note is a single captured item. A nil ThreadID means the note sits in the inbox.
type Note struct {
	ID             string          `json:"id"`
	ThreadID       *string         `json:"thread_id"`
	Source         NoteSource      `json:"source"`
	EmailMetadata  *EmailMetadata  `json:"email_metadata,omitempty"`
	Content        NoteContent     `json:"content"`
	Classification *Classification `json:"classification,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EmailMetadata is present only on email-sourced notes.
type EmailMetadata struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	MessageID  string    `json:"message_id"`
}

// NoteContent holds the note body. ExtractedText and Tags are what display
// and classification work from.
type NoteContent struct {
	PlainText     string   `json:"plain_text"`
	HTML          string   `json:"html,omitempty"`
	ExtractedText string   `json:"extracted_text"`
	Tags          []string `json:"tags,omitempty"`
}

// Classification is an advisory suggestion produced by a classifier.
// ThreadID may point at a thread that no longer exists.
type Classification struct {
	ThreadID     string    `json:"thread_id"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	ModelUsed    string    `json:"model_used"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// InInbox reports whether the note is unassigned.
func (n *Note) InInbox() bool {
	return n.ThreadID == nil
}

// InThread reports whether the note is assigned to threadID.
func (n *Note) InThread(threadID string) bool {
	return n.ThreadID != nil && *n.ThreadID == threadID
}

// Subject returns the email subject, or empty for manual notes.
func (n *Note) Subject() string {
	if n.EmailMetadata == nil {
		return ""
	}
	return n.EmailMetadata.Subject
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (n Note) Clone() Note {
	out := n
	if n.ThreadID != nil {
		id := *n.ThreadID
		out.ThreadID = &id
	}
	if n.EmailMetadata != nil {
		md := *n.EmailMetadata
		out.EmailMetadata = &md
	}
	if n.Classification != nil {
		c := *n.Classification
		out.Classification = &c
	}
	if n.Content.Tags != nil {
		out.Content.Tags = append([]string(nil), n.Content.Tags...)
	}
	return out
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}
