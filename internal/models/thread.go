package models

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ColorPattern is the accepted thread color format, #RRGGBB.
var ColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c is empty or a #RRGGBB color.
func ValidColor(c string) bool {
	return c == "" || ColorPattern.MatchString(c)
}

// Thread is a user-defined topical bucket that notes are organized into.
// NoteCount is a cached counter maintained by the store on every membership change.
type Thread struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	NoteCount   int       `json:"note_count"`
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	out := t
	out.Keywords = append([]string(nil), t.Keywords...)
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out
}

// GeneratedMarkdown is an immutable summary document produced from a thread's notes.
// ThreadTitle and NoteCount are snapshots taken at generation time.
type GeneratedMarkdown struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	ThreadTitle string    `json:"thread_title"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
	ModelUsed   string    `json:"model_used"`
	NoteCount   int       `json:"note_count"`
}

// NormalizeKeyword folds a keyword to its canonical form: NFKC, lowercase, trimmed.
// A Caser is stateful, so each call builds its own.
func NormalizeKeyword(k string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(norm.NFKC.String(k)))
}

// NormalizeKeywords normalizes every keyword, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = NormalizeKeyword(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
