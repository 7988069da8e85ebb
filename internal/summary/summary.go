// Package summary renders generated Markdown documents from a thread and its notes.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/threadbox/internal/models"
)

// Input is a consistent snapshot of a thread and its notes, ordered by CreatedAt.
type Input struct {
	Thread models.Thread
	Notes  []models.Note
	Now    time.Time
}

// Document is the output of a Generator.
type Document struct {
	Content string
	Model   string
}

// Generator produces a summary document. Implementations must not retain Input.
type Generator interface {
	Generate(ctx context.Context, in Input) (Document, error)
}

// TemplateModel is the model identifier recorded for template-rendered summaries.
const TemplateModel = "template-v1"

const (
	dateLayout     = "January 2, 2006"
	dateTimeLayout = "January 2, 2006 15:04 MST"
)

// Template renders a fixed, deterministic document without calling any model.
type Template struct {
	model string
}

// NewTemplate returns a template generator that records model as its identifier.
// An empty model falls back to TemplateModel.
func NewTemplate(model string) *Template {
	if model == "" {
		model = TemplateModel
	}
	return &Template{model: model}
}

// Generate implements Generator.
func (t *Template) Generate(_ context.Context, in Input) (Document, error) {
	return Document{Content: Render(in, t.model, ""), Model: t.model}, nil
}

// Render builds the document body. narrative replaces the fixed summary stub when non-empty.
func Render(in Input, model, narrative string) string {
	var b strings.Builder
	th := in.Thread

	fmt.Fprintf(&b, "# %s\n\n", th.Title)
	if d := strings.TrimSpace(th.Description); d != "" {
		fmt.Fprintf(&b, "%s\n\n", d)
	}

	b.WriteString("## Summary\n\n")
	if narrative = strings.TrimSpace(narrative); narrative != "" {
		fmt.Fprintf(&b, "%s\n\n", narrative)
	} else {
		fmt.Fprintf(&b, "This is a generated summary of %d %s in the %q thread.\n\n",
			len(in.Notes), plural(len(in.Notes), "note", "notes"), th.Title)
	}

	for i, n := range in.Notes {
		fmt.Fprintf(&b, "### Note %d: %s\n\n", i+1, noteHeading(n))
		if md := n.EmailMetadata; md != nil {
			fmt.Fprintf(&b, "**From:** %s\n", md.From)
			fmt.Fprintf(&b, "**Date:** %s\n\n", md.ReceivedAt.UTC().Format(dateTimeLayout))
		}
		if text := strings.TrimSpace(n.Content.ExtractedText); text != "" {
			fmt.Fprintf(&b, "%s\n\n", text)
		}
	}

	b.WriteString("## Key Takeaways\n\n")
	fmt.Fprintf(&b, "- %d total %s collected\n", len(in.Notes), plural(len(in.Notes), "note", "notes"))
	fmt.Fprintf(&b, "- Thread created %s\n", th.CreatedAt.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "- Last updated %s\n\n", th.UpdatedAt.UTC().Format(dateLayout))

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*Generated on %s*\n", in.Now.UTC().Format(dateTimeLayout))
	fmt.Fprintf(&b, "*Model: %s*\n", model)

	return b.String()
}

func noteHeading(n models.Note) string {
	if s := strings.TrimSpace(n.Subject()); s != "" {
		return s
	}
	return "Untitled"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
