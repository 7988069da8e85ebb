// Package classifier suggests a thread for a note. Suggestions are advisory:
// callers attach them to notes and approval is a separate step.
package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/starford/threadbox/internal/models"
)

// Input is what a classifier sees about a note and the candidate threads.
type Input struct {
	Subject string
	Text    string
	Tags    []string
	Threads []models.Thread
	Now     time.Time
}

// InputFor builds an Input from a stored note.
func InputFor(n models.Note, threads []models.Thread, now time.Time) Input {
	return Input{
		Subject: n.Subject(),
		Text:    n.Content.ExtractedText,
		Tags:    n.Content.Tags,
		Threads: threads,
		Now:     now,
	}
}

// Classifier returns a suggestion, or nil when no thread fits.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*models.Classification, error)
}

// KeywordModel is the model identifier recorded by the keyword classifier.
const KeywordModel = "keyword-v1"

// Keyword matches thread keywords against the note's subject, text and tags.
type Keyword struct {
	minConfidence float64
}

// NewKeyword returns a keyword classifier that drops suggestions below minConfidence.
func NewKeyword(minConfidence float64) *Keyword {
	return &Keyword{minConfidence: minConfidence}
}

// Classify implements Classifier. Each distinct matched keyword halves the
// remaining doubt, so confidence is 1 - 0.5^matches. Ties go to the earlier thread.
func (c *Keyword) Classify(_ context.Context, in Input) (*models.Classification, error) {
	text := models.NormalizeKeyword(in.Subject + "\n" + in.Text + "\n" + strings.Join(in.Tags, "\n"))
	tokens := tokenize(text)
	for _, tag := range in.Tags {
		if tag = models.NormalizeKeyword(tag); tag != "" {
			tokens[tag] = struct{}{}
		}
	}

	var (
		best    *models.Thread
		matched []string
	)
	for i := range in.Threads {
		t := &in.Threads[i]
		var hits []string
		for _, kw := range t.Keywords {
			if matches(kw, text, tokens) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > len(matched) {
			best, matched = t, hits
		}
	}
	if best == nil {
		return nil, nil
	}

	confidence := 1 - math.Pow(0.5, float64(len(matched)))
	if confidence < c.minConfidence {
		return nil, nil
	}
	return &models.Classification{
		ThreadID:     best.ID,
		Confidence:   confidence,
		Reasoning:    fmt.Sprintf("Matched keywords: %s", strings.Join(matched, ", ")),
		ModelUsed:    KeywordModel,
		ClassifiedAt: in.Now,
	}, nil
}

// tokenize splits normalized text into words. Hashtags count as plain words.
func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-_")
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

func matches(kw, text string, tokens map[string]struct{}) bool {
	if strings.ContainsAny(kw, " \t") {
		return strings.Contains(text, kw)
	}
	if _, ok := tokens[kw]; ok {
		return true
	}
	if _, ok := tokens[kw+"s"]; ok {
		return true
	}
	if strings.HasSuffix(kw, "s") {
		if _, ok := tokens[strings.TrimSuffix(kw, "s")]; ok {
			return true
		}
	}
	return false
}

// None never suggests anything.
type None struct{}

// Classify implements Classifier.
func (None) Classify(context.Context, Input) (*models.Classification, error) {
	return nil, nil
}
