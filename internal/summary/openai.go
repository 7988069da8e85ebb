package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the chat-completion summarizer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI asks a chat model for the narrative paragraph and renders it into the
// same document layout as Template. A failed call yields an error and no document.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAI builds an OpenAI generator.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Generate implements Generator.
func (g *OpenAI) Generate(ctx context.Context, in Input) (Document, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: float32(g.temperature),
	})
	if err != nil {
		return Document{}, fmt.Errorf("summary: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Document{}, errors.New("summary: chat completion returned no choices")
	}
	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)
	if narrative == "" {
		return Document{}, errors.New("summary: empty narrative")
	}
	return Document{Content: Render(in, g.model, narrative), Model: g.model}, nil
}

const systemPrompt = `You summarize a collection of notes that a user grouped into one topical thread.
Write two or three short paragraphs of plain Markdown prose. Do not add headings.
Mention recurring themes and any open questions or action items.`

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread: %s\n", in.Thread.Title)
	if in.Thread.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", in.Thread.Description)
	}
	if len(in.Thread.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(in.Thread.Keywords, ", "))
	}
	b.WriteString("\nNotes:\n")
	for i, n := range in.Notes {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, noteHeading(n), strings.TrimSpace(n.Content.ExtractedText))
	}
	return b.String()
}
