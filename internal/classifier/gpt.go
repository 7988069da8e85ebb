package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/sashabaranov/go-openai"

	"github.com/starford/threadbox/internal/models"
)

// GPTConfig configures the chat-completion classifier.
type GPTConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float64
	MinConfidence float64
}

// GPT asks a chat model to pick a thread, constrained by a strict JSON schema.
// Any API or decoding failure falls back to the keyword classifier.
type GPT struct {
	client        *openai.Client
	model         string
	maxTokens     int
	temperature   float64
	minConfidence float64
	schema        json.RawMessage
	fallback      Classifier
	logger        *slog.Logger
}

type gptAnswer struct {
	ThreadID   string  `json:"thread_id" jsonschema:"description=Id of the best matching thread or empty when none fits"`
	Confidence float64 `json:"confidence" jsonschema:"description=Probability between 0 and 1 that the thread is correct"`
	Reasoning  string  `json:"reasoning" jsonschema:"description=One sentence explaining the choice"`
}

// NewGPT builds a GPT classifier.
func NewGPT(cfg GPTConfig, logger *slog.Logger) (*GPT, error) {
	schema, err := answerSchema()
	if err != nil {
		return nil, fmt.Errorf("classifier: build schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &GPT{
		client:        openai.NewClientWithConfig(oc),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		minConfidence: cfg.MinConfidence,
		schema:        schema,
		fallback:      NewKeyword(cfg.MinConfidence),
		logger:        logger,
	}, nil
}

func answerSchema() (json.RawMessage, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	b, err := r.Reflect(&gptAnswer{}).MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return json.Marshal(m)
}

// Classify implements Classifier.
func (c *GPT) Classify(ctx context.Context, in Input) (*models.Classification, error) {
	if len(in.Threads) == 0 {
		return nil, nil
	}
	out, err := c.ask(ctx, in)
	if err != nil {
		c.logger.Warn("classifier: falling back to keywords", slog.String("error", err.Error()))
		return c.fallback.Classify(ctx, in)
	}
	return out, nil
}

func (c *GPT) ask(ctx context.Context, in Input) (*models.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gptInstructions},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "thread_classification",
				Schema: c.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	var ans gptAnswer
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}

	known := false
	for _, t := range in.Threads {
		if t.ID == ans.ThreadID {
			known = true
			break
		}
	}
	if !known {
		return nil, nil
	}
	conf := min(max(ans.Confidence, 0), 1)
	if conf < c.minConfidence {
		return nil, nil
	}
	return &models.Classification{
		ThreadID:     ans.ThreadID,
		Confidence:   conf,
		Reasoning:    ans.Reasoning,
		ModelUsed:    c.model,
		ClassifiedAt: in.Now,
	}, nil
}

const gptInstructions = `You sort incoming notes into the user's topical threads.
Pick the single thread that best fits the note, or return an empty thread_id when none fits.
Confidence is your probability that the chosen thread is correct.`

func buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Threads:\n")
	for _, t := range in.Threads {
		fmt.Fprintf(&b, "- id=%s title=%q", t.ID, t.Title)
		if t.Description != "" {
			fmt.Fprintf(&b, " description=%q", t.Description)
		}
		if len(t.Keywords) > 0 {
			fmt.Fprintf(&b, " keywords=%s", strings.Join(t.Keywords, ","))
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nNote:\n")
	if in.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", in.Subject)
	}
	if len(in.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(in.Tags, ", "))
	}
	b.WriteString(in.Text)
	return b.String()
}
