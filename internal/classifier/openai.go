package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shenikar/snap_and_send/internal/category"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You are an AI assistant that analyzes images of infrastructure issues and incidents for a community reporting app.

Categorize the image. Prefer one of these known categories:
%s
If none fits well you may propose a new short lowercase category id (letters, digits, "-" or "_").

Respond with a JSON object containing:
- category: category id
- confidence: number between 0 and 1
- title: a brief descriptive title (max 60 chars)
- description: what you see (2-3 sentences, max 200 chars)
- severity: one of [low, medium, high] based on urgency/danger
- details: array of 2-4 specific observations

If the image doesn't show a clear incident, use category "other".`

// OpenAI классифицирует изображения через vision-модель OpenAI
type OpenAI struct {
	client *openai.Client
	model  string
	prompt string
}

// NewOpenAI создаёт классификатор с ключом API
func NewOpenAI(apiKey, model string, known []category.Category) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model, known), nil
}

// NewOpenAIWithConfig позволяет задать BaseURL и HTTP-клиент
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string, known []category.Category) *OpenAI {
	if model == "" {
		model = defaultModel
	}
	var b strings.Builder
	for _, c := range known {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Description)
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		prompt: fmt.Sprintf(systemPrompt, strings.TrimRight(b.String(), "\n")),
	}
}

func (c *OpenAI) Classify(ctx context.Context, imageURL string) (*Suggestion, error) {
	if imageURL == "" {
		return nil, errors.New("image url is required")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.prompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Analyze this image and identify what type of incident or issue it shows. Provide your analysis in JSON format.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens: 500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)
	var raw Suggestion
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing classification JSON: %w (response: %s)", err, content)
	}
	return sanitize(raw), nil
}

// sanitize ограничивает поля ответа модели
func sanitize(raw Suggestion) *Suggestion {
	out := &Suggestion{
		Confidence:  raw.Confidence,
		Title:       truncate(strings.TrimSpace(raw.Title), maxTitleLen),
		Description: truncate(strings.TrimSpace(raw.Description), maxDescLen),
		Severity:    raw.Severity,
		Details:     raw.Details,
	}

	tag, err := category.Normalize(raw.Category)
	if err != nil {
		tag = fallbackCategory
	}
	out.Category = tag

	switch {
	case out.Confidence <= 0:
		out.Confidence = 0.5
	case out.Confidence > 1:
		out.Confidence = 1
	}
	switch out.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		out.Severity = SeverityMedium
	}
	if out.Title == "" {
		out.Title = "Incident Report"
	}
	if out.Details == nil {
		out.Details = []string{}
	}
	if len(out.Details) > maxDetails {
		out.Details = out.Details[:maxDetails]
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// cleanJSONResponse убирает markdown-обёртку вокруг JSON
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
