// Package classifier предлагает категорию отчёта по фотографии.
// Классификатор непрозрачен для ядра: он лишь возвращает категорию и уверенность.
package classifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"

	fallbackCategory = "other"
	maxTitleLen      = 100
	maxDescLen       = 500
	maxDetails       = 5
)

// Suggestion - подсказка для формы отчёта
type Suggestion struct {
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Details     []string `json:"details"`
}

type Classifier interface {
	Classify(ctx context.Context, imageURL string) (*Suggestion, error)
}

// Fallback используется, когда ключ OpenAI не задан или модель недоступна
type Fallback struct{}

func (Fallback) Classify(context.Context, string) (*Suggestion, error) {
	return fallbackSuggestion(), nil
}

func fallbackSuggestion() *Suggestion {
	return &Suggestion{
		Category: fallbackCategory,
		Severity: SeverityMedium,
		Details:  []string{},
	}
}

type withFallback struct {
	primary Classifier
	logger  *logrus.Logger
}

// WithFallback подменяет ошибки основного классификатора подсказкой по умолчанию
func WithFallback(primary Classifier, logger *logrus.Logger) Classifier {
	return &withFallback{primary: primary, logger: logger}
}

func (c *withFallback) Classify(ctx context.Context, imageURL string) (*Suggestion, error) {
	suggestion, err := c.primary.Classify(ctx, imageURL)
	if err != nil {
		c.logger.WithError(err).Warn("Image classification failed, using fallback")
		return fallbackSuggestion(), nil
	}
	return suggestion, nil
}
