package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/shenikar/snap_and_send/internal/category"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOpenAI поднимает сервер, отвечающий на chat/completions содержимым content
func newFakeOpenAI(t *testing.T, status int, content string) (*OpenAI, *[]openai.ChatCompletionRequest) {
	t.Helper()
	var requests []openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIWithConfig(cfg, "", category.Defaults()), &requests
}

func TestOpenAI_Classify(t *testing.T) {
	c, requests := newFakeOpenAI(t, http.StatusOK,
		"```json\n{\"category\":\"Pothole\",\"confidence\":0.92,\"title\":\"Large pothole\",\"severity\":\"high\",\"details\":[\"a\",\"b\"]}\n```")

	got, err := c.Classify(context.Background(), "https://cdn.example/photo.jpg")

	require.NoError(t, err)
	assert.Equal(t, "pothole", got.Category)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, SeverityHigh, got.Severity)
	assert.Equal(t, []string{"a", "b"}, got.Details)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, defaultModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "- pothole:")
	require.Len(t, req.Messages[1].MultiContent, 2)
	assert.Equal(t, "https://cdn.example/photo.jpg", req.Messages[1].MultiContent[1].ImageURL.URL)
}

func TestSanitize(t *testing.T) {
	got := sanitize(Suggestion{
		Category:   "!!!",
		Confidence: 7,
		Severity:   "apocalyptic",
		Details:    []string{"1", "2", "3", "4", "5", "6"},
	})

	assert.Equal(t, fallbackCategory, got.Category)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, "Incident Report", got.Title)
	assert.Len(t, got.Details, maxDetails)

	// новая корректная категория сохраняется
	assert.Equal(t, "fallen-tree", sanitize(Suggestion{Category: "fallen-tree"}).Category)
}

type failing struct{}

func (failing) Classify(context.Context, string) (*Suggestion, error) {
	return nil, errors.New("rate limited")
}

func TestWithFallback(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	got, err := WithFallback(failing{}, logger).Classify(context.Background(), "https://cdn.example/x.jpg")

	require.NoError(t, err)
	assert.Equal(t, fallbackCategory, got.Category)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestOpenAI_ServerError(t *testing.T) {
	c, _ := newFakeOpenAI(t, http.StatusInternalServerError, "")

	_, err := c.Classify(context.Background(), "https://cdn.example/x.jpg")

	assert.Error(t, err)
}
