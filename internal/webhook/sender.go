package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Sender отправляет тело запроса на адрес подписчика
type Sender interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error)
}

// HTTPSender - реализация Sender поверх net/http. Таймаут задаётся контекстом.
type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook endpoint responded with status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
