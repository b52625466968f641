// Command webhook_mock - приёмник вебхуков для локальной отладки.
// При заданном WEBHOOK_SECRET проверяет подпись X-Webhook-Signature.
package main

import (
	"crypto/hmac"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/shenikar/snap_and_send/internal/webhook"
	"github.com/shenikar/snap_and_send/pkg/logger"
)

func main() {
	log := logger.New("info", "text")
	secret := os.Getenv("WEBHOOK_SECRET")
	addr := os.Getenv("WEBHOOK_MOCK_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	http.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()

		entry := log.WithField("event", r.Header.Get(webhook.HeaderEvent)).
			WithField("timestamp", r.Header.Get(webhook.HeaderTimestamp))

		if secret != "" {
			got := strings.TrimPrefix(r.Header.Get(webhook.HeaderSignature), "sha256=")
			if !hmac.Equal([]byte(got), []byte(webhook.Sign(body, secret))) {
				entry.Warn("Rejected webhook with invalid signature")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		entry.Infof("Received webhook: %s", string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Infof("Webhook mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
