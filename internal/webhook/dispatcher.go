package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"

	DefaultTimeout = 10 * time.Second
)

// SubscriptionSource возвращает активные подписки на событие
type SubscriptionSource interface {
	FindActiveForEvent(ctx context.Context, kind models.EventKind) ([]*models.Subscription, error)
}

// DeliveryResult - итог доставки одному подписчику
type DeliveryResult struct {
	SubscriptionID uuid.UUID
	URL            string
	StatusCode     int
	Err            error
}

// Dispatcher рассылает событие всем подходящим подпискам одновременно:
// каждая доставка в своей горутине со своим таймаутом
type Dispatcher struct {
	subs    SubscriptionSource
	sender  Sender
	logger  *logrus.Logger
	timeout time.Duration
}

func NewDispatcher(subs SubscriptionSource, sender Sender, logger *logrus.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		subs:    subs,
		sender:  sender,
		logger:  logger,
		timeout: timeout,
	}
}

// Dispatch доставляет событие и ждёт завершения всех доставок. Ошибки
// подписчиков фиксируются в результатах и в логе, но не прерывают остальных.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) []DeliveryResult {
	log := d.logger.WithField("event", event.Kind)

	subs, err := d.subs.FindActiveForEvent(ctx, event.Kind)
	if err != nil {
		log.WithError(err).Error("Failed to load webhook subscriptions")
		return nil
	}
	if len(subs) == 0 {
		log.Debug("No subscribers for event")
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Failed to marshal webhook payload")
		return nil
	}

	results := make([]DeliveryResult, len(subs))
	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = d.deliver(ctx, sub, event, body)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) deliver(ctx context.Context, sub *models.Subscription, event Event, body []byte) DeliveryResult {
	log := d.logger.WithFields(logrus.Fields{
		"event":           event.Kind,
		"subscription_id": sub.ID,
		"url":             sub.URL,
	})

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	headers := map[string]string{
		"Content-Type":  "application/json",
		HeaderEvent:     string(event.Kind),
		HeaderTimestamp: event.Timestamp.Format(time.RFC3339Nano),
	}
	if sub.Secret != nil && *sub.Secret != "" {
		headers[HeaderSignature] = "sha256=" + Sign(body, *sub.Secret)
	}

	status, err := d.sender.Post(ctx, sub.URL, headers, body)
	result := DeliveryResult{SubscriptionID: sub.ID, URL: sub.URL, StatusCode: status, Err: err}
	if err != nil {
		log.WithError(err).WithField("status", status).Warn("Webhook delivery failed")
		return result
	}
	log.WithField("status", status).Info("Webhook delivered successfully")
	return result
}

// Sign генерирует HMAC-SHA256 подпись для тела запроса
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
