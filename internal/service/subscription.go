package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/sirupsen/logrus"
)

// SubscriptionService управляет вебхуками партнёров
type SubscriptionService interface {
	Register(ctx context.Context, partnerID uuid.UUID, target string, events []models.EventKind, secret *string) (*models.Subscription, error)
	List(ctx context.Context, partnerID uuid.UUID) ([]*models.Subscription, error)
	Delete(ctx context.Context, partnerID, id uuid.UUID) error
}

type subscriptionService struct {
	repo   SubscriptionRepository
	logger *logrus.Logger
}

func NewSubscriptionService(repo SubscriptionRepository, logger *logrus.Logger) SubscriptionService {
	return &subscriptionService{repo: repo, logger: logger}
}

// Register создаёт подписку. Пустой список событий означает подписку на все события.
func (s *subscriptionService) Register(ctx context.Context, partnerID uuid.UUID, target string, events []models.EventKind, secret *string) (*models.Subscription, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "subscription",
		"method":     "Register",
		"partner_id": partnerID,
	})
	log.Info("Attempting to register webhook")

	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("service: invalid webhook url %q", target)
	}

	if len(events) == 0 {
		events = append([]models.EventKind(nil), models.AllEventKinds...)
	}
	seen := make(map[models.EventKind]bool, len(events))
	unique := make([]models.EventKind, 0, len(events))
	for _, kind := range events {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrInvalidEvent, kind)
		}
		if !seen[kind] {
			seen[kind] = true
			unique = append(unique, kind)
		}
	}

	if secret != nil && *secret == "" {
		secret = nil
	}

	sub := &models.Subscription{
		ID:        uuid.New(),
		PartnerID: partnerID,
		URL:       target,
		Events:    unique,
		Secret:    secret,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		log.WithError(err).Error("Failed to create subscription in repository")
		return nil, fmt.Errorf("service: could not register webhook: %w", err)
	}

	log.WithField("subscription_id", sub.ID).Info("Webhook registered successfully")
	return sub, nil
}

func (s *subscriptionService) List(ctx context.Context, partnerID uuid.UUID) ([]*models.Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("service: could not list webhooks: %w", err)
	}
	return subs, nil
}

// Delete удаляет подписку партнёра. Чужая подписка считается ненайденной.
func (s *subscriptionService) Delete(ctx context.Context, partnerID, id uuid.UUID) error {
	if err := s.repo.DeleteSubscription(ctx, partnerID, id); err != nil {
		s.logger.WithError(err).WithField("subscription_id", id).Warn("Failed to delete webhook")
		return fmt.Errorf("service: could not delete webhook: %w", err)
	}
	return nil
}
