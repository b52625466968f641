package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/sirupsen/logrus"
)

// APIKeyPrefix - префикс выдаваемых ключей партнёров
const APIKeyPrefix = "sns_"

// PartnerService аутентифицирует и регистрирует партнёров
type PartnerService interface {
	Authenticate(ctx context.Context, apiKey string) (*models.Partner, error)
	CreatePartner(ctx context.Context, name, email string, description *string) (*models.Partner, string, error)
	ListPartners(ctx context.Context) ([]*models.Partner, error)
	SetActive(ctx context.Context, email string, active bool) (*models.Partner, error)
	// Bootstrap регистрирует статические ключи из конфигурации как партнёров
	Bootstrap(ctx context.Context, keys []string) error
}

type partnerService struct {
	repo   PartnerRepository
	logger *logrus.Logger
	now    func() time.Time
}

func NewPartnerService(repo PartnerRepository, logger *logrus.Logger) PartnerService {
	return &partnerService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HashAPIKey возвращает hex SHA-256 ключа. Сам ключ не хранится.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey создаёт ключ вида sns_<64 hex>
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

func (s *partnerService) Authenticate(ctx context.Context, apiKey string) (*models.Partner, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, models.ErrUnauthorized
	}

	partner, err := s.repo.GetPartnerByKeyHash(ctx, HashAPIKey(apiKey))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("service: could not authenticate partner: %w", err)
	}
	if !partner.IsActive {
		return nil, fmt.Errorf("%w: partner is deactivated", models.ErrUnauthorized)
	}

	if err := s.repo.TouchPartner(ctx, partner.ID, s.now()); err != nil {
		s.logger.WithError(err).WithField("partner_id", partner.ID).Warn("Failed to update partner last use")
	}
	return partner, nil
}

// CreatePartner регистрирует партнёра и возвращает ключ в открытом виде (единственный раз)
func (s *partnerService) CreatePartner(ctx context.Context, name, email string, description *string) (*models.Partner, string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "partner",
		"method":  "CreatePartner",
		"email":   email,
	})

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, "", fmt.Errorf("service: partner name and email are required")
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}

	partner := &models.Partner{
		ID:          uuid.New(),
		Name:        name,
		Email:       email,
		Description: description,
		APIKeyHash:  HashAPIKey(key),
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreatePartner(ctx, partner); err != nil {
		log.WithError(err).Error("Failed to create partner in repository")
		return nil, "", fmt.Errorf("service: could not create partner: %w", err)
	}

	log.WithField("partner_id", partner.ID).Info("Partner created successfully")
	return partner, key, nil
}

func (s *partnerService) ListPartners(ctx context.Context) ([]*models.Partner, error) {
	partners, err := s.repo.ListPartners(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: could not list partners: %w", err)
	}
	return partners, nil
}

func (s *partnerService) SetActive(ctx context.Context, email string, active bool) (*models.Partner, error) {
	partner, err := s.repo.SetPartnerActive(ctx, strings.ToLower(strings.TrimSpace(email)), active)
	if err != nil {
		return nil, fmt.Errorf("service: could not update partner: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"partner_id": partner.ID,
		"active":     active,
	}).Info("Partner status updated")
	return partner, nil
}

func (s *partnerService) Bootstrap(ctx context.Context, keys []string) error {
	for i, key := range keys {
		if key == "" {
			continue
		}
		hash := HashAPIKey(key)
		_, err := s.repo.GetPartnerByKeyHash(ctx, hash)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("service: could not look up static key: %w", err)
		}

		partner := &models.Partner{
			ID:         uuid.New(),
			Name:       fmt.Sprintf("static-key-%d", i+1),
			Email:      fmt.Sprintf("static-key-%d@%s", i+1, hash[:12]),
			APIKeyHash: hash,
			IsActive:   true,
			CreatedAt:  s.now(),
		}
		if err := s.repo.CreatePartner(ctx, partner); err != nil {
			return fmt.Errorf("service: could not register static key: %w", err)
		}
		s.logger.WithField("partner_id", partner.ID).Info("Static API key registered as partner")
	}
	return nil
}
