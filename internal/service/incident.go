package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/category"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/webhook"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// IncidentService определяет контракт бизнес-логики отчётов, верификаций и статусов
type IncidentService interface {
	SubmitReport(ctx context.Context, in SubmitReportInput) (*SubmitResult, error)
	Verify(ctx context.Context, incidentID uuid.UUID, identity models.Identity, at *geo.Point) (*VerifyResult, error)
	Unverify(ctx context.Context, incidentID uuid.UUID, identity models.Identity) (*models.Incident, error)
	ChangeStatus(ctx context.Context, in ChangeStatusInput) (*models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, int, error)
	ListVerifications(ctx context.Context, incidentID uuid.UUID) ([]*models.Verification, error)
	GetHistory(ctx context.Context, incidentID uuid.UUID) ([]*models.StatusLog, error)
	GetStats(ctx context.Context, since *time.Time) (*models.Stats, error)
	DeleteIncident(ctx context.Context, incidentID uuid.UUID, identity models.Identity) error
}

// SubmitReportInput - новый отчёт гражданина
type SubmitReportInput struct {
	Category    string
	Title       string
	Description string
	Latitude    float64
	Longitude   float64
	Address     *string
	ImageURLs   []string
	Identity    models.Identity
}

// SubmitResult - итог приёма отчёта: новый инцидент или слияние с существующим
type SubmitResult struct {
	Incident      *models.Incident
	Merged        bool
	MergeDistance float64
	Verification  *models.Verification
}

// ChangeStatusInput - запрос внешней службы на смену статуса
type ChangeStatusInput struct {
	IncidentID  uuid.UUID
	Status      models.Status
	Actor       string
	PartnerID   *uuid.UUID
	Notes       *string
	EvidenceURL *string
}

type incidentService struct {
	repo       IncidentRepository
	cache      IncidentCache
	publisher  webhook.Publisher
	categories category.Registry
	resolver   *DuplicateResolver
	engine     *VerificationEngine
	lifecycle  *StatusLifecycle
	logger     *logrus.Logger
	now        func() time.Time
}

// NewIncidentService собирает сервис. cache, publisher и categories могут быть nil.
func NewIncidentService(
	repo IncidentRepository,
	cache IncidentCache,
	publisher webhook.Publisher,
	categories category.Registry,
	settings Settings,
	logger *logrus.Logger,
) IncidentService {
	now := func() time.Time { return time.Now().UTC() }
	lifecycle := NewStatusLifecycle(now)
	return &incidentService{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		categories: categories,
		resolver:   NewDuplicateResolver(settings.DuplicateRadiusMeters),
		engine:     NewVerificationEngine(lifecycle, settings.VerificationRadiusMeters, settings.PromotionThreshold, now),
		lifecycle:  lifecycle,
		logger:     logger,
		now:        now,
	}
}

// SubmitReport принимает отчёт: сливает его с открытым дублем поблизости
// либо создаёт новый инцидент в статусе pending.
func (s *incidentService) SubmitReport(ctx context.Context, in SubmitReportInput) (*SubmitResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "incident",
		"method":   "SubmitReport",
		"category": in.Category,
	})
	log.Info("Attempting to submit a report")

	tag, err := category.Normalize(in.Category)
	if err != nil {
		return nil, err
	}
	if in.Identity.IsZero() {
		return nil, models.ErrMissingIdentity
	}
	at := geo.Point{Lat: in.Latitude, Lon: in.Longitude}

	if s.categories != nil {
		if err := s.categories.Remember(ctx, tag); err != nil {
			log.WithError(err).Warn("Failed to remember category")
		}
	}

	var (
		result *SubmitResult
		events []webhook.Event
	)
	// поиск дубля, слияние или создание и обновление счётчика - одна транзакция
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx IncidentRepository) error {
		duplicate, distance, err := s.resolver.FindDuplicate(ctx, tx, tag, at, in.Identity)
		if err != nil {
			return fmt.Errorf("could not resolve duplicates: %w", err)
		}

		if duplicate != nil {
			verified, err := s.engine.Verify(ctx, tx, duplicate.ID, in.Identity, &at)
			if err != nil {
				return fmt.Errorf("could not merge report: %w", err)
			}
			result = &SubmitResult{
				Incident:      verified.Incident,
				Merged:        true,
				MergeDistance: distance,
				Verification:  verified.Verification,
			}
			events = verified.Events
			return nil
		}

		now := s.now()
		incident := &models.Incident{
			ID:          uuid.New(),
			Category:    tag,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Address:     in.Address,
			ImageURLs:   in.ImageURLs,
			Status:      models.StatusPending,
			Owner:       in.Identity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(ctx, incident); err != nil {
			return fmt.Errorf("could not create incident: %w", err)
		}
		created, err := createdEvent(incident)
		if err != nil {
			log.WithError(err).Warn("Failed to build created event")
		} else {
			events = []webhook.Event{created}
		}
		result = &SubmitResult{Incident: incident}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to submit report")
		return nil, fmt.Errorf("service: %w", err)
	}

	if result.Merged {
		s.invalidate(ctx, result.Incident.ID)
		log.WithFields(logrus.Fields{
			"incident_id": result.Incident.ID,
			"distance":    result.MergeDistance,
		}).Info("Report merged into existing incident")
	} else {
		log.WithField("incident_id", result.Incident.ID).Info("Incident created successfully")
	}
	s.publish(ctx, events...)
	return result, nil
}

// Verify записывает подтверждение инцидента идентичностью, находящейся рядом
func (s *incidentService) Verify(ctx context.Context, incidentID uuid.UUID, identity models.Identity, at *geo.Point) (*VerifyResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "Verify",
		"incident_id": incidentID,
	})
	log.Info("Attempting to verify incident")

	var result *VerifyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx IncidentRepository) error {
		var err error
		result, err = s.engine.Verify(ctx, tx, incidentID, identity, at)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Verification rejected")
		return nil, fmt.Errorf("service: could not verify incident: %w", err)
	}

	s.invalidate(ctx, incidentID)
	s.publish(ctx, result.Events...)

	log.WithFields(logrus.Fields{
		"verification_count": result.Incident.VerificationCount,
		"promoted":           result.Promoted,
	}).Info("Incident verified successfully")
	return result, nil
}

// Unverify отзывает подтверждение. Статус инцидента не понижается.
func (s *incidentService) Unverify(ctx context.Context, incidentID uuid.UUID, identity models.Identity) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "Unverify",
		"incident_id": incidentID,
	})
	log.Info("Attempting to remove verification")

	var incident *models.Incident
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx IncidentRepository) error {
		var err error
		incident, err = s.engine.Unverify(ctx, tx, incidentID, identity)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Failed to remove verification")
		return nil, fmt.Errorf("service: could not remove verification: %w", err)
	}

	s.invalidate(ctx, incidentID)
	log.WithField("verification_count", incident.VerificationCount).Info("Verification removed successfully")
	return incident, nil
}

// ChangeStatus применяет переход статуса по запросу внешней службы
func (s *incidentService) ChangeStatus(ctx context.Context, in ChangeStatusInput) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ChangeStatus",
		"incident_id": in.IncidentID,
		"status":      in.Status,
		"actor":       in.Actor,
	})
	log.Info("Attempting to change incident status")

	if strings.TrimSpace(in.Actor) == "" {
		return nil, fmt.Errorf("%w: status change requires an authority", models.ErrUnauthorized)
	}

	var (
		incident *models.Incident
		events   []webhook.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx IncidentRepository) error {
		var err error
		incident, err = tx.GetByIDForUpdate(ctx, in.IncidentID)
		if err != nil {
			return err
		}

		noop, err := s.lifecycle.CheckExternal(incident.Status, in.Status)
		if err != nil || noop {
			return err
		}

		events, err = s.lifecycle.Apply(ctx, tx, incident, in.Status, Transition{
			Actor:       in.Actor,
			PartnerID:   in.PartnerID,
			Notes:       in.Notes,
			EvidenceURL: in.EvidenceURL,
		})
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Failed to change incident status")
		return nil, fmt.Errorf("service: could not change status: %w", err)
	}

	s.invalidate(ctx, in.IncidentID)
	s.publish(ctx, events...)

	log.Info("Incident status changed successfully")
	return incident, nil
}

// GetIncident получает инцидент по ID, сначала из кеша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read incident from cache")
		} else if cached != nil {
			log.Debug("Incident fetched from cache")
			return cached, nil
		}
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}
	return incident, nil
}

// ListIncidents возвращает страницу инцидентов и общее число подходящих записей
func (s *incidentService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, int, error) {
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Category != "" {
		tag, err := category.Normalize(filter.Category)
		if err != nil {
			return nil, 0, err
		}
		filter.Category = tag
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", models.ErrInvalidStatus, filter.Status)
	}

	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})

	incidents, total, err := s.repo.ListIncidents(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, 0, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Debug("Incidents listed successfully")
	return incidents, total, nil
}

func (s *incidentService) ListVerifications(ctx context.Context, incidentID uuid.UUID) ([]*models.Verification, error) {
	if _, err := s.repo.GetByID(ctx, incidentID); err != nil {
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	verifications, err := s.repo.ListVerifications(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("service: could not list verifications: %w", err)
	}
	return verifications, nil
}

// GetHistory возвращает журнал статусов, новые записи первыми
func (s *incidentService) GetHistory(ctx context.Context, incidentID uuid.UUID) ([]*models.StatusLog, error) {
	if _, err := s.repo.GetByID(ctx, incidentID); err != nil {
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	logs, err := s.repo.ListStatusLogs(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("service: could not list status logs: %w", err)
	}
	return logs, nil
}

// GetStats считает инциденты, созданные не раньше since (nil - за всё время)
func (s *incidentService) GetStats(ctx context.Context, since *time.Time) (*models.Stats, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "GetStats",
	})

	total, err := s.repo.CountIncidents(ctx, since)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents")
		return nil, fmt.Errorf("service: could not count incidents: %w", err)
	}

	dayAgo := s.now().Add(-24 * time.Hour)
	if since != nil && since.After(dayAgo) {
		dayAgo = *since
	}
	last24h, err := s.repo.CountIncidents(ctx, &dayAgo)
	if err != nil {
		return nil, fmt.Errorf("service: could not count recent incidents: %w", err)
	}

	byStatus, err := s.repo.GroupCount(ctx, models.GroupByStatus, since)
	if err != nil {
		return nil, fmt.Errorf("service: could not group by status: %w", err)
	}
	byCategory, err := s.repo.GroupCount(ctx, models.GroupByCategory, since)
	if err != nil {
		return nil, fmt.Errorf("service: could not group by category: %w", err)
	}

	return &models.Stats{
		Total:      total,
		Last24h:    last24h,
		ByStatus:   byStatus,
		ByCategory: byCategory,
	}, nil
}

// DeleteIncident удаляет инцидент. Разрешено только владельцу.
func (s *incidentService) DeleteIncident(ctx context.Context, incidentID uuid.UUID, identity models.Identity) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "DeleteIncident",
		"incident_id": incidentID,
	})
	log.Info("Attempting to delete incident")

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx IncidentRepository) error {
		incident, err := tx.GetByIDForUpdate(ctx, incidentID)
		if err != nil {
			return err
		}
		if !incident.Owner.Equal(identity) {
			return fmt.Errorf("%w: only the reporter can delete an incident", models.ErrUnauthorized)
		}
		return tx.Delete(ctx, incidentID)
	})
	if err != nil {
		log.WithError(err).Warn("Failed to delete incident")
		return fmt.Errorf("service: could not delete incident: %w", err)
	}

	s.invalidate(ctx, incidentID)
	log.Info("Incident deleted successfully")
	return nil
}

func (s *incidentService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WithError(err).WithField("incident_id", id).Warn("Failed to invalidate incident cache")
	}
}

// publish ставит события в очередь вебхуков. Ошибки только логируются:
// изменение уже зафиксировано.
func (s *incidentService) publish(ctx context.Context, events ...webhook.Event) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WithError(err).WithField("event", event.Kind).Error("Failed to publish webhook event")
		}
	}
}
