package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
)

// IncidentRepository определяет контракт хранилища инцидентов, верификаций и журнала статусов.
// Методы, не находящие запись по ID, возвращают ошибку, оборачивающую models.ErrNotFound.
type IncidentRepository interface {
	// WithTx выполняет fn в одной транзакции. Репозиторий, переданный в fn,
	// привязан к транзакции; ошибка fn откатывает все изменения.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo IncidentRepository) error) error

	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// GetByIDForUpdate блокирует строку инцидента до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	UpdateStatus(ctx context.Context, incident *models.Incident) error
	// AdjustVerificationCount атомарно меняет счётчик и возвращает новое значение
	AdjustVerificationCount(ctx context.Context, id uuid.UUID, delta int) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, int, error)
	// FindOpenByCategory возвращает нерешённые инциденты категории, новые первыми.
	// radiusM - грубый предварительный фильтр, точное расстояние считает вызывающий.
	FindOpenByCategory(ctx context.Context, category string, near geo.Point, radiusM float64) ([]*models.Incident, error)
	CountIncidents(ctx context.Context, since *time.Time) (int, error)
	GroupCount(ctx context.Context, field models.GroupField, since *time.Time) (map[string]int, error)

	CreateVerification(ctx context.Context, verification *models.Verification) error
	// FindVerification возвращает nil, nil если идентичность не подтверждала инцидент
	FindVerification(ctx context.Context, incidentID uuid.UUID, identity models.Identity) (*models.Verification, error)
	ListVerifications(ctx context.Context, incidentID uuid.UUID) ([]*models.Verification, error)
	DeleteVerification(ctx context.Context, id uuid.UUID) error

	CreateStatusLog(ctx context.Context, entry *models.StatusLog) error
	ListStatusLogs(ctx context.Context, incidentID uuid.UUID) ([]*models.StatusLog, error)
}

// IncidentCache - кеш карточек инцидентов
type IncidentCache interface {
	// Get возвращает nil, nil при промахе
	Get(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	Set(ctx context.Context, incident *models.Incident) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// SubscriptionRepository хранит вебхуки партнёров
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, partnerID uuid.UUID) ([]*models.Subscription, error)
	DeleteSubscription(ctx context.Context, partnerID, id uuid.UUID) error
	FindActiveForEvent(ctx context.Context, kind models.EventKind) ([]*models.Subscription, error)
}

// PartnerRepository хранит партнёров внешнего API
type PartnerRepository interface {
	CreatePartner(ctx context.Context, partner *models.Partner) error
	GetPartnerByKeyHash(ctx context.Context, keyHash string) (*models.Partner, error)
	ListPartners(ctx context.Context) ([]*models.Partner, error)
	SetPartnerActive(ctx context.Context, email string, active bool) (*models.Partner, error)
	TouchPartner(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Settings - параметры движка дедупликации и верификации
type Settings struct {
	DuplicateRadiusMeters    float64
	VerificationRadiusMeters float64
	PromotionThreshold       int
}

const (
	DuplicateRadiusMeters    = 200.0
	VerificationRadiusMeters = 500.0
	PromotionThreshold       = 3

	// запас предварительного фильтра хранилища поверх радиуса дублей
	prefilterMarginMeters = 50.0

	// ActorVerificationEngine - автор автоматического повышения статуса
	ActorVerificationEngine = "verification-engine"
)

func DefaultSettings() Settings {
	return Settings{
		DuplicateRadiusMeters:    DuplicateRadiusMeters,
		VerificationRadiusMeters: VerificationRadiusMeters,
		PromotionThreshold:       PromotionThreshold,
	}
}
