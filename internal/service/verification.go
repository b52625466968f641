package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/webhook"
)

// VerificationEngine проверяет и записывает верификации и поддерживает счётчик.
// Все методы вызываются с репозиторием, привязанным к транзакции.
type VerificationEngine struct {
	lifecycle *StatusLifecycle
	radius    float64
	threshold int
	now       func() time.Time
}

func NewVerificationEngine(lifecycle *StatusLifecycle, radiusMeters float64, threshold int, now func() time.Time) *VerificationEngine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &VerificationEngine{
		lifecycle: lifecycle,
		radius:    radiusMeters,
		threshold: threshold,
		now:       now,
	}
}

// VerifyResult - итог успешной верификации
type VerifyResult struct {
	Verification *models.Verification
	Incident     *models.Incident
	Promoted     bool
	Events       []webhook.Event
}

func (e *VerificationEngine) Verify(ctx context.Context, repo IncidentRepository, incidentID uuid.UUID, identity models.Identity, at *geo.Point) (*VerifyResult, error) {
	if at == nil {
		return nil, models.ErrMissingLocation
	}
	if identity.IsZero() {
		return nil, models.ErrMissingIdentity
	}

	incident, err := repo.GetByIDForUpdate(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	distance := at.DistanceTo(incident.Location())
	if distance > e.radius {
		return nil, &models.OutOfRangeError{Distance: distance, Limit: e.radius}
	}

	existing, err := repo.FindVerification(ctx, incidentID, identity)
	if err != nil {
		return nil, fmt.Errorf("could not check prior verification: %w", err)
	}
	if existing != nil {
		return nil, models.ErrAlreadyVerified
	}

	verification := &models.Verification{
		IncidentID: incidentID,
		Identity:   identity,
		Latitude:   at.Lat,
		Longitude:  at.Lon,
		Distance:   distance,
		CreatedAt:  e.now(),
	}
	if err := repo.CreateVerification(ctx, verification); err != nil {
		return nil, err
	}

	count, err := repo.AdjustVerificationCount(ctx, incidentID, 1)
	if err != nil {
		return nil, fmt.Errorf("could not increment verification count: %w", err)
	}
	incident.VerificationCount = count

	result := &VerifyResult{Verification: verification, Incident: incident}
	if e.lifecycle.ShouldPromote(incident, e.threshold) {
		events, err := e.lifecycle.Apply(ctx, repo, incident, models.StatusVerified, Transition{Actor: ActorVerificationEngine})
		if err != nil {
			return nil, err
		}
		result.Promoted = true
		result.Events = events
	}
	return result, nil
}

// Unverify удаляет верификацию идентичности. Статус не понижается.
func (e *VerificationEngine) Unverify(ctx context.Context, repo IncidentRepository, incidentID uuid.UUID, identity models.Identity) (*models.Incident, error) {
	if identity.IsZero() {
		return nil, models.ErrMissingIdentity
	}

	incident, err := repo.GetByIDForUpdate(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	existing, err := repo.FindVerification(ctx, incidentID, identity)
	if err != nil {
		return nil, fmt.Errorf("could not find verification: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("verification for incident %s: %w", incidentID, models.ErrNotFound)
	}

	if err := repo.DeleteVerification(ctx, existing.ID); err != nil {
		return nil, err
	}
	count, err := repo.AdjustVerificationCount(ctx, incidentID, -1)
	if err != nil {
		return nil, fmt.Errorf("could not decrement verification count: %w", err)
	}
	incident.VerificationCount = count
	return incident, nil
}
